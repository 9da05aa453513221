package models

import (
	"errors"
	"fmt"
)

// Step names one screen of the signup wizard.
type Step string

const (
	StepIdentity       Step = "identity"
	StepConsent        Step = "consent"
	StepEmailCode      Step = "email_code"
	StepPassword       Step = "password"
	StepProfilePicture Step = "profile_picture"
	StepUsername       Step = "username"
	StepDone           Step = "done"
)

var stepOrder = []Step{
	StepIdentity,
	StepConsent,
	StepEmailCode,
	StepPassword,
	StepProfilePicture,
	StepUsername,
	StepDone,
}

// Steps returns the wizard steps in order.
func Steps() []Step {
	out := make([]Step, len(stepOrder))
	copy(out, stepOrder)
	return out
}

// Index returns the position of s in the wizard, or -1 for unknown steps.
func (s Step) Index() int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// IsValid checks if the step is one of the supported enum values.
func (s Step) IsValid() bool {
	return s.Index() >= 0
}

// IsTerminal reports whether the wizard has finished.
func (s Step) IsTerminal() bool {
	return s == StepDone
}

func (s Step) String() string {
	return string(s)
}

// Mode selects how the shell presents the wizard. Both modes drive the same
// machine; only the close target differs.
type Mode string

const (
	ModeModal Mode = "modal"
	ModePage  Mode = "page"
)

// ParseMode accepts "modal" and "page"; anything else falls back to page.
func ParseMode(s string) Mode {
	if Mode(s) == ModeModal {
		return ModeModal
	}
	return ModePage
}

// ClosePath is where the client navigates when the wizard is dismissed.
// A modal returns to the page underneath it.
func (m Mode) ClosePath() string {
	if m == ModeModal {
		return "back"
	}
	return "/"
}

// BirthDate is a possibly partial calendar date. Zero fields are unset.
type BirthDate struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// Complete reports whether year, month and day are all selected.
func (b BirthDate) Complete() bool {
	return b.Year > 0 && b.Month > 0 && b.Day > 0
}

// String renders the date in the collaborator's YYYY-MM-DD wire format.
func (b BirthDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", b.Year, b.Month, b.Day)
}

// Picture is a profile picture chosen on the optional picture step, with the
// crop position the user applied.
type Picture struct {
	ContentType string  `json:"content_type"`
	Size        int64   `json:"size"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Scale       float64 `json:"scale"`
}

// Draft accumulates signup data across steps. Only the active step mutates it.
type Draft struct {
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	BirthDate      BirthDate `json:"birth_date"`
	Username       string    `json:"username,omitempty"`
	PasswordSet    bool      `json:"password_set"`
	ProfilePicture *Picture  `json:"profile_picture,omitempty"`
}

// Exception is the exception tag carried by collaborator error payloads.
type Exception string

const (
	ExceptionNone                      Exception = ""
	ExceptionEmailAlreadyTaken         Exception = "EmailAlreadyTakenException"
	ExceptionEmailFailedToSend         Exception = "EmailFailedToSendException"
	ExceptionIncorrectVerificationCode Exception = "IncorrectVerificationCodeException"
	ExceptionUserAlreadyVerified       Exception = "UserAlreadyVerifiedException"
	ExceptionUserDoesNotExist          Exception = "UserDoesNotExistException"
	ExceptionVerificationCodeExpired   Exception = "VerificationCodeExpiredException"
	ExceptionMissingAuthToken          Exception = "MissingAuthenticationTokenException"
	ExceptionInvalidJWT                Exception = "InvalidJWTException"
)

// RemoteError is a structured failure returned by the external backend.
type RemoteError struct {
	Status    int       `json:"-"`
	Exception Exception `json:"exception"`
	Message   string    `json:"error"`
	Path      string    `json:"path"`
	Timestamp string    `json:"timestamp"`
}

func (e *RemoteError) Error() string {
	if e.Exception != ExceptionNone {
		return fmt.Sprintf("remote %d %s: %s", e.Status, e.Exception, e.Message)
	}
	return fmt.Sprintf("remote %d: %s", e.Status, e.Message)
}

// AsRemote extracts a RemoteError from err's chain.
func AsRemote(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ExceptionOf returns the exception tag in err's chain, if any.
func ExceptionOf(err error) Exception {
	if re, ok := AsRemote(err); ok {
		return re.Exception
	}
	return ExceptionNone
}

// RegisteredUser is the backend's answer to a successful registration. The
// username is assigned by the backend.
type RegisteredUser struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	BirthDate string `json:"birthDate"`
}

// Availability is the username service's answer.
type Availability struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}

// CheckStatus is the lifecycle of the latest username availability query.
type CheckStatus string

const (
	CheckIdle     CheckStatus = "idle"
	CheckPending  CheckStatus = "pending"
	CheckResolved CheckStatus = "resolved"
)

// UsernameCheck is the visible state of the username field's availability
// query. Token identifies the query that produced it.
type UsernameCheck struct {
	Status    CheckStatus `json:"status"`
	Token     uint64      `json:"token"`
	Candidate string      `json:"candidate,omitempty"`
	Available bool        `json:"available"`
	Message   string      `json:"message,omitempty"`
	// Local marks a result decided without a remote call.
	Local bool `json:"local,omitempty"`
	// Retryable marks a transport failure the user can retry by editing.
	Retryable bool `json:"retryable,omitempty"`
}

// StepError is a step-scoped failure surfaced by the shell.
type StepError struct {
	Message   string    `json:"message"`
	Exception Exception `json:"exception,omitempty"`
	// LoginPath is set when the failure should redirect the user to login.
	LoginPath string `json:"login_path,omitempty"`
}
