package flow

import (
	"context"
	"strings"

	"xclone/internal/signup/availability"
	"xclone/internal/signup/models"
	"xclone/internal/signup/validate"
	dErrors "xclone/pkg/domain-errors"
)

const (
	PasswordUpdateFailedMessage = "Password update failed. Please try again."

	MaxPictureSize  = 5 << 20
	MaxPictureScale = 10

	actionContinue = "Continue"
	actionSkip     = "Skip for now"
	actionUpdating = "Updating..."
)

var pictureTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// SubmitPassword checks the password locally, then sets it on the backend.
// The password itself is never kept in the draft.
func (m *Machine) SubmitPassword(ctx context.Context, password string) error {
	m.mu.Lock()
	if err := m.guardLocked(models.StepPassword, "submit password"); err != nil {
		m.mu.Unlock()
		return err
	}
	if res := validate.Password(password); !res.Valid {
		m.passwordErr = res.Error
		m.mu.Unlock()
		return dErrors.New(dErrors.CodeValidation, res.Error)
	}
	m.pending = true
	username := m.draft.Username
	m.mu.Unlock()

	err := m.users.UpdatePassword(ctx, password, username)

	m.mu.Lock()
	defer m.mu.Unlock()
	if serr := m.settleLocked(); serr != nil {
		return serr
	}
	if err != nil {
		m.remoteFailureLocked(ctx, "update_password", err)
		m.passwordErr = remoteMessage(err, PasswordUpdateFailedMessage)
		return nil
	}
	m.passwordErr = ""
	m.draft.PasswordSet = true
	m.transitionLocked(ctx, models.StepProfilePicture)
	return nil
}

// ValidatePicture checks an uploaded picture and its crop.
func ValidatePicture(p models.Picture) error {
	if !pictureTypes[p.ContentType] {
		return dErrors.New(dErrors.CodeValidation, "Choose a JPEG, PNG, GIF or WebP image.")
	}
	if p.Size <= 0 || p.Size > MaxPictureSize {
		return dErrors.New(dErrors.CodeValidation, "Images must be 5MB or smaller.")
	}
	if p.Scale <= 0 || p.Scale > MaxPictureScale {
		return dErrors.New(dErrors.CodeValidation, "Zoom must be between 0 and 10.")
	}
	return nil
}

// SubmitProfilePicture keeps the chosen picture and moves to username. A nil
// picture is the same as skipping.
func (m *Machine) SubmitProfilePicture(ctx context.Context, p *models.Picture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(models.StepProfilePicture, "submit profile picture"); err != nil {
		return err
	}
	if p == nil {
		m.draft.ProfilePicture = nil
	} else {
		if err := ValidatePicture(*p); err != nil {
			m.pictureErr = dErrors.MessageOf(err)
			return err
		}
		pic := *p
		m.draft.ProfilePicture = &pic
	}
	m.pictureErr = ""
	m.transitionLocked(ctx, models.StepUsername)
	return nil
}

func (m *Machine) SkipProfilePicture(ctx context.Context) error {
	return m.SubmitProfilePicture(ctx, nil)
}

// CheckUsername records an edit of the username field and starts an
// availability query for it. Older queries for this field are superseded.
func (m *Machine) CheckUsername(ctx context.Context, candidate string) (models.UsernameCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(models.StepUsername, "check username"); err != nil {
		return models.UsernameCheck{}, err
	}
	m.candidate = candidate
	m.usernameErr = ""
	return m.checker.Issue(ctx, candidate), nil
}

// AwaitUsername blocks until the latest availability query settles.
func (m *Machine) AwaitUsername(ctx context.Context) (models.UsernameCheck, error) {
	return m.checker.Await(ctx)
}

// SubmitUsername continues from the username step. An empty field skips and
// keeps the assigned username. Otherwise the candidate is validated and
// checked once more before it replaces the assigned username.
func (m *Machine) SubmitUsername(ctx context.Context) error {
	m.mu.Lock()
	if err := m.guardLocked(models.StepUsername, "submit username"); err != nil {
		m.mu.Unlock()
		return err
	}
	candidate := m.candidate
	if strings.TrimSpace(candidate) == "" {
		m.finishLocked(ctx)
		m.mu.Unlock()
		return nil
	}
	if res := validate.Username(candidate); !res.Valid {
		m.usernameErr = res.Error
		m.mu.Unlock()
		return dErrors.New(dErrors.CodeValidation, res.Error)
	}
	m.pending = true
	m.mu.Unlock()

	avail, err := m.checker.Verify(ctx, candidate)

	m.mu.Lock()
	defer m.mu.Unlock()
	if serr := m.settleLocked(); serr != nil {
		return serr
	}
	switch {
	case err == nil:
	case dErrors.HasCode(err, dErrors.CodeUnavailable):
		m.remoteFailureLocked(ctx, "check_username_availability", err)
		m.usernameErr = availability.TransportFailureMessage
		return nil
	case dErrors.HasCode(err, dErrors.CodeValidation):
		m.usernameErr = dErrors.MessageOf(err)
		return err
	default:
		return err
	}
	if !avail.Available {
		m.usernameErr = avail.Message
		if m.usernameErr == "" {
			m.usernameErr = availability.TakenMessage
		}
		return nil
	}
	m.draft.Username = candidate
	m.finishLocked(ctx)
	return nil
}

// SkipUsername finishes the wizard with the assigned username.
func (m *Machine) SkipUsername(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(models.StepUsername, "skip username"); err != nil {
		return err
	}
	m.finishLocked(ctx)
	return nil
}

func (m *Machine) finishLocked(ctx context.Context) {
	m.usernameErr = ""
	m.transitionLocked(ctx, models.StepDone)
}

func (m *Machine) usernameViewLocked() *models.UsernameView {
	v := &models.UsernameView{
		Current:   m.draft.Username,
		Candidate: m.candidate,
		Check:     m.checker.State(),
		Error:     m.usernameErr,
		Action:    actionSkip,
	}
	switch {
	case m.pending:
		v.Action = actionUpdating
	case strings.TrimSpace(m.candidate) != "":
		v.Action = actionContinue
	}
	return v
}

// usernameBlockedLocked reports whether the latest check rules out
// continuing with the current candidate.
func (m *Machine) usernameBlockedLocked() bool {
	if strings.TrimSpace(m.candidate) == "" {
		return false
	}
	check := m.checker.State()
	if check.Candidate != m.candidate {
		return false
	}
	switch check.Status {
	case models.CheckPending:
		return true
	case models.CheckResolved:
		return !check.Available && !check.Retryable
	}
	return false
}
