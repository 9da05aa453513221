// Package flow implements the signup wizard as a step machine. A Machine owns
// one flow's draft; every event is serialised by its mutex and collaborator
// calls run outside the lock with the active step marked pending.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"xclone/internal/platform/metrics"
	"xclone/internal/signup/availability"
	"xclone/internal/signup/models"
	dErrors "xclone/pkg/domain-errors"
	"xclone/pkg/platform/sentinel"
	"xclone/pkg/requestcontext"
)

const (
	DefaultFallbackCode   = "123456"
	DefaultResendCooldown = 60 * time.Second

	LoginPath         = "/i/flow/login"
	HomePath          = "/home"
	EmailTemplatePath = "/resources/templates/email-verification-code-template.html"
)

// Users is the account backend as seen by a single flow.
type Users interface {
	RegisterUser(ctx context.Context, name, email string, birthDate models.BirthDate) (models.RegisteredUser, error)
	SendEmailConfirmationCode(ctx context.Context, username string) error
	VerifyEmailConfirmationCode(ctx context.Context, code, username string) error
	UpdatePassword(ctx context.Context, password, username string) error
}

var errPending = dErrors.New(dErrors.CodeConflict, "operation pending")

// Machine drives one signup flow from identity to done.
type Machine struct {
	id      uuid.UUID
	mode    models.Mode
	users   Users
	checker *availability.Checker

	fallbackCode   string
	resendCooldown time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	clock          func() time.Time

	mu      sync.Mutex
	step    models.Step
	draft   models.Draft
	pending bool
	closed  bool

	identityErr *models.StepError

	code        string
	codeErr     string
	fallback    bool
	resendAfter time.Time

	passwordErr string
	pictureErr  string

	candidate   string
	usernameErr string
}

type Option func(*Machine)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

func WithMetrics(mtr *metrics.Metrics) Option {
	return func(m *Machine) { m.metrics = mtr }
}

// WithFallbackCode sets the code shown when the confirmation email could not
// be delivered.
func WithFallbackCode(code string) Option {
	return func(m *Machine) { m.fallbackCode = code }
}

func WithResendCooldown(d time.Duration) Option {
	return func(m *Machine) { m.resendCooldown = d }
}

// WithClock sets the clock that bounds the selectable birth years.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.clock = now }
}

// New creates a flow on the identity step with an empty draft.
func New(id uuid.UUID, mode models.Mode, users Users, lookup availability.Lookup, opts ...Option) *Machine {
	m := &Machine{
		id:             id,
		mode:           mode,
		users:          users,
		step:           models.StepIdentity,
		fallbackCode:   DefaultFallbackCode,
		resendCooldown: DefaultResendCooldown,
		logger:         slog.Default(),
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.checker = availability.New(lookup, "",
		availability.WithLogger(m.logger),
		availability.WithMetrics(m.metrics),
	)
	return m
}

func (m *Machine) ID() uuid.UUID {
	return m.id
}

func (m *Machine) Mode() models.Mode {
	return m.mode
}

// Step returns the active step.
func (m *Machine) Step() models.Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Draft returns a copy of the accumulated signup data.
func (m *Machine) Draft() models.Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.draft
	if d.ProfilePicture != nil {
		p := *d.ProfilePicture
		d.ProfilePicture = &p
	}
	return d
}

// Pending reports whether a collaborator call for the active step is in
// flight.
func (m *Machine) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Close tears the flow down. In-flight availability lookups are cancelled
// and any collaborator result that arrives afterwards is discarded.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()
	m.checker.Close()
}

// Back returns to the previous step where the wizard allows it: consent goes
// back to identity and username goes back to profile picture. The target
// step shows what the draft already holds.
func (m *Machine) Back(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.liveLocked(); err != nil {
		return err
	}
	switch m.step {
	case models.StepConsent:
		m.transitionLocked(ctx, models.StepIdentity)
	case models.StepUsername:
		m.pictureErr = ""
		m.transitionLocked(ctx, models.StepProfilePicture)
	default:
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot go back from %s", m.step))
	}
	return nil
}

// liveLocked rejects events on a closed flow or while a call is pending.
func (m *Machine) liveLocked() error {
	if m.closed {
		return dErrors.Wrap(sentinel.ErrClosed, dErrors.CodeInvalidState, "signup flow closed")
	}
	if m.pending {
		return errPending
	}
	return nil
}

// guardLocked admits an event that belongs to step.
func (m *Machine) guardLocked(step models.Step, op string) error {
	if m.closed {
		return dErrors.Wrap(sentinel.ErrClosed, dErrors.CodeInvalidState, "signup flow closed")
	}
	if m.step != step {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("%s is not allowed on step %s", op, m.step))
	}
	if m.pending {
		return errPending
	}
	return nil
}

// settleLocked ends a pending call. It fails when the flow was closed while
// the call was in flight; the caller must then drop the result.
func (m *Machine) settleLocked() error {
	m.pending = false
	if m.closed {
		return dErrors.Wrap(sentinel.ErrClosed, dErrors.CodeInvalidState, "signup flow closed")
	}
	return nil
}

func (m *Machine) transitionLocked(ctx context.Context, to models.Step) {
	from := m.step
	m.step = to
	m.metrics.IncStepTransition(from.String(), to.String())
	m.logger.InfoContext(ctx, "signup step changed",
		"request_id", requestcontext.RequestID(ctx),
		"flow_id", m.id.String(),
		"from", from.String(),
		"to", to.String(),
	)
}

func (m *Machine) remoteFailureLocked(ctx context.Context, op string, err error) {
	exception := models.ExceptionOf(err)
	m.metrics.IncRemoteFailure(op, string(exception))
	m.logger.WarnContext(ctx, "signup collaborator call failed",
		"request_id", requestcontext.RequestID(ctx),
		"flow_id", m.id.String(),
		"operation", op,
		"exception", string(exception),
		"error", err,
	)
}

// remoteMessage prefers the collaborator's own message over fallback.
func remoteMessage(err error, fallback string) string {
	if re, ok := models.AsRemote(err); ok && re.Message != "" {
		return re.Message
	}
	return fallback
}
