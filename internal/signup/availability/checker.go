// Package availability runs username availability lookups for the signup
// wizard. Each lookup is tagged with a token in issuance order; only the
// newest token may change what the user sees.
package availability

import (
	"context"
	"log/slog"
	"sync"

	"xclone/internal/platform/metrics"
	"xclone/internal/signup/models"
	"xclone/internal/signup/validate"
	dErrors "xclone/pkg/domain-errors"
	"xclone/pkg/platform/sentinel"
	"xclone/pkg/requestcontext"
)

const (
	// TransportFailureMessage is shown when the lookup could not complete.
	TransportFailureMessage = "Unable to check username availability. Please try again."
	// TakenMessage is shown when the service rejects a name without saying why.
	TakenMessage = "That username has been taken. Please choose another."
)

// Lookup is the remote username-uniqueness collaborator.
type Lookup interface {
	CheckUsernameAvailability(ctx context.Context, username string) (models.Availability, error)
}

// Checker owns the availability state of one username field.
type Checker struct {
	lookup  Lookup
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	current string
	seq     uint64
	state   models.UsernameCheck
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	wg      sync.WaitGroup
}

type Option func(*Checker)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

// New creates a Checker. current is the user's existing username, which is
// always treated as available without asking the service.
func New(lookup Lookup, current string, opts ...Option) *Checker {
	c := &Checker{
		lookup:  lookup,
		current: current,
		logger:  slog.Default(),
		state:   models.UsernameCheck{Status: models.CheckIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCurrent updates the username considered unchanged.
func (c *Checker) SetCurrent(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = username
}

// State returns the visible state of the latest query.
func (c *Checker) State() models.UsernameCheck {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Issue starts a lookup for candidate and invalidates every older one. The
// returned state is Pending unless the answer is known locally.
func (c *Checker) Issue(ctx context.Context, candidate string) models.UsernameCheck {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.state
	}

	if local, ok := c.localResultLocked(candidate); ok {
		c.supersedeLocked()
		c.seq++
		local.Token = c.seq
		c.state = local
		return c.state
	}

	token, done := c.beginLocked(candidate)
	// The lookup outlives the request that triggered it; keep its values,
	// drop its cancellation.
	qctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		avail, err := c.lookup.CheckUsernameAvailability(qctx, candidate)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.applyLocked(qctx, token, candidate, done, avail, err)
	}()
	return c.state
}

// Await blocks until the latest query settles or ctx is done.
func (c *Checker) Await(ctx context.Context) (models.UsernameCheck, error) {
	for {
		c.mu.Lock()
		if c.state.Status != models.CheckPending || c.done == nil {
			state := c.state
			c.mu.Unlock()
			return state, nil
		}
		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return c.State(), ctx.Err()
		}
	}
}

// Verify re-checks candidate right before submission. It refuses while a
// check for the same candidate is still pending, and otherwise performs one
// more synchronous lookup so a result that raced the last edit cannot slip
// through.
func (c *Checker) Verify(ctx context.Context, candidate string) (models.Availability, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.Availability{}, dErrors.Wrap(sentinel.ErrClosed, dErrors.CodeInvalidState, "username check closed")
	}
	if c.state.Status == models.CheckPending && c.state.Candidate == candidate {
		c.mu.Unlock()
		return models.Availability{}, dErrors.New(dErrors.CodeConflict, "username check pending")
	}
	if local, ok := c.localResultLocked(candidate); ok {
		c.supersedeLocked()
		c.seq++
		local.Token = c.seq
		c.state = local
		c.mu.Unlock()
		if !local.Available {
			return models.Availability{}, dErrors.New(dErrors.CodeValidation, local.Message)
		}
		return models.Availability{Available: true}, nil
	}
	token, done := c.beginLocked(candidate)
	c.mu.Unlock()

	avail, err := c.lookup.CheckUsernameAvailability(ctx, candidate)

	c.mu.Lock()
	c.applyLocked(ctx, token, candidate, done, avail, err)
	c.mu.Unlock()

	if err != nil {
		return models.Availability{}, dErrors.Wrap(err, dErrors.CodeUnavailable, TransportFailureMessage)
	}
	if !avail.Available && avail.Message == "" {
		avail.Message = TakenMessage
	}
	return avail, nil
}

// Close cancels in-flight lookups and waits for them to return. Later
// resolutions are discarded.
func (c *Checker) Close() {
	c.mu.Lock()
	c.closed = true
	c.supersedeLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Checker) localResultLocked(candidate string) (models.UsernameCheck, bool) {
	if c.current != "" && candidate == c.current {
		c.metrics.IncUsernameCheck("unchanged")
		return models.UsernameCheck{
			Status:    models.CheckResolved,
			Candidate: candidate,
			Available: true,
			Local:     true,
		}, true
	}
	if res := validate.Username(candidate); !res.Valid {
		c.metrics.IncUsernameCheck("invalid")
		return models.UsernameCheck{
			Status:    models.CheckResolved,
			Candidate: candidate,
			Message:   res.Error,
			Local:     true,
		}, true
	}
	return models.UsernameCheck{}, false
}

// beginLocked supersedes the pending query and marks a new one pending.
func (c *Checker) beginLocked(candidate string) (uint64, chan struct{}) {
	c.supersedeLocked()
	c.seq++
	done := make(chan struct{})
	c.done = done
	c.state = models.UsernameCheck{
		Status:    models.CheckPending,
		Token:     c.seq,
		Candidate: candidate,
	}
	return c.seq, done
}

// supersedeLocked cancels the pending lookup and wakes its waiters.
func (c *Checker) supersedeLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}

// applyLocked publishes a resolution if token is still the newest one.
func (c *Checker) applyLocked(ctx context.Context, token uint64, candidate string, done chan struct{}, avail models.Availability, err error) {
	if c.closed || token != c.seq {
		c.metrics.IncUsernameCheck("stale")
		c.logger.DebugContext(ctx, "discarding stale username check",
			"request_id", requestcontext.RequestID(ctx),
			"token", token,
			"latest", c.seq,
		)
		return
	}

	state := models.UsernameCheck{
		Status:    models.CheckResolved,
		Token:     token,
		Candidate: candidate,
	}
	switch {
	case err != nil:
		c.metrics.IncUsernameCheck("error")
		c.logger.WarnContext(ctx, "username availability check failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		state.Message = TransportFailureMessage
		state.Retryable = true
	case avail.Available:
		c.metrics.IncUsernameCheck("available")
		state.Available = true
		state.Message = avail.Message
	default:
		c.metrics.IncUsernameCheck("taken")
		state.Message = avail.Message
		if state.Message == "" {
			state.Message = TakenMessage
		}
	}
	c.state = state

	if c.done == done {
		c.done = nil
		c.cancel = nil
	}
	close(done)
}
