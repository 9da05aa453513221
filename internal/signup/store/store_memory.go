// Package store keeps live signup flows in process memory. Drafts are never
// written anywhere else, so a restart discards every flow in progress.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"xclone/internal/platform/metrics"
	"xclone/internal/signup/flow"
	"xclone/pkg/platform/sentinel"
	"xclone/pkg/requestcontext"
)

// Outcomes recorded when a flow leaves the store.
const (
	OutcomeCompleted = "completed"
	OutcomeAbandoned = "abandoned"
	OutcomeExpired   = "expired"
)

// Error Contract:
// - Return sentinel.ErrNotFound when the flow does not exist
// - Return sentinel.ErrExpired when the flow outlived its idle TTL; the flow
//   is torn down as part of the lookup

type entry struct {
	machine  *flow.Machine
	lastSeen time.Time
}

// InMemoryFlowStore indexes flows by ID and expires idle ones.
type InMemoryFlowStore struct {
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	flows map[uuid.UUID]*entry
}

type Option func(*InMemoryFlowStore)

func WithLogger(logger *slog.Logger) Option {
	return func(s *InMemoryFlowStore) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *InMemoryFlowStore) { s.metrics = m }
}

// New constructs an empty store. Flows idle for longer than ttl expire; a
// zero ttl keeps them until they are deleted.
func New(ttl time.Duration, opts ...Option) *InMemoryFlowStore {
	s := &InMemoryFlowStore{
		ttl:    ttl,
		logger: slog.Default(),
		flows:  make(map[uuid.UUID]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryFlowStore) Save(ctx context.Context, m *flow.Machine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.flows[m.ID()]; !exists {
		s.metrics.IncFlowsStarted()
	}
	s.flows[m.ID()] = &entry{machine: m, lastSeen: requestcontext.Now(ctx)}
	return nil
}

// Find returns the flow and marks it as seen.
func (s *InMemoryFlowStore) Find(ctx context.Context, id uuid.UUID) (*flow.Machine, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	e, ok := s.flows[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("signup flow %s: %w", id, sentinel.ErrNotFound)
	}
	if s.expiredLocked(e, now) {
		delete(s.flows, id)
		s.mu.Unlock()
		s.end(ctx, e.machine, OutcomeExpired)
		return nil, fmt.Errorf("signup flow %s: %w", id, sentinel.ErrExpired)
	}
	e.lastSeen = now
	s.mu.Unlock()
	return e.machine, nil
}

// Delete tears the flow down and records why it ended.
func (s *InMemoryFlowStore) Delete(ctx context.Context, id uuid.UUID, outcome string) error {
	s.mu.Lock()
	e, ok := s.flows[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("signup flow %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.flows, id)
	s.mu.Unlock()

	s.end(ctx, e.machine, outcome)
	return nil
}

func (s *InMemoryFlowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flows)
}

// StartCleanup runs periodic expiry of idle flows until ctx is cancelled.
func (s *InMemoryFlowStore) StartCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RemoveExpiredAt(ctx, time.Now())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RemoveExpiredAt tears down every flow idle as of now and returns how many
// were removed. Exported for testability; background cleanup passes
// wall-clock time.
func (s *InMemoryFlowStore) RemoveExpiredAt(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	var expired []*flow.Machine
	for id, e := range s.flows {
		if s.expiredLocked(e, now) {
			expired = append(expired, e.machine)
			delete(s.flows, id)
		}
	}
	s.mu.Unlock()

	for _, m := range expired {
		s.end(ctx, m, OutcomeExpired)
	}
	return len(expired)
}

// CloseAll tears down every flow, as on shutdown.
func (s *InMemoryFlowStore) CloseAll(ctx context.Context) {
	s.mu.Lock()
	flows := s.flows
	s.flows = make(map[uuid.UUID]*entry)
	s.mu.Unlock()

	for _, e := range flows {
		s.end(ctx, e.machine, OutcomeAbandoned)
	}
}

func (s *InMemoryFlowStore) expiredLocked(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl
}

// end closes m outside the store lock; Close waits for in-flight lookups.
func (s *InMemoryFlowStore) end(ctx context.Context, m *flow.Machine, outcome string) {
	m.Close()
	s.metrics.IncFlowsEnded(outcome)
	s.logger.InfoContext(ctx, "signup flow ended",
		"request_id", requestcontext.RequestID(ctx),
		"flow_id", m.ID().String(),
		"outcome", outcome,
	)
}
