package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"xclone/internal/platform/metrics"
	"xclone/internal/signup/flow"
	"xclone/internal/signup/models"
	dErrors "xclone/pkg/domain-errors"
	"xclone/pkg/platform/sentinel"
	"xclone/pkg/requestcontext"
)

type noLookup struct{}

func (noLookup) CheckUsernameAvailability(context.Context, string) (models.Availability, error) {
	return models.Availability{Available: true}, nil
}

type InMemoryFlowStoreSuite struct {
	suite.Suite
	store   *InMemoryFlowStore
	metrics *metrics.Metrics
	now     time.Time
}

func TestInMemoryFlowStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryFlowStoreSuite))
}

func (s *InMemoryFlowStoreSuite) SetupTest() {
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.store = New(30*time.Minute,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
}

func (s *InMemoryFlowStoreSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(d))
}

func (s *InMemoryFlowStoreSuite) newMachine() *flow.Machine {
	return flow.New(uuid.New(), models.ModePage, nil, noLookup{})
}

func (s *InMemoryFlowStoreSuite) TestSaveAndFind() {
	m := s.newMachine()
	s.Require().NoError(s.store.Save(s.at(0), m))

	found, err := s.store.Find(s.at(time.Minute), m.ID())
	s.Require().NoError(err)
	s.Same(m, found)
	s.Equal(1, s.store.Len())
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.FlowsStarted))
}

func (s *InMemoryFlowStoreSuite) TestFindUnknown() {
	_, err := s.store.Find(s.at(0), uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryFlowStoreSuite) TestFindKeepsFlowAlive() {
	m := s.newMachine()
	s.Require().NoError(s.store.Save(s.at(0), m))

	_, err := s.store.Find(s.at(20*time.Minute), m.ID())
	s.Require().NoError(err)
	_, err = s.store.Find(s.at(40*time.Minute), m.ID())
	s.Require().NoError(err, "idle time counts from the last access")
}

func (s *InMemoryFlowStoreSuite) TestFindExpiredTearsDown() {
	m := s.newMachine()
	s.Require().NoError(s.store.Save(s.at(0), m))

	_, err := s.store.Find(s.at(31*time.Minute), m.ID())
	s.ErrorIs(err, sentinel.ErrExpired)
	s.Zero(s.store.Len())
	s.True(dErrors.HasCode(m.SetName("late"), dErrors.CodeInvalidState), "expired flow is closed")
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.FlowsEnded.WithLabelValues(OutcomeExpired)))
}

func (s *InMemoryFlowStoreSuite) TestDelete() {
	m := s.newMachine()
	s.Require().NoError(s.store.Save(s.at(0), m))

	s.Require().NoError(s.store.Delete(s.at(0), m.ID(), OutcomeCompleted))
	_, err := s.store.Find(s.at(0), m.ID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.at(0), m.ID(), OutcomeCompleted), sentinel.ErrNotFound)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.FlowsEnded.WithLabelValues(OutcomeCompleted)))
}

func (s *InMemoryFlowStoreSuite) TestRemoveExpiredAt() {
	stale := s.newMachine()
	fresh := s.newMachine()
	s.Require().NoError(s.store.Save(s.at(0), stale))
	s.Require().NoError(s.store.Save(s.at(20*time.Minute), fresh))

	removed := s.store.RemoveExpiredAt(context.Background(), s.now.Add(45*time.Minute))

	s.Equal(1, removed)
	s.Equal(1, s.store.Len())
	_, err := s.store.Find(s.at(45*time.Minute), fresh.ID())
	s.NoError(err)
}

func (s *InMemoryFlowStoreSuite) TestZeroTTLNeverExpires() {
	st := New(0)
	m := s.newMachine()
	s.Require().NoError(st.Save(s.at(0), m))
	s.Zero(st.RemoveExpiredAt(context.Background(), s.now.Add(1000*time.Hour)))
}

func (s *InMemoryFlowStoreSuite) TestCloseAll() {
	a, b := s.newMachine(), s.newMachine()
	s.Require().NoError(s.store.Save(s.at(0), a))
	s.Require().NoError(s.store.Save(s.at(0), b))

	s.store.CloseAll(context.Background())

	s.Zero(s.store.Len())
	s.Equal(2.0, promtestutil.ToFloat64(s.metrics.FlowsEnded.WithLabelValues(OutcomeAbandoned)))
}

func (s *InMemoryFlowStoreSuite) TestStartCleanupStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.store.StartCleanup(ctx, time.Millisecond) }()

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}
