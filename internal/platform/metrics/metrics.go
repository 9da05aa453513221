package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the signup service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FlowsStarted    prometheus.Counter
	FlowsEnded      *prometheus.CounterVec
	StepTransitions *prometheus.CounterVec
	RemoteFailures  *prometheus.CounterVec
	FallbackCodes   prometheus.Counter
	UsernameChecks  *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
}

// New creates and registers all metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FlowsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "xclone_signup_flows_started_total",
			Help: "Total number of signup flows started",
		}),
		FlowsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xclone_signup_flows_ended_total",
			Help: "Total number of signup flows ended, by outcome (completed, abandoned, expired)",
		}, []string{"outcome"}),
		StepTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xclone_signup_step_transitions_total",
			Help: "Signup step transitions",
		}, []string{"from", "to"}),
		RemoteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xclone_signup_remote_failures_total",
			Help: "Failed collaborator calls by operation and exception tag",
		}, []string{"operation", "exception"}),
		FallbackCodes: factory.NewCounter(prometheus.CounterOpts{
			Name: "xclone_signup_fallback_codes_total",
			Help: "Times the fixed confirmation code was shown because email delivery failed",
		}),
		UsernameChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xclone_username_checks_total",
			Help: "Username availability checks by outcome",
		}, []string{"outcome"}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xclone_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncFlowsStarted() {
	if m == nil {
		return
	}
	m.FlowsStarted.Inc()
}

// IncFlowsEnded records how a flow left the store.
func (m *Metrics) IncFlowsEnded(outcome string) {
	if m == nil {
		return
	}
	m.FlowsEnded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncStepTransition(from, to string) {
	if m == nil {
		return
	}
	m.StepTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncRemoteFailure(operation, exception string) {
	if m == nil {
		return
	}
	if exception == "" {
		exception = "none"
	}
	m.RemoteFailures.WithLabelValues(operation, exception).Inc()
}

func (m *Metrics) IncFallbackCode() {
	if m == nil {
		return
	}
	m.FallbackCodes.Inc()
}

// IncUsernameCheck records a check outcome: available, taken, invalid,
// unchanged, error or stale.
func (m *Metrics) IncUsernameCheck(outcome string) {
	if m == nil {
		return
	}
	m.UsernameChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(method, route, status).Observe(seconds)
}
