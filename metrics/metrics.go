// Package metrics provides Prometheus metrics for SuperApp client operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for client operations.
// A nil *Metrics or one created with New(false) is a no-op.
type Metrics struct {
	enabled bool

	// Gateway metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Session metrics
	loginsTotal   *prometheus.CounterVec
	logoutsTotal  prometheus.Counter
	authenticated prometheus.Gauge

	// Evaluation gateway
	evaluationTimeouts prometheus.Counter

	// Dashboard
	snapshotSharedTotal prometheus.Counter
}

// New creates metrics registered with the default Prometheus registerer.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	if !enabled {
		return &Metrics{}
	}
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates enabled metrics registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{enabled: true}

	m.requestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "tiqology_gateway_requests_total",
		Help: "Total gateway requests by outcome",
	}, []string{"gateway", "method", "outcome"})

	m.requestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tiqology_gateway_request_duration_seconds",
		Help:    "Gateway request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})

	m.loginsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "tiqology_session_logins_total",
		Help: "Total login attempts by result",
	}, []string{"result"})

	m.logoutsTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "tiqology_session_logouts_total",
		Help: "Total logouts",
	})

	m.authenticated = f.NewGauge(prometheus.GaugeOpts{
		Name: "tiqology_session_authenticated",
		Help: "Session state (0=unauthenticated, 1=authenticated)",
	})

	m.evaluationTimeouts = f.NewCounter(prometheus.CounterOpts{
		Name: "tiqology_evaluation_timeouts_total",
		Help: "Evaluation calls abandoned at their deadline",
	})

	m.snapshotSharedTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "tiqology_dashboard_snapshot_shared_total",
		Help: "Snapshot calls served by an in-flight request",
	})

	return m
}

func (m *Metrics) on() bool { return m != nil && m.enabled }

// ObserveRequest records one gateway call. outcome is "ok" or an error kind name.
func (m *Metrics) ObserveRequest(gateway, method, outcome string, d time.Duration) {
	if !m.on() {
		return
	}
	m.requestsTotal.WithLabelValues(gateway, method, outcome).Inc()
	m.requestDuration.WithLabelValues(gateway).Observe(d.Seconds())
}

// RecordLogin records a login attempt; result is "success" or "failure".
func (m *Metrics) RecordLogin(result string) {
	if !m.on() {
		return
	}
	m.loginsTotal.WithLabelValues(result).Inc()
}

// RecordLogout records a logout.
func (m *Metrics) RecordLogout() {
	if !m.on() {
		return
	}
	m.logoutsTotal.Inc()
}

// SetAuthenticated sets the session state gauge.
func (m *Metrics) SetAuthenticated(authenticated bool) {
	if !m.on() {
		return
	}
	state := 0.0
	if authenticated {
		state = 1.0
	}
	m.authenticated.Set(state)
}

// RecordEvaluationTimeout records an evaluation call that hit its deadline.
func (m *Metrics) RecordEvaluationTimeout() {
	if !m.on() {
		return
	}
	m.evaluationTimeouts.Inc()
}

// RecordSnapshotShared records a snapshot call that joined an in-flight request.
func (m *Metrics) RecordSnapshotShared() {
	if !m.on() {
		return
	}
	m.snapshotSharedTotal.Inc()
}
