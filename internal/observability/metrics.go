package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Mutation outcomes recorded by the sync layer.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeLocal      = "local"
	OutcomeRejected   = "rejected"
)

// Metrics holds the prometheus collectors shared by the ticket layer and the
// dev backend. A nil *Metrics is valid and records nothing.
type Metrics struct {
	mutations       *prometheus.CounterVec
	gatewayErrors   *prometheus.CounterVec
	eventFailures   *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketdesk",
			Name:      "mutations_total",
			Help:      "Optimistic ticket mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketdesk",
			Name:      "gateway_errors_total",
			Help:      "Gateway failures by operation and error code.",
		}, []string{"operation", "code"}),
		eventFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketdesk",
			Name:      "event_log_failures_total",
			Help:      "Audit events that could not be recorded.",
		}, []string{"type"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketdesk",
			Subsystem: "devserver",
			Name:      "requests_total",
			Help:      "Dev backend requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ticketdesk",
			Subsystem: "devserver",
			Name:      "request_duration_seconds",
			Help:      "Dev backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	if reg != nil {
		reg.MustRegister(m.mutations, m.gatewayErrors, m.eventFailures, m.requests, m.requestDuration)
	}
	return m
}

// RecordMutation counts one settled optimistic mutation.
func (m *Metrics) RecordMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
}

// RecordGatewayError counts a classified gateway failure.
func (m *Metrics) RecordGatewayError(operation, code string) {
	if m == nil {
		return
	}
	m.gatewayErrors.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) RecordEventFailure(eventType string) {
	if m == nil {
		return
	}
	m.eventFailures.WithLabelValues(eventType).Inc()
}

// RecordRequest counts a served request and its latency.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
