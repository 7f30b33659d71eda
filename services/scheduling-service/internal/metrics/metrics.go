// Package metrics exposes Prometheus instruments for the scheduling service.
// Every method is safe on a nil receiver so callers can run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Booking results.
const (
	ResultCreated         = "created"
	ResultSlotUnavailable = "slot_unavailable"
	ResultRejected        = "rejected"
	ResultError           = "error"
)

type SchedulingMetrics struct {
	bookings       *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	slotQueries    *prometheus.CounterVec
	slotLatency    *prometheus.HistogramVec
	retries        *prometheus.CounterVec
	outboxMessages prometheus.Counter
}

func New(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotkeeper",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotkeeper",
			Name:      "status_transitions_total",
			Help:      "Appointment status change attempts.",
		}, []string{"role", "to", "result"}),
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotkeeper",
			Name:      "slot_queries_total",
			Help:      "Available slot lookups by role and cache outcome.",
		}, []string{"role", "cache"}),
		slotLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slotkeeper",
			Name:      "slot_query_seconds",
			Help:      "Latency of available slot lookups.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"role"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotkeeper",
			Name:      "transaction_retries_total",
			Help:      "Operations retried after a transient storage failure.",
		}, []string{"operation"}),
		outboxMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slotkeeper",
			Name:      "outbox_published_total",
			Help:      "Outbox events delivered to Kafka.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.bookings, m.transitions, m.slotQueries, m.slotLatency, m.retries, m.outboxMessages)
	}
	return m
}

func (m *SchedulingMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(result).Inc()
}

func (m *SchedulingMetrics) ObserveTransition(role, to, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(role, to, result).Inc()
}

func (m *SchedulingMetrics) ObserveSlotQuery(role string, cacheHit bool, d time.Duration) {
	if m == nil {
		return
	}
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m.slotQueries.WithLabelValues(role, cache).Inc()
	m.slotLatency.WithLabelValues(role).Observe(d.Seconds())
}

func (m *SchedulingMetrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

func (m *SchedulingMetrics) ObserveOutboxPublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outboxMessages.Add(float64(n))
}
