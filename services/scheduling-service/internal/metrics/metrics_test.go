package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveBooking(ResultCreated)
	m.ObserveTransition("client", "cancelled", "ok")
	m.ObserveSlotQuery("client", true, time.Millisecond)
	m.ObserveRetry("create_appointment")
	m.ObserveOutboxPublished(3)
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBooking(ResultCreated)
	m.ObserveBooking(ResultCreated)
	m.ObserveBooking(ResultSlotUnavailable)
	m.ObserveSlotQuery("operator", false, 5*time.Millisecond)
	m.ObserveOutboxPublished(4)
	m.ObserveOutboxPublished(0)

	if got := testutil.ToFloat64(m.bookings.WithLabelValues(ResultCreated)); got != 2 {
		t.Fatalf("expected 2 created bookings, got %v", got)
	}
	if got := testutil.ToFloat64(m.bookings.WithLabelValues(ResultSlotUnavailable)); got != 1 {
		t.Fatalf("expected 1 rejected booking, got %v", got)
	}
	if got := testutil.ToFloat64(m.slotQueries.WithLabelValues("operator", "miss")); got != 1 {
		t.Fatalf("expected 1 slot query miss, got %v", got)
	}
	if got := testutil.ToFloat64(m.outboxMessages); got != 4 {
		t.Fatalf("expected 4 outbox messages, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}
