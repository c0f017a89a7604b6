package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records outcomes for the async settlement consumer.
type SettlementMetrics struct {
	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewSettlementMetrics registers settlement consumer metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_events_processed_total",
		Help: "Settlement events processed, labeled by event type and outcome.",
	}, []string{"event_type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_handle_duration_seconds",
		Help:    "Duration of settlement event handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	reg.MustRegister(processed, duration)
	return &SettlementMetrics{
		processed: processed,
		duration:  duration,
	}
}

// IncProcessed increments the processed counter for the event type and outcome.
func (s *SettlementMetrics) IncProcessed(eventType, outcome string) {
	if s == nil || s.processed == nil {
		return
	}
	s.processed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveHandleDuration records how long handling an event took.
func (s *SettlementMetrics) ObserveHandleDuration(eventType string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}
