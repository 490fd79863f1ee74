// Package metrics collects Prometheus metrics for the scheduling engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by engine components.
type Recorder interface {
	RecordIntakesGenerated(count int)
	RecordRegenerationFailure(reason string)
	RecordRegenerationLatency(duration time.Duration)
	RecordReconciliation(outcome string)
	RecordReminderSent(kind string)
	RecordTreatmentsDeactivated(count int)
}

// Reconciliation outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeNoop      = "noop"
	OutcomeFailed    = "failed"
)

type Collector struct {
	intakesGenerated      prometheus.Counter
	regenFail             *prometheus.CounterVec
	regenLatency          prometheus.Histogram
	reconciliations       *prometheus.CounterVec
	remindersSent         *prometheus.CounterVec
	treatmentsDeactivated prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		intakesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doselit_intakes_generated_total",
			Help: "Intakes materialized by the schedule regenerator.",
		}),
		regenFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doselit_regeneration_failures_total",
			Help: "Per-medication regeneration failures by reason.",
		}, []string{"reason"}),
		regenLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "doselit_regeneration_latency_seconds",
			Help:    "Duration of a full regeneration cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doselit_reconciliations_total",
			Help: "Reconciliation commit results by outcome.",
		}, []string{"outcome"}),
		remindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doselit_reminders_sent_total",
			Help: "Reminders delivered by kind.",
		}, []string{"kind"}),
		treatmentsDeactivated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doselit_treatments_deactivated_total",
			Help: "Treatments deactivated after their end date.",
		}),
	}

	reg.MustRegister(
		c.intakesGenerated,
		c.regenFail,
		c.regenLatency,
		c.reconciliations,
		c.remindersSent,
		c.treatmentsDeactivated,
	)

	return c
}

func (c *Collector) RecordIntakesGenerated(count int) {
	c.intakesGenerated.Add(float64(count))
}

func (c *Collector) RecordRegenerationFailure(reason string) {
	c.regenFail.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordRegenerationLatency(duration time.Duration) {
	c.regenLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordReconciliation(outcome string) {
	c.reconciliations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordReminderSent(kind string) {
	c.remindersSent.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordTreatmentsDeactivated(count int) {
	c.treatmentsDeactivated.Add(float64(count))
}

// Nop discards every measurement. Used by one-shot CLI commands.
type Nop struct{}

func (Nop) RecordIntakesGenerated(int) {}
func (Nop) RecordRegenerationFailure(string) {}
func (Nop) RecordRegenerationLatency(time.Duration) {}
func (Nop) RecordReconciliation(string) {}
func (Nop) RecordReminderSent(string) {}
func (Nop) RecordTreatmentsDeactivated(int) {}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
