package dispatch

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for remindersFired.
const (
	outcomeDelivered   = "delivered"
	outcomeUnresolved  = "unresolved"
	outcomeFailed      = "failed"
	outcomeRequeued    = "requeued"
	outcomeEventFired  = "event_delivered"
	outcomeEventFailed = "event_failed"
	outcomeEventPast   = "event_dropped"
)

var (
	remindersFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_fired_total",
			Help: "Reminder fire attempts by outcome.",
		},
		[]string{"outcome"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_sweep_duration_seconds",
			Help:    "Duration of one dispatch sweep.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	eventTimersPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_reminders_pending",
			Help: "Event-triggered reminders waiting for their fire time.",
		},
	)
)

func init() {
	prometheus.MustRegister(remindersFired, sweepDuration, eventTimersPending)
}
