package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fan-out metrics
	NotificationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_notifications_created_total",
			Help: "Total number of notifications created by fan-out",
		},
	)

	NotificationsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_notifications_skipped_total",
			Help: "Total number of recipients skipped by fan-out, by reason",
		},
		[]string{"reason"},
	)

	FanOutFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_fanout_failures_total",
			Help: "Total number of per-recipient fan-out failures",
		},
	)

	// Push metrics
	PushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_pushes_total",
			Help: "Total number of messages written to live connections, by event",
		},
		[]string{"event"},
	)

	PushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_push_failures_total",
			Help: "Total number of failed writes to live connections",
		},
	)

	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alert_active_connections",
			Help: "Number of registered real-time connections",
		},
	)

	// Escalation metrics
	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_escalations_total",
			Help: "Total number of alert level promotions, by target level",
		},
		[]string{"level"},
	)

	EscalationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_escalation_failures_total",
			Help: "Total number of alerts whose escalation failed",
		},
	)
)

const (
	SkipExisting  = "existing"
	SkipDuplicate = "duplicate"
)

func init() {
	prometheus.MustRegister(NotificationsCreated)
	prometheus.MustRegister(NotificationsSkipped)
	prometheus.MustRegister(FanOutFailures)
	prometheus.MustRegister(PushesTotal)
	prometheus.MustRegister(PushFailures)
	prometheus.MustRegister(ActiveConnections)
	prometheus.MustRegister(EscalationsTotal)
	prometheus.MustRegister(EscalationFailures)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
