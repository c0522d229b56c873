package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		WebhookRequests,
		WebhookDuration,
		CheckRequests,
	)
}

var (
	// Webhook deliveries grouped by result and bounded reason.
	// result: ok|fail
	// reason (fail only): malformed|unauthorized|not_found|too_large|reconcile_error
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_webhook_requests_total",
			Help: "Gateway webhook deliveries by result and reason.",
		},
		[]string{"result", "reason"},
	)

	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pix_webhook_duration_seconds",
			Help:    "Duration of the webhook handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// Manual and poll checks by outcome.
	// outcome: paid|pending|expired|failed|not_found|rate_limited|error
	CheckRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_check_requests_total",
			Help: "Payment status checks by outcome.",
		},
		[]string{"outcome"},
	)
)

func ObserveWebhook(result, reason string, d time.Duration) {
	if result == "ok" {
		reason = ""
	}
	WebhookRequests.WithLabelValues(norm(result), reason).Inc()
	WebhookDuration.WithLabelValues(norm(result)).Observe(d.Seconds())
}

func IncCheck(outcome string) {
	CheckRequests.WithLabelValues(norm(outcome)).Inc()
}
