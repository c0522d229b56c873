package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsTotal) }

var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pix_notifications_total",
		Help: "Activation notifications by channel and status.",
	},
	[]string{"channel", "status"}, // status: sent|error|skipped|dropped
)

func IncNotification(channel, status string) {
	notificationsTotal.WithLabelValues(norm(channel), norm(status)).Inc()
}
