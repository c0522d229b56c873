package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		gatewayCallsTotal,
		gatewayCallDuration,
		gatewayBreakerState,
	)
}

var (
	// op: create|query ; result: ok|not_found|rejected|transient|open
	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_gateway_calls_total",
			Help: "Outbound gateway calls by operation and result.",
		},
		[]string{"op", "result"},
	)

	gatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pix_gateway_call_duration_seconds",
			Help:    "Latency of outbound gateway calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op"},
	)

	// 0 closed, 1 half-open, 2 open
	gatewayBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pix_gateway_breaker_state",
			Help: "Circuit breaker state per gateway (0 closed, 1 half-open, 2 open).",
		},
		[]string{"gateway"},
	)
)

func ObserveGatewayCall(op, result string, d time.Duration) {
	gatewayCallsTotal.WithLabelValues(norm(op), norm(result)).Inc()
	gatewayCallDuration.WithLabelValues(norm(op)).Observe(d.Seconds())
}

func SetGatewayBreakerState(gateway string, state int) {
	gatewayBreakerState.WithLabelValues(norm(gateway)).Set(float64(state))
}
