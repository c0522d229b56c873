package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		checkoutsTotal,
		activationsTotal,
		revenueTotal,
		expiredSweptTotal,
	)
}

var (
	// result: created|invalid|rejected|transient|error
	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_checkouts_total",
			Help: "Checkout attempts by result.",
		},
		[]string{"result"},
	)

	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_activations_total",
			Help: "Premium activations by plan.",
		},
		[]string{"plan"},
	)

	revenueTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pix_revenue_cents_total",
			Help: "Gross value of confirmed payments in minor units.",
		},
	)

	expiredSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pix_expired_swept_total",
			Help: "Pending transactions closed by the expiry worker.",
		},
	)
)

func IncCheckout(result string) {
	checkoutsTotal.WithLabelValues(norm(result)).Inc()
}

func IncActivation(plan string, amount int64) {
	activationsTotal.WithLabelValues(norm(plan)).Inc()
	revenueTotal.Add(float64(amount))
}

func AddExpiredSwept(n int) {
	expiredSweptTotal.Add(float64(n))
}
