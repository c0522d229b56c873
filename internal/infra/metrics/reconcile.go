package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"pix-subscription/internal/domain"
	ports "pix-subscription/internal/domain/ports/usecase"
)

func init() { register(reconcileTotal) }

// outcome: activated|already_paid|not_confirmed|expired|ignored|not_found|user_missing|error
var reconcileTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pix_reconcile_total",
		Help: "Reconciliation attempts by trigger source and outcome.",
	},
	[]string{"source", "outcome"},
)

func IncReconcile(source, outcome string) {
	reconcileTotal.WithLabelValues(norm(source), norm(outcome)).Inc()
}

// InstrumentedReconciler records every reconciliation attempt without changing its result.
type InstrumentedReconciler struct {
	next ports.Reconciler
}

var _ ports.Reconciler = (*InstrumentedReconciler)(nil)

func NewInstrumentedReconciler(next ports.Reconciler) *InstrumentedReconciler {
	return &InstrumentedReconciler{next: next}
}

func (r *InstrumentedReconciler) Reconcile(ctx context.Context, in ports.ReconcileInput) (*ports.ReconcileResult, error) {
	res, err := r.next.Reconcile(ctx, in)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		IncReconcile(string(in.Source), "not_found")
	case errors.Is(err, domain.ErrUserMissing):
		IncReconcile(string(in.Source), "user_missing")
	case err != nil:
		IncReconcile(string(in.Source), "error")
	default:
		IncReconcile(string(in.Source), string(res.Outcome))
		if res.Outcome == ports.OutcomeActivated && res.Transaction != nil {
			IncActivation(res.Transaction.PlanID, res.Transaction.GrossAmount)
		}
	}
	return res, err
}
