package usecase

import (
	"context"

	"pix-subscription/internal/domain/model"
)

// Source names the trigger that observed a gateway status.
type Source string

const (
	SourceWebhook    Source = "webhook"
	SourceManual     Source = "manual"
	SourcePoll       Source = "poll"
	SourceReconciler Source = "reconciler"
)

// ReconcileInput is the single contract every trigger adapter normalizes into.
type ReconcileInput struct {
	TransactionID string
	Reported      model.ReportedStatus
	// Value is the amount the gateway reports in centavos; zero when the trigger carries none.
	Value      int64
	Settlement model.Settlement
	Source     Source
}

// Outcome says what a reconciliation attempt did.
type Outcome string

const (
	OutcomeActivated    Outcome = "activated"     // this call performed the paid transition
	OutcomeAlreadyPaid  Outcome = "already_paid"  // idempotent no-op
	OutcomeNotConfirmed Outcome = "not_confirmed" // still pending
	OutcomeExpired      Outcome = "expired"       // moved to (or already in) expired/failed
	OutcomeIgnored      Outcome = "ignored"       // report conflicts with a terminal state
)

type ReconcileResult struct {
	Transaction *model.Transaction
	Outcome     Outcome
}

func (r *ReconcileResult) Paid() bool {
	return r != nil && r.Transaction != nil && r.Transaction.Status == model.TransactionStatusPaid
}

// Reconciler is what trigger adapters depend on.
type Reconciler interface {
	Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error)
}
