// File: internal/usecase/check_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/adapter"
	"pix-subscription/internal/domain/ports/repository"
	ports "pix-subscription/internal/domain/ports/usecase"
)

// Compile-time check
var _ CheckUseCase = (*checkUC)(nil)

// StatusNotFound is reported when neither we nor the gateway know the transaction.
const StatusNotFound = "not_found"

// CheckResult is the human-facing answer of a manual or poll check.
type CheckResult struct {
	Found      bool
	Status     string
	Paid       bool
	EndToEndID string
	PayerName  string
}

// Terminal reports whether polling can stop.
func (r *CheckResult) Terminal() bool {
	if r == nil {
		return false
	}
	return !r.Found || r.Paid || model.TransactionStatus(r.Status).Terminal()
}

type CheckUseCase interface {
	// Check queries the gateway for a transaction and feeds the answer into reconciliation.
	// An unknown transaction is a result with Found=false, not an error.
	Check(ctx context.Context, transactionID string, source ports.Source) (*CheckResult, error)
}

type checkUC struct {
	transactions repository.TransactionRepository
	gateway      adapter.PaymentGateway
	reconciler   ports.Reconciler
	log          *zerolog.Logger
}

func NewCheckUseCase(transactions repository.TransactionRepository, gateway adapter.PaymentGateway, reconciler ports.Reconciler, logger *zerolog.Logger) *checkUC {
	l := logger.With().Str("component", "CheckUseCase").Logger()
	return &checkUC{transactions: transactions, gateway: gateway, reconciler: reconciler, log: &l}
}

func (u *checkUC) Check(ctx context.Context, transactionID string, source ports.Source) (*CheckResult, error) {
	if transactionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	t, err := u.transactions.FindByID(ctx, repository.NoTX, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &CheckResult{Found: false, Status: StatusNotFound}, nil
		}
		return nil, err
	}
	// Terminal rows never change again; answer locally without touching the gateway.
	if t.Status.Terminal() {
		return resultFromTransaction(t), nil
	}

	state, found, err := u.gateway.QueryTransaction(ctx, transactionID)
	if err != nil {
		u.log.Warn().Err(err).Str("transaction_id", transactionID).Str("source", string(source)).Msg("gateway query failed")
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	if !found {
		u.log.Warn().Str("transaction_id", transactionID).Msg("gateway does not know transaction")
		return &CheckResult{Found: false, Status: StatusNotFound}, nil
	}

	res, err := u.reconciler.Reconcile(ctx, ports.ReconcileInput{
		TransactionID: transactionID,
		Reported:      model.NormalizeReportedStatus(state.Status),
		Value:         state.Value,
		Settlement:    state.Settlement,
		Source:        source,
	})
	if err != nil {
		return nil, err
	}
	return resultFromTransaction(res.Transaction), nil
}

func resultFromTransaction(t *model.Transaction) *CheckResult {
	return &CheckResult{
		Found:      true,
		Status:     string(t.Status),
		Paid:       t.Status == model.TransactionStatusPaid,
		EndToEndID: t.Settlement.EndToEndID,
		PayerName:  t.Settlement.PayerName,
	}
}
