package repository

import (
	"context"
	"time"

	"pix-subscription/internal/domain/model"
)

// -----------------------------
// Transactions
// -----------------------------

type TransactionRepository interface {
	Create(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Transaction, error)
	// MarkPaidIfPending is the linearization point of reconciliation: a single conditional
	// write that succeeds only while the row is still pending. It reports whether this
	// caller performed the transition.
	MarkPaidIfPending(ctx context.Context, tx Tx, id string, s model.Settlement, paidAt time.Time) (bool, error)
	// MarkTerminalIfPending moves a pending row to expired or failed.
	MarkTerminalIfPending(ctx context.Context, tx Tx, id string, status model.TransactionStatus) (bool, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)
	ListPendingExpiredBefore(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Transaction, error)
}

// -----------------------------
// Billing history
// -----------------------------

type BillingRepository interface {
	// Append inserts a record; a second record for the same transaction is ErrAlreadyExists.
	Append(ctx context.Context, tx Tx, r *model.BillingRecord) error
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.BillingRecord, error)
	CountByTransaction(ctx context.Context, tx Tx, transactionID string) (int, error)
}
