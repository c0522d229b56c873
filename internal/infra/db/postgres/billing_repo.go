package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/repository"
)

var _ repository.BillingRepository = (*billingRepo)(nil)

type billingRepo struct{ pool *pgxpool.Pool }

func NewBillingRepo(pool *pgxpool.Pool) *billingRepo {
	return &billingRepo{pool: pool}
}

// Append relies on UNIQUE(transaction_id): a second record for one transaction fails
// with ErrAlreadyExists and rolls back the surrounding reconciliation.
func (r *billingRepo) Append(ctx context.Context, tx repository.Tx, b *model.BillingRecord) error {
	const q = `
INSERT INTO billing_records (id, user_id, transaction_id, plan_id, amount, duration_days, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, b.ID, b.UserID, b.TransactionID, b.PlanID, b.Amount, b.DurationDays, b.CreatedAt)
	return mapErr(err)
}

func (r *billingRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.BillingRecord, error) {
	const q = `
SELECT id, user_id, transaction_id, plan_id, amount, duration_days, created_at
  FROM billing_records WHERE user_id=$1 ORDER BY created_at ASC, id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.BillingRecord
	for rows.Next() {
		b := new(model.BillingRecord)
		if err := rows.Scan(&b.ID, &b.UserID, &b.TransactionID, &b.PlanID, &b.Amount, &b.DurationDays, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, b)
	}
	return out, mapErr(rows.Err())
}

func (r *billingRepo) CountByTransaction(ctx context.Context, tx repository.Tx, transactionID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM billing_records WHERE transaction_id=$1;`, transactionID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return n, nil
}
