package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/repository"
)

var _ repository.BillingRepository = (*billingRepo)(nil)

type billingRepo struct{ db *sql.DB }

func NewBillingRepo(db *sql.DB) *billingRepo {
	return &billingRepo{db: db}
}

// Append relies on UNIQUE(transaction_id) the same way the Postgres store does.
func (r *billingRepo) Append(ctx context.Context, tx repository.Tx, b *model.BillingRecord) error {
	const q = `
INSERT INTO billing_records (id, user_id, transaction_id, plan_id, amount, duration_days, created_at)
VALUES (?,?,?,?,?,?,?);`
	_, err := execSQL(ctx, r.db, tx, q, b.ID, b.UserID, b.TransactionID, b.PlanID, b.Amount, b.DurationDays, stamp(b.CreatedAt))
	return mapErr(err)
}

func (r *billingRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.BillingRecord, error) {
	const q = `
SELECT id, user_id, transaction_id, plan_id, amount, duration_days, created_at
  FROM billing_records WHERE user_id=? ORDER BY created_at ASC, id ASC;`
	rows, err := queryRows(ctx, r.db, tx, q, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.BillingRecord
	for rows.Next() {
		var (
			b       model.BillingRecord
			created string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.TransactionID, &b.PlanID, &b.Amount, &b.DurationDays, &created); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		if b.CreatedAt, err = parseStamp(created); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, &b)
	}
	return out, mapErr(rows.Err())
}

func (r *billingRepo) CountByTransaction(ctx context.Context, tx repository.Tx, transactionID string) (int, error) {
	row, err := pickRow(ctx, r.db, tx, `SELECT COUNT(*) FROM billing_records WHERE transaction_id=?;`, transactionID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return n, nil
}
