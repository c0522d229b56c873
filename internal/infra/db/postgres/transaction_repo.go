package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `id, user_id, payer_email, plan_id, gross_amount, status,
  end_to_end_id, payer_name, payer_tax_id, code, created_at, expires_at, paid_at, updated_at,
  attribution_source, attribution_campaign, attribution_url`

func (r *transactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);`
	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.UserID, t.PayerEmail, t.PlanID, t.GrossAmount, string(t.Status),
		t.Settlement.EndToEndID, t.Settlement.PayerName, t.Settlement.PayerTaxID, t.Code,
		t.CreatedAt, t.ExpiresAt, t.PaidAt, t.UpdatedAt,
		t.Attribution.Source, t.Attribution.Campaign, t.Attribution.URL,
	)
	return mapErr(err)
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return t, nil
}

// MarkPaidIfPending atomically updates status only when the current status is 'pending'.
func (r *transactionRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, id string, s model.Settlement, paidAt time.Time) (bool, error) {
	const q = `
UPDATE transactions
   SET status = 'paid',
       end_to_end_id = $2,
       payer_name = $3,
       payer_tax_id = $4,
       paid_at = $5,
       updated_at = $5
 WHERE id = $1
   AND status = 'pending'`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, s.EndToEndID, s.PayerName, s.PayerTaxID, paidAt)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *transactionRepo) MarkTerminalIfPending(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus) (bool, error) {
	if status != model.TransactionStatusExpired && status != model.TransactionStatusFailed {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE transactions
   SET status = $2,
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending'`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status))
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions
 WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, normLimit(limit))
}

func (r *transactionRepo) ListPendingExpiredBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions
 WHERE status='pending' AND expires_at < $1 ORDER BY expires_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, cutoff, normLimit(limit))
}

func (r *transactionRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Transaction, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, t)
	}
	return out, mapErr(rows.Err())
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t      model.Transaction
		status string
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.PayerEmail, &t.PlanID, &t.GrossAmount, &status,
		&t.Settlement.EndToEndID, &t.Settlement.PayerName, &t.Settlement.PayerTaxID, &t.Code,
		&t.CreatedAt, &t.ExpiresAt, &t.PaidAt, &t.UpdatedAt,
		&t.Attribution.Source, &t.Attribution.Campaign, &t.Attribution.URL,
	)
	if err != nil {
		return nil, err
	}
	t.Status = model.TransactionStatus(status)
	return &t, nil
}

func normLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
