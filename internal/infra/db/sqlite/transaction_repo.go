package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ db *sql.DB }

func NewTransactionRepo(db *sql.DB) *transactionRepo {
	return &transactionRepo{db: db}
}

const transactionColumns = `id, user_id, payer_email, plan_id, gross_amount, status,
  end_to_end_id, payer_name, payer_tax_id, code, created_at, expires_at, paid_at, updated_at,
  attribution_source, attribution_campaign, attribution_url`

func (r *transactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`
	var userID any
	if t.UserID != nil {
		userID = *t.UserID
	}
	_, err := execSQL(ctx, r.db, tx, q,
		t.ID, userID, t.PayerEmail, t.PlanID, t.GrossAmount, string(t.Status),
		t.Settlement.EndToEndID, t.Settlement.PayerName, t.Settlement.PayerTaxID, t.Code,
		stamp(t.CreatedAt), stamp(t.ExpiresAt), stampPtr(t.PaidAt), stamp(t.UpdatedAt),
		t.Attribution.Source, t.Attribution.Campaign, t.Attribution.URL,
	)
	return mapErr(err)
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	row, err := pickRow(ctx, r.db, tx, `SELECT `+transactionColumns+` FROM transactions WHERE id=?;`, id)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return t, nil
}

// MarkPaidIfPending updates status only when the stored status is still 'pending'.
func (r *transactionRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, id string, s model.Settlement, paidAt time.Time) (bool, error) {
	const q = `
UPDATE transactions
   SET status = 'paid',
       end_to_end_id = ?,
       payer_name = ?,
       payer_tax_id = ?,
       paid_at = ?,
       updated_at = ?
 WHERE id = ?
   AND status = 'pending'`
	ts := stamp(paidAt)
	res, err := execSQL(ctx, r.db, tx, q, s.EndToEndID, s.PayerName, s.PayerTaxID, ts, ts, id)
	if err != nil {
		return false, mapErr(err)
	}
	return affected(res)
}

func (r *transactionRepo) MarkTerminalIfPending(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus) (bool, error) {
	if status != model.TransactionStatusExpired && status != model.TransactionStatusFailed {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE transactions
   SET status = ?,
       updated_at = ?
 WHERE id = ?
   AND status = 'pending'`
	res, err := execSQL(ctx, r.db, tx, q, string(status), stamp(time.Now()), id)
	if err != nil {
		return false, mapErr(err)
	}
	return affected(res)
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions
 WHERE status='pending' AND created_at < ? ORDER BY created_at ASC LIMIT ?;`
	return r.list(ctx, tx, q, stamp(olderThan), normLimit(limit))
}

func (r *transactionRepo) ListPendingExpiredBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions
 WHERE status='pending' AND expires_at < ? ORDER BY expires_at ASC LIMIT ?;`
	return r.list(ctx, tx, q, stamp(cutoff), normLimit(limit))
}

func (r *transactionRepo) list(ctx context.Context, tx repository.Tx, q string, args ...any) ([]*model.Transaction, error) {
	rows, err := queryRows(ctx, r.db, tx, q, args...)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var (
		t                             model.Transaction
		userID, paidAt                sql.NullString
		status, created, expires, upd string
	)
	err := row.Scan(
		&t.ID, &userID, &t.PayerEmail, &t.PlanID, &t.GrossAmount, &status,
		&t.Settlement.EndToEndID, &t.Settlement.PayerName, &t.Settlement.PayerTaxID, &t.Code,
		&created, &expires, &paidAt, &upd,
		&t.Attribution.Source, &t.Attribution.Campaign, &t.Attribution.URL,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		t.UserID = &userID.String
	}
	t.Status = model.TransactionStatus(status)
	if t.CreatedAt, err = parseStamp(created); err != nil {
		return nil, err
	}
	if t.ExpiresAt, err = parseStamp(expires); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseStamp(upd); err != nil {
		return nil, err
	}
	if t.PaidAt, err = parseStampPtr(paidAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func normLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
