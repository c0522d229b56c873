package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *userRepo {
	return &userRepo{db: db}
}

const userColumns = `id, email, premium, expires_at, payment_status, payment_date, created_at, updated_at`

func (r *userRepo) Create(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `INSERT INTO users (` + userColumns + `) VALUES (?,?,?,?,?,?,?,?);`
	_, err := execSQL(ctx, r.db, tx, q,
		u.ID, u.Email, u.Premium, stampPtr(u.ExpiresAt), string(u.PaymentStatus), stampPtr(u.PaymentDate),
		stamp(u.CreatedAt), stamp(u.UpdatedAt))
	return mapErr(err)
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
UPDATE users
   SET email=?, premium=?, expires_at=?, payment_status=?, payment_date=?, updated_at=?
 WHERE id=?;`
	res, err := execSQL(ctx, r.db, tx, q,
		u.Email, u.Premium, stampPtr(u.ExpiresAt), string(u.PaymentStatus), stampPtr(u.PaymentDate), stamp(u.UpdatedAt), u.ID)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id=?;`, id)
}

func (r *userRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE email=?;`, email)
}

func (r *userRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg any) (*model.User, error) {
	row, err := pickRow(ctx, r.db, tx, q, arg)
	if err != nil {
		return nil, err
	}
	var (
		u                    model.User
		status, created, upd string
		expires, paidOn      sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Premium, &expires, &status, &paidOn, &created, &upd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	u.PaymentStatus = model.PaymentStatus(status)
	if err := decodeUserTimes(&u, expires, paidOn, created, upd); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &u, nil
}

func decodeUserTimes(u *model.User, expires, paidOn sql.NullString, created, upd string) (err error) {
	if u.CreatedAt, err = parseStamp(created); err != nil {
		return err
	}
	if u.UpdatedAt, err = parseStamp(upd); err != nil {
		return err
	}
	if u.ExpiresAt, err = parseStampPtr(expires); err != nil {
		return err
	}
	u.PaymentDate, err = parseStampPtr(paidOn)
	return err
}
