package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, premium, expires_at, payment_status, payment_date, created_at, updated_at`

func (r *userRepo) Create(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `INSERT INTO users (` + userColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q,
		u.ID, u.Email, u.Premium, u.ExpiresAt, string(u.PaymentStatus), u.PaymentDate, u.CreatedAt, u.UpdatedAt)
	return mapErr(err)
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
UPDATE users
   SET email=$2, premium=$3, expires_at=$4, payment_status=$5, payment_date=$6, updated_at=$7
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q,
		u.ID, u.Email, u.Premium, u.ExpiresAt, string(u.PaymentStatus), u.PaymentDate, u.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id=$1;`, id)
}

func (r *userRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE email=$1;`, email)
}

func (r *userRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	var (
		u      model.User
		status string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Premium, &u.ExpiresAt, &status, &u.PaymentDate, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	u.PaymentStatus = model.PaymentStatus(status)
	return &u, nil
}
