package repository

import (
	"context"

	"pix-subscription/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Create(ctx context.Context, tx Tx, u *model.User) error
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
}
