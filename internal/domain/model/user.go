package model

import (
	"net/mail"
	"strings"
	"time"

	"pix-subscription/internal/domain"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusNone    PaymentStatus = "none"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// User is the subscriber record. PaymentStatus mirrors the latest transaction for display
// and is never consulted for idempotency.
type User struct {
	ID            string
	Email         string
	Premium       bool
	ExpiresAt     *time.Time
	PaymentStatus PaymentStatus
	PaymentDate   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewUser(id, email string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return &User{
		ID:            id,
		Email:         email,
		PaymentStatus: PaymentStatusNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// IsPremium applies lazy expiry: a past expiration means not premium regardless of the flag.
func (u *User) IsPremium(now time.Time) bool {
	if u == nil || !u.Premium {
		return false
	}
	return u.ExpiresAt == nil || u.ExpiresAt.After(now)
}

func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", domain.ErrInvalidArgument
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.ErrInvalidArgument
	}
	return email, nil
}
