package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// BillingRecord is append-only: one row per successful activation.
type BillingRecord struct {
	ID            string // ULID, sorts by creation time
	UserID        string
	TransactionID string
	PlanID        string
	Amount        int64
	DurationDays  int
	CreatedAt     time.Time
}

func NewBillingRecord(userID string, tx *Transaction, durationDays int, now time.Time) *BillingRecord {
	return &BillingRecord{
		ID:            ulid.Make().String(),
		UserID:        userID,
		TransactionID: tx.ID,
		PlanID:        tx.PlanID,
		Amount:        tx.GrossAmount,
		DurationDays:  durationDays,
		CreatedAt:     now,
	}
}
