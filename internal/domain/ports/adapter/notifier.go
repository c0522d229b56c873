package adapter

import (
	"context"
	"time"
)

// ActivationNotice describes a completed activation for downstream channels.
type ActivationNotice struct {
	TransactionID string
	UserID        string
	Email         string
	PlanID        string
	Amount        int64
	ExpiresAt     time.Time
	PayerName     string
	ActivatedAt   time.Time
}

// Notifier delivers an activation notice on one channel (mail, broker, chat).
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n ActivationNotice) error
}

// Dispatcher hands notices off without blocking the caller. Implementations must never
// report delivery failures back to the reconciliation path.
type Dispatcher interface {
	Dispatch(n ActivationNotice)
}
