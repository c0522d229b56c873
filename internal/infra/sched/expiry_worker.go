package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/repository"
	"pix-subscription/internal/infra/metrics"
)

const expiryLockKey = "lock:pix:expiry-sweep"

// Locker serializes sweeps across replicas. A nil Locker means single-replica mode.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// ExpiryWorker marks pending transactions past expires_at+grace as expired.
type ExpiryWorker struct {
	interval     time.Duration
	grace        time.Duration
	batch        int
	transactions repository.TransactionRepository
	locker       Locker
	log          *zerolog.Logger
}

func NewExpiryWorker(interval, grace time.Duration, batch int, transactions repository.TransactionRepository, locker Locker, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval:     interval,
		grace:        grace,
		batch:        batch,
		transactions: transactions,
		locker:       locker,
		log:          &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.Sweep(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry worker error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("pending transactions expired")
			}
		}
	}
}

// Sweep expires one batch. Losing the lock to another replica is not an error.
func (w *ExpiryWorker) Sweep(ctx context.Context) (int, error) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, expiryLockKey, w.interval)
		if errors.Is(err, domain.ErrLockNotAcquired) {
			w.log.Debug().Msg("another replica holds the expiry lock")
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), expiryLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("release expiry lock")
			}
		}()
	}

	cutoff := time.Now().Add(-w.grace)
	due, err := w.transactions.ListPendingExpiredBefore(ctx, repository.NoTX, cutoff, w.batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range due {
		ok, err := w.transactions.MarkTerminalIfPending(ctx, repository.NoTX, t.ID, model.TransactionStatusExpired)
		if err != nil {
			w.log.Warn().Err(err).Str("transaction_id", t.ID).Msg("expire transaction failed")
			continue
		}
		if ok {
			n++
		}
	}
	metrics.AddExpiredSwept(n)
	return n, nil
}
