package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pix-subscription/internal/domain/ports/repository"
	ports "pix-subscription/internal/domain/ports/usecase"
	"pix-subscription/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending transactions and asks the gateway
// about them through the check use case. This covers lost webhooks when no client is polling.
type PaymentReconciler struct {
	checker      usecase.CheckUseCase
	transactions repository.TransactionRepository
	interval     time.Duration // how often to scan
	staleAfter   time.Duration // how old a pending transaction must be to query
	batch        int
	log          *zerolog.Logger
}

func NewPaymentReconciler(checker usecase.CheckUseCase, transactions repository.TransactionRepository, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{checker: checker, transactions: transactions, interval: interval, staleAfter: staleAfter, batch: batch, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one sweep and returns how many transactions reached a terminal state.
func (w *PaymentReconciler) Tick(ctx context.Context) int {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.transactions.ListPendingOlderThan(ctx, repository.NoTX, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending failed")
		return 0
	}
	resolved := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		res, err := w.checker.Check(ctx, p.ID, ports.SourceReconciler)
		if err != nil {
			w.log.Warn().Err(err).Str("transaction_id", p.ID).Msg("reconcile check failed")
			continue
		}
		if res.Terminal() {
			resolved++
			w.log.Info().Str("transaction_id", p.ID).Str("status", res.Status).Msg("stale transaction resolved")
		}
	}
	return resolved
}
