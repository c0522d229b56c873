package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pix-subscription/internal/domain/ports/adapter"
	"pix-subscription/internal/infra/metrics"
	"pix-subscription/internal/infra/worker"
)

// AsyncDispatcher runs notifications on the worker pool. Dispatch never blocks and
// never fails; a full queue drops the notice and counts it.
type AsyncDispatcher struct {
	pool     *worker.Pool
	notifier adapter.Notifier
	timeout  time.Duration
	log      *zerolog.Logger
}

var _ adapter.Dispatcher = (*AsyncDispatcher)(nil)

func NewAsyncDispatcher(pool *worker.Pool, notifier adapter.Notifier, timeout time.Duration, logger *zerolog.Logger) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	l := logger.With().Str("component", "NotificationDispatcher").Logger()
	return &AsyncDispatcher{pool: pool, notifier: notifier, timeout: timeout, log: &l}
}

func (d *AsyncDispatcher) Dispatch(n adapter.ActivationNotice) {
	err := d.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.notifier.Notify(ctx, n); err != nil {
			d.log.Warn().Err(err).Str("transaction_id", n.TransactionID).Msg("activation notification failed")
		}
		return nil
	})
	if err != nil {
		metrics.IncNotification(d.notifier.Name(), "dropped")
		d.log.Error().Err(err).Str("transaction_id", n.TransactionID).Msg("activation notification dropped")
	}
}
