package notify

import (
	"context"
	"errors"
	"fmt"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/ports/adapter"
	"pix-subscription/internal/infra/metrics"
)

// Multi fans a notice out to every channel. One failing channel does not stop the others.
type Multi struct {
	channels []adapter.Notifier
}

var _ adapter.Notifier = (*Multi)(nil)

func NewMulti(channels ...adapter.Notifier) *Multi {
	var cs []adapter.Notifier
	for _, c := range channels {
		if c != nil {
			cs = append(cs, c)
		}
	}
	return &Multi{channels: cs}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Len() int { return len(m.channels) }

func (m *Multi) Notify(ctx context.Context, n adapter.ActivationNotice) error {
	var errs []error
	for _, c := range m.channels {
		err := c.Notify(ctx, n)
		switch {
		case err == nil:
			metrics.IncNotification(c.Name(), "sent")
		case errors.Is(err, domain.ErrNotificationSkipped):
			metrics.IncNotification(c.Name(), "skipped")
		default:
			metrics.IncNotification(c.Name(), "error")
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}
