package poller

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrWindowElapsed is returned when the poll window closes before a terminal answer.
var ErrWindowElapsed = errors.New("poll window elapsed")

// Status is one answer of the check endpoint.
type Status struct {
	Found      bool   `json:"-"`
	Status     string `json:"status"`
	Paid       bool   `json:"paid"`
	EndToEndID string `json:"end_to_end_id,omitempty"`
	PayerName  string `json:"payer_name,omitempty"`
}

// Terminal reports whether further polling is pointless.
func (s *Status) Terminal() bool {
	if s == nil {
		return false
	}
	switch {
	case !s.Found, s.Paid:
		return true
	case s.Status == "paid", s.Status == "expired", s.Status == "failed":
		return true
	}
	return false
}

// Checker runs one manual check.
type Checker interface {
	Check(ctx context.Context, transactionID string) (*Status, error)
}

// Poller repeats a check on a fixed interval until the answer is terminal or the
// window closes. Failed checks are logged and retried on the next tick.
type Poller struct {
	checker  Checker
	interval time.Duration
	window   time.Duration
	log      *zerolog.Logger
}

func New(checker Checker, interval, window time.Duration, logger *zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	l := logger.With().Str("component", "Poller").Logger()
	return &Poller{checker: checker, interval: interval, window: window, log: &l}
}

// Run polls transactionID. It returns the terminal status, or the last status seen
// together with ErrWindowElapsed or the context error.
func (p *Poller) Run(parent context.Context, transactionID string) (*Status, error) {
	ctx, cancel := context.WithTimeout(parent, p.window)
	defer cancel()
	l := p.log.With().Str("transaction_id", transactionID).Logger()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last *Status
	for attempt := 1; ; attempt++ {
		st, err := p.checker.Check(ctx, transactionID)
		switch {
		case err != nil && ctx.Err() != nil:
			// the window closed mid-request
		case err != nil:
			l.Warn().Err(err).Int("attempt", attempt).Msg("check failed, retrying")
		default:
			last = st
			l.Debug().Int("attempt", attempt).Str("status", st.Status).Bool("paid", st.Paid).Msg("checked")
			if st.Terminal() {
				return st, nil
			}
		}

		select {
		case <-ctx.Done():
			// the caller's own cancellation or deadline wins over the window
			if err := parent.Err(); err != nil {
				return last, err
			}
			l.Info().Dur("window", p.window).Msg("poll window elapsed")
			return last, ErrWindowElapsed
		case <-ticker.C:
		}
	}
}
