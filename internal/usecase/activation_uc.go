// File: internal/usecase/activation_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/repository"
)

// ActivationService upgrades a user to premium for a plan's duration.
// It is only reachable through the reconciliation path, which guarantees one call per
// paid transaction.
type ActivationService struct {
	users repository.UserRepository
	plans *model.PlanCatalog
	log   *zerolog.Logger
}

func NewActivationService(users repository.UserRepository, plans *model.PlanCatalog, logger *zerolog.Logger) *ActivationService {
	l := logger.With().Str("component", "ActivationService").Logger()
	return &ActivationService{users: users, plans: plans, log: &l}
}

// Activate sets premium, payment status and expiration = now + duration(plan).
// A still-valid earlier expiration is overwritten, not extended: periods do not stack.
// It returns the updated user and the duration applied in days.
func (s *ActivationService) Activate(ctx context.Context, tx repository.Tx, user *model.User, planID string, now time.Time) (*model.User, int, error) {
	if user.IsZero() {
		return nil, 0, domain.ErrUserMissing
	}
	days := s.plans.DurationDays(planID)
	if _, known := s.plans.Lookup(planID); !known {
		s.log.Warn().Str("plan_id", planID).Int("duration_days", days).Msg("unknown plan; using default duration")
	}

	expires := now.Add(time.Duration(days) * 24 * time.Hour)
	paidAt := now
	upd := *user
	upd.Premium = true
	upd.PaymentStatus = model.PaymentStatusPaid
	upd.PaymentDate = &paidAt
	upd.ExpiresAt = &expires
	upd.UpdatedAt = now

	if err := s.users.Save(ctx, tx, &upd); err != nil {
		return nil, 0, err
	}
	s.log.Info().
		Str("user_id", upd.ID).
		Str("plan_id", planID).
		Time("expires_at", expires).
		Msg("user activated")
	return &upd, days, nil
}
