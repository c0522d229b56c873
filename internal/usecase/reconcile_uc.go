// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/adapter"
	"pix-subscription/internal/domain/ports/repository"
	ports "pix-subscription/internal/domain/ports/usecase"
)

// Compile-time check
var _ ports.Reconciler = (*reconcileUC)(nil)

// reconcileUC turns a reported gateway status into durable state. Webhook, manual check,
// client poll and the background reconciler all land here with the same input.
type reconcileUC struct {
	tm           repository.TransactionManager
	transactions repository.TransactionRepository
	users        repository.UserRepository
	billing      repository.BillingRepository
	activation   *ActivationService
	notifier     adapter.Dispatcher
	log          *zerolog.Logger
}

func NewReconcileUseCase(
	tm repository.TransactionManager,
	transactions repository.TransactionRepository,
	users repository.UserRepository,
	billing repository.BillingRepository,
	activation *ActivationService,
	notifier adapter.Dispatcher,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUseCase").Logger()
	return &reconcileUC{
		tm:           tm,
		transactions: transactions,
		users:        users,
		billing:      billing,
		activation:   activation,
		notifier:     notifier,
		log:          &l,
	}
}

func (u *reconcileUC) Reconcile(ctx context.Context, in ports.ReconcileInput) (*ports.ReconcileResult, error) {
	if in.TransactionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	l := u.log.With().
		Str("transaction_id", in.TransactionID).
		Str("source", string(in.Source)).
		Str("reported", string(in.Reported)).
		Logger()

	t, err := u.transactions.FindByID(ctx, repository.NoTX, in.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.Warn().Msg("reconcile for unknown transaction")
			return nil, fmt.Errorf("transaction %s: %w", in.TransactionID, domain.ErrNotFound)
		}
		l.Error().Err(err).Msg("load transaction failed")
		return nil, err
	}

	switch t.Status {
	case model.TransactionStatusPaid:
		if in.Reported == model.ReportedRefunded {
			l.Warn().Msg("refund reported for paid transaction; paid is terminal, ignoring")
			return &ports.ReconcileResult{Transaction: t, Outcome: ports.OutcomeIgnored}, nil
		}
		l.Info().Msg("reconcile no-op: transaction already paid")
		return &ports.ReconcileResult{Transaction: t, Outcome: ports.OutcomeAlreadyPaid}, nil
	case model.TransactionStatusExpired, model.TransactionStatusFailed:
		if in.Reported == model.ReportedPaid {
			l.Error().Str("status", string(t.Status)).Msg("late payment for terminal transaction; needs manual review")
			return &ports.ReconcileResult{Transaction: t, Outcome: ports.OutcomeIgnored}, nil
		}
		return &ports.ReconcileResult{Transaction: t, Outcome: ports.OutcomeExpired}, nil
	}

	if in.Reported != model.ReportedPaid {
		return u.settleUnpaid(ctx, &l, t, in)
	}
	if in.Value != 0 && in.Value != t.GrossAmount {
		l.Error().Int64("reported_value", in.Value).Int64("expected_value", t.GrossAmount).
			Msg("paid report does not match charged amount; needs manual review")
		return &ports.ReconcileResult{Transaction: t, Outcome: ports.OutcomeIgnored}, nil
	}
	return u.confirm(ctx, &l, t, in)
}

// settleUnpaid handles reports that are not a payment: terminal gateway answers and
// lapsed TTLs end the transaction, anything else leaves it untouched.
func (u *reconcileUC) settleUnpaid(ctx context.Context, l *zerolog.Logger, t *model.Transaction, in ports.ReconcileInput) (*ports.ReconcileResult, error) {
	var target model.TransactionStatus
	switch {
	case in.Reported == model.ReportedExpired:
		target = model.TransactionStatusExpired
	case in.Reported == model.ReportedFailed:
		target = model.TransactionStatusFailed
	case t.Expired(time.Now()):
		target = model.TransactionStatusExpired
	default:
		l.Debug().Msg("payment not yet confirmed")
		return &ports.ReconcileResult{Transaction: t, Outcome: ports.OutcomeNotConfirmed}, nil
	}

	ok, err := u.transactions.MarkTerminalIfPending(ctx, repository.NoTX, t.ID, target)
	if err != nil {
		l.Error().Err(err).Msg("terminal transition failed")
		return nil, err
	}
	if !ok {
		return u.reload(ctx, l, t.ID)
	}
	t.Status = target
	l.Info().Str("status", string(target)).Msg("transaction closed without payment")
	return &ports.ReconcileResult{Transaction: t, Outcome: ports.OutcomeExpired}, nil
}

// confirm performs the pending -> paid transition and its side effects. The conditional
// write, the user upgrade and the billing insert share one database transaction: if any
// of them fails the row stays pending and a later trigger can retry.
func (u *reconcileUC) confirm(ctx context.Context, l *zerolog.Logger, t *model.Transaction, in ports.ReconcileInput) (*ports.ReconcileResult, error) {
	now := time.Now()
	var (
		won     bool
		user    *model.User
		expires time.Time
	)
	err := u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.transactions.MarkPaidIfPending(ctx, tx, t.ID, in.Settlement, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		owner, err := u.resolveUser(ctx, tx, t)
		if err != nil {
			return err
		}
		activated, days, err := u.activation.Activate(ctx, tx, owner, t.PlanID, now)
		if err != nil {
			return fmt.Errorf("activate user %s: %w", owner.ID, err)
		}
		if err := u.billing.Append(ctx, tx, model.NewBillingRecord(activated.ID, t, days, now)); err != nil {
			return fmt.Errorf("append billing record: %w", err)
		}
		won, user, expires = true, activated, *activated.ExpiresAt
		return nil
	})
	if err != nil {
		l.Error().Err(err).Msg("paid transition rolled back")
		return nil, fmt.Errorf("reconcile %s: %w", t.ID, err)
	}
	if !won {
		l.Info().Msg("reconcile no-op: concurrent trigger already moved the transaction")
		return u.reload(ctx, l, t.ID)
	}

	t.Status = model.TransactionStatusPaid
	t.Settlement = in.Settlement
	t.PaidAt = &now
	t.UpdatedAt = now
	l.Info().Str("user_id", user.ID).Str("plan_id", t.PlanID).Int64("amount", t.GrossAmount).Msg("payment confirmed and subscription activated")

	u.notifier.Dispatch(adapter.ActivationNotice{
		TransactionID: t.ID,
		UserID:        user.ID,
		Email:         user.Email,
		PlanID:        t.PlanID,
		Amount:        t.GrossAmount,
		ExpiresAt:     expires,
		PayerName:     in.Settlement.PayerName,
		ActivatedAt:   now,
	})
	return &ports.ReconcileResult{Transaction: t, Outcome: ports.OutcomeActivated}, nil
}

func (u *reconcileUC) resolveUser(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.User, error) {
	var (
		user *model.User
		err  error
	)
	if t.UserID != nil && *t.UserID != "" {
		user, err = u.users.FindByID(ctx, tx, *t.UserID)
	} else {
		user, err = u.users.FindByEmail(ctx, tx, t.PayerEmail)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUserMissing
	}
	return user, err
}

// reload reads the row after losing a conditional write and reports what the winner did.
func (u *reconcileUC) reload(ctx context.Context, l *zerolog.Logger, id string) (*ports.ReconcileResult, error) {
	fresh, err := u.transactions.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		l.Error().Err(err).Msg("reload after lost transition failed")
		return nil, err
	}
	switch fresh.Status {
	case model.TransactionStatusPaid:
		return &ports.ReconcileResult{Transaction: fresh, Outcome: ports.OutcomeAlreadyPaid}, nil
	case model.TransactionStatusExpired, model.TransactionStatusFailed:
		return &ports.ReconcileResult{Transaction: fresh, Outcome: ports.OutcomeExpired}, nil
	default:
		return &ports.ReconcileResult{Transaction: fresh, Outcome: ports.OutcomeNotConfirmed}, nil
	}
}
