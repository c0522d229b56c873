// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/adapter"
	"pix-subscription/internal/domain/ports/repository"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutInput struct {
	GrossAmount int64
	PayerEmail  string
	PlanID      string
	Attribution model.Attribution
}

type CheckoutResult struct {
	Transaction  *model.Transaction
	QRCodeBase64 string
}

type CheckoutUseCase interface {
	// Checkout validates the request, computes the split, opens the charge at the gateway
	// and stores a pending transaction.
	Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error)
}

type checkoutUC struct {
	transactions repository.TransactionRepository
	users        repository.UserRepository
	gateway      adapter.PaymentGateway
	split        *model.SplitCalculator
	plans        *model.PlanCatalog
	callbackURL  string
	ttl          time.Duration
	log          *zerolog.Logger
}

func NewCheckoutUseCase(
	transactions repository.TransactionRepository,
	users repository.UserRepository,
	gateway adapter.PaymentGateway,
	split *model.SplitCalculator,
	plans *model.PlanCatalog,
	callbackURL string,
	ttl time.Duration,
	logger *zerolog.Logger,
) *checkoutUC {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	l := logger.With().Str("component", "CheckoutUseCase").Logger()
	return &checkoutUC{
		transactions: transactions,
		users:        users,
		gateway:      gateway,
		split:        split,
		plans:        plans,
		callbackURL:  callbackURL,
		ttl:          ttl,
		log:          &l,
	}
}

func (u *checkoutUC) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	email, err := model.NormalizeEmail(in.PayerEmail)
	if err != nil {
		return nil, fmt.Errorf("payer email: %w", err)
	}
	planID := strings.TrimSpace(in.PlanID)
	if planID == "" {
		return nil, fmt.Errorf("plan id: %w", domain.ErrInvalidArgument)
	}
	if plan, ok := u.plans.Lookup(planID); ok && plan.Price != in.GrossAmount {
		return nil, fmt.Errorf("plan %s costs %d, got %d: %w", planID, plan.Price, in.GrossAmount, domain.ErrPlanPriceMismatch)
	}
	split, err := u.split.Compute(in.GrossAmount)
	if err != nil {
		return nil, err
	}

	user, err := u.ensureUser(ctx, email)
	if err != nil {
		return nil, err
	}

	charge, err := u.gateway.CreateTransaction(ctx, adapter.CreateRequest{
		GrossAmount: in.GrossAmount,
		Split:       split,
		CallbackURL: u.callbackURL,
	})
	if err != nil {
		u.log.Warn().Err(err).Str("plan_id", planID).Int64("amount", in.GrossAmount).Msg("gateway create failed")
		return nil, fmt.Errorf("create charge: %w", err)
	}
	if charge.ID == "" {
		return nil, &domain.GatewayError{Op: "create", Reason: "gateway returned no transaction id"}
	}

	now := time.Now()
	userID := user.ID
	t := &model.Transaction{
		ID:          charge.ID,
		UserID:      &userID,
		PayerEmail:  email,
		PlanID:      planID,
		GrossAmount: in.GrossAmount,
		Status:      model.TransactionStatusPending,
		Code:        charge.RenderableCode,
		CreatedAt:   now,
		ExpiresAt:   now.Add(u.ttl),
		UpdatedAt:   now,
		Attribution: in.Attribution,
	}
	if err := u.transactions.Create(ctx, repository.NoTX, t); err != nil {
		// The charge exists remotely; it stays queryable at the gateway until its TTL.
		u.log.Error().Err(err).Str("transaction_id", t.ID).Msg("charge created but not persisted")
		return nil, err
	}

	if !user.IsPremium(now) && user.PaymentStatus != model.PaymentStatusPending {
		user.PaymentStatus = model.PaymentStatusPending
		user.UpdatedAt = now
		if err := u.users.Save(ctx, repository.NoTX, user); err != nil {
			u.log.Warn().Err(err).Str("user_id", user.ID).Msg("payment status mirror not updated")
		}
	}

	u.log.Info().
		Str("transaction_id", t.ID).
		Str("user_id", user.ID).
		Str("plan_id", planID).
		Int64("amount", t.GrossAmount).
		Int64("primary_amount", split.Primary).
		Msg("checkout created")
	return &CheckoutResult{Transaction: t, QRCodeBase64: charge.QRCodeBase64}, nil
}

// ensureUser finds the payer's account or provisions a non-premium one.
func (u *checkoutUC) ensureUser(ctx context.Context, email string) (*model.User, error) {
	user, err := u.users.FindByEmail(ctx, repository.NoTX, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	user, err = model.NewUser("", email)
	if err != nil {
		return nil, err
	}
	if err := u.users.Create(ctx, repository.NoTX, user); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// another checkout for the same email won the insert
			return u.users.FindByEmail(ctx, repository.NoTX, email)
		}
		return nil, err
	}
	return user, nil
}
