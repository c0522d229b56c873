//go:build !integration

package usecase_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/adapter"
	ports "pix-subscription/internal/domain/ports/usecase"
	"pix-subscription/internal/usecase"
)

func TestCheck_ManualCheckThenWebhook(t *testing.T) {
	f := newReconcileFixture(t)
	u := f.seed(t, "tx-b", "1month", 2990)
	var gatewayStatus atomic.Value
	gatewayStatus.Store("created")
	gw := &MockPaymentGateway{QueryFunc: func(ctx context.Context, id string) (*adapter.ChargeState, bool, error) {
		return &adapter.ChargeState{ID: id, Status: gatewayStatus.Load().(string), Value: 2990}, true, nil
	}}
	uc := usecase.NewCheckUseCase(f.txs, gw, f.reconciler, newTestLogger())
	ctx := context.Background()

	res, err := uc.Check(ctx, "tx-b", ports.SourceManual)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.False(t, res.Paid)
	assert.Equal(t, "pending", res.Status)
	assert.False(t, res.Terminal())
	assert.False(t, f.store.user(u.ID).Premium)

	gatewayStatus.Store("paid")
	_, err = f.reconciler.Reconcile(ctx, paidInput("tx-b", ports.SourceWebhook))
	require.NoError(t, err)

	res, err = uc.Check(ctx, "tx-b", ports.SourceManual)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.True(t, res.Terminal())
	assert.Equal(t, "E2E-tx-b", res.EndToEndID)
	assert.Equal(t, 1, f.store.billingCount("tx-b"))
	assert.Equal(t, 1, gw.queryCount(), "terminal rows are answered locally")
}

func TestCheck_PaidAtGatewayActivates(t *testing.T) {
	f := newReconcileFixture(t)
	u := f.seed(t, "tx-g", "7days", 1490)
	gw := &MockPaymentGateway{QueryFunc: func(ctx context.Context, id string) (*adapter.ChargeState, bool, error) {
		return &adapter.ChargeState{ID: id, Status: "PAID", Settlement: model.Settlement{EndToEndID: "E2E-9", PayerName: "Joao"}}, true, nil
	}}
	uc := usecase.NewCheckUseCase(f.txs, gw, f.reconciler, newTestLogger())

	res, err := uc.Check(context.Background(), "tx-g", ports.SourcePoll)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, "Joao", res.PayerName)
	assert.True(t, f.store.user(u.ID).Premium)
}

func TestCheck_GatewayAmountMismatchKeepsPending(t *testing.T) {
	f := newReconcileFixture(t)
	u := f.seed(t, "tx-m", "1month", 2990)
	gw := &MockPaymentGateway{QueryFunc: func(ctx context.Context, id string) (*adapter.ChargeState, bool, error) {
		return &adapter.ChargeState{ID: id, Status: "paid", Value: 990}, true, nil
	}}
	uc := usecase.NewCheckUseCase(f.txs, gw, f.reconciler, newTestLogger())

	res, err := uc.Check(context.Background(), "tx-m", ports.SourceManual)
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Equal(t, "pending", res.Status)
	assert.False(t, f.store.user(u.ID).Premium)
	assert.Zero(t, f.store.billingCount("tx-m"))
}

func TestCheck_NotFound(t *testing.T) {
	t.Run("unknown locally", func(t *testing.T) {
		f := newReconcileFixture(t)
		gw := &MockPaymentGateway{}
		uc := usecase.NewCheckUseCase(f.txs, gw, f.reconciler, newTestLogger())

		res, err := uc.Check(context.Background(), "nope", ports.SourceManual)
		require.NoError(t, err)
		assert.False(t, res.Found)
		assert.Equal(t, usecase.StatusNotFound, res.Status)
		assert.True(t, res.Terminal())
		assert.Equal(t, 0, gw.queryCount())
	})

	t.Run("unknown at gateway", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.seed(t, "tx-n", "7days", 1490)
		gw := &MockPaymentGateway{QueryFunc: func(ctx context.Context, id string) (*adapter.ChargeState, bool, error) {
			return nil, false, nil
		}}
		uc := usecase.NewCheckUseCase(f.txs, gw, f.reconciler, newTestLogger())

		res, err := uc.Check(context.Background(), "tx-n", ports.SourcePoll)
		require.NoError(t, err)
		assert.False(t, res.Found)
		assert.False(t, res.Paid)
		assert.Equal(t, model.TransactionStatusPending, f.store.transaction("tx-n").Status)
	})
}

func TestCheck_GatewayFailure(t *testing.T) {
	f := newReconcileFixture(t)
	u := f.seed(t, "tx-t", "7days", 1490)
	gw := &MockPaymentGateway{QueryFunc: func(ctx context.Context, id string) (*adapter.ChargeState, bool, error) {
		return nil, false, &domain.GatewayError{Op: "query", StatusCode: 502, Reason: "bad gateway"}
	}}
	uc := usecase.NewCheckUseCase(f.txs, gw, f.reconciler, newTestLogger())

	_, err := uc.Check(context.Background(), "tx-t", ports.SourceManual)
	assert.ErrorIs(t, err, domain.ErrGatewayTransient)
	assert.False(t, f.store.user(u.ID).Premium)
	assert.Equal(t, model.TransactionStatusPending, f.store.transaction("tx-t").Status)
}

func TestCheck_EmptyID(t *testing.T) {
	f := newReconcileFixture(t)
	uc := usecase.NewCheckUseCase(f.txs, &MockPaymentGateway{}, f.reconciler, newTestLogger())
	_, err := uc.Check(context.Background(), "", ports.SourceManual)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
