//go:build !integration

package apiv1_test

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/adapter"
	ports "pix-subscription/internal/domain/ports/usecase"
	"pix-subscription/internal/usecase"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

type fakeCheckout struct {
	got usecase.CheckoutInput
	res *usecase.CheckoutResult
	err error
}

func (f *fakeCheckout) Checkout(ctx context.Context, in usecase.CheckoutInput) (*usecase.CheckoutResult, error) {
	f.got = in
	return f.res, f.err
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls []ports.ReconcileInput
	res   *ports.ReconcileResult
	err   error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, in ports.ReconcileInput) (*ports.ReconcileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	return f.res, f.err
}

func (f *fakeReconciler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeChecker struct {
	ids     []string
	sources []ports.Source
	res     *usecase.CheckResult
	err     error
}

func (f *fakeChecker) Check(ctx context.Context, id string, source ports.Source) (*usecase.CheckResult, error) {
	f.ids = append(f.ids, id)
	f.sources = append(f.sources, source)
	return f.res, f.err
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}

type recordingDispatcher struct {
	mu      sync.Mutex
	notices []adapter.ActivationNotice
}

func (d *recordingDispatcher) Dispatch(n adapter.ActivationNotice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, n)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.notices)
}

func paidTransaction(id string) *model.Transaction {
	return &model.Transaction{ID: id, Status: model.TransactionStatusPaid, PlanID: "7days", GrossAmount: 1490}
}
