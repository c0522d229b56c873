//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/adapter"
	"pix-subscription/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// In-memory store
// =============================

// memStore backs the mock repositories. WithTx serializes transactions and restores a
// snapshot when fn fails, which is enough to observe rollback behavior.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	transactions map[string]model.Transaction
	users        map[string]model.User
	billing      []model.BillingRecord

	// failures injected by tests
	userSaveErr   error
	billingErr    error
	markPaidCalls int
}

func newMemStore() *memStore {
	return &memStore{
		transactions: map[string]model.Transaction{},
		users:        map[string]model.User{},
	}
}

func (s *memStore) snapshot() (map[string]model.Transaction, map[string]model.User, []model.BillingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txs := make(map[string]model.Transaction, len(s.transactions))
	for k, v := range s.transactions {
		txs[k] = v
	}
	us := make(map[string]model.User, len(s.users))
	for k, v := range s.users {
		us[k] = v
	}
	bs := append([]model.BillingRecord(nil), s.billing...)
	return txs, us, bs
}

func (s *memStore) restore(txs map[string]model.Transaction, us map[string]model.User, bs []model.BillingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions, s.users, s.billing = txs, us, bs
}

func (s *memStore) putTransaction(t *model.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.ID] = *t
}

func (s *memStore) putUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
}

func (s *memStore) transaction(id string) model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions[id]
}

func (s *memStore) user(id string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memStore) billingCount(transactionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.billing {
		if b.TransactionID == transactionID {
			n++
		}
	}
	return n
}

// ---- TransactionManager ----

type memTxManager struct{ s *memStore }

var _ repository.TransactionManager = (*memTxManager)(nil)

type memTx struct{}

func (m *memTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()
	txs, us, bs := m.s.snapshot()
	if err := fn(ctx, memTx{}); err != nil {
		m.s.restore(txs, us, bs)
		return err
	}
	return nil
}

// ---- TransactionRepository ----

type memTransactionRepo struct{ s *memStore }

var _ repository.TransactionRepository = (*memTransactionRepo)(nil)

func (r *memTransactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.transactions[t.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.s.transactions[t.ID] = *t
	return nil
}

func (r *memTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (r *memTransactionRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, id string, st model.Settlement, paidAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.markPaidCalls++
	t, ok := r.s.transactions[id]
	if !ok || t.Status != model.TransactionStatusPending {
		return false, nil
	}
	t.Status = model.TransactionStatusPaid
	t.Settlement = st
	t.PaidAt = &paidAt
	t.UpdatedAt = paidAt
	r.s.transactions[id] = t
	return true, nil
}

func (r *memTransactionRepo) MarkTerminalIfPending(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok || t.Status != model.TransactionStatusPending {
		return false, nil
	}
	t.Status = status
	r.s.transactions[id] = t
	return true, nil
}

func (r *memTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.s.transactions {
		if t.Status == model.TransactionStatusPending && t.CreatedAt.Before(olderThan) && len(out) < limit {
			cp := t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTransactionRepo) ListPendingExpiredBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.s.transactions {
		if t.Status == model.TransactionStatusPending && t.ExpiresAt.Before(cutoff) && len(out) < limit {
			cp := t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- UserRepository ----

type memUserRepo struct{ s *memStore }

var _ repository.UserRepository = (*memUserRepo)(nil)

func (r *memUserRepo) Create(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return domain.ErrAlreadyExists
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.userSaveErr != nil {
		return r.s.userSaveErr
	}
	if _, ok := r.s.users[u.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- BillingRepository ----

type memBillingRepo struct{ s *memStore }

var _ repository.BillingRepository = (*memBillingRepo)(nil)

func (r *memBillingRepo) Append(ctx context.Context, tx repository.Tx, rec *model.BillingRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.billingErr != nil {
		return r.s.billingErr
	}
	for _, b := range r.s.billing {
		if b.TransactionID == rec.TransactionID {
			return domain.ErrAlreadyExists
		}
	}
	r.s.billing = append(r.s.billing, *rec)
	return nil
}

func (r *memBillingRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.BillingRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.BillingRecord
	for _, b := range r.s.billing {
		if b.UserID == userID {
			cp := b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memBillingRepo) CountByTransaction(ctx context.Context, tx repository.Tx, transactionID string) (int, error) {
	return r.s.billingCount(transactionID), nil
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu      sync.Mutex
	seq     int
	Created []adapter.CreateRequest
	Queries int

	CreateFunc func(ctx context.Context, req adapter.CreateRequest) (*adapter.CreatedCharge, error)
	QueryFunc  func(ctx context.Context, id string) (*adapter.ChargeState, bool, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) CreateTransaction(ctx context.Context, req adapter.CreateRequest) (*adapter.CreatedCharge, error) {
	g.mu.Lock()
	g.Created = append(g.Created, req)
	g.seq++
	seq := g.seq
	g.mu.Unlock()
	if g.CreateFunc != nil {
		return g.CreateFunc(ctx, req)
	}
	id := fmt.Sprintf("tx-%d", seq)
	return &adapter.CreatedCharge{ID: id, Status: "created", RenderableCode: "000201-" + id, Value: req.GrossAmount}, nil
}

func (g *MockPaymentGateway) QueryTransaction(ctx context.Context, id string) (*adapter.ChargeState, bool, error) {
	g.mu.Lock()
	g.Queries++
	g.mu.Unlock()
	if g.QueryFunc != nil {
		return g.QueryFunc(ctx, id)
	}
	return &adapter.ChargeState{ID: id, Status: "created"}, true, nil
}

func (g *MockPaymentGateway) queryCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Queries
}

// ---- Recording Dispatcher ----

type recordingDispatcher struct {
	mu      sync.Mutex
	notices []adapter.ActivationNotice
}

var _ adapter.Dispatcher = (*recordingDispatcher)(nil)

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
