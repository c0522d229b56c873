package security

import (
	"context"
	"fmt"
	"time"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*SealedTransactions)(nil)

// SealedTransactions keeps the payer tax id encrypted in storage. Callers see plaintext.
type SealedTransactions struct {
	next repository.TransactionRepository
	enc  *EncryptionService
}

func NewSealedTransactions(next repository.TransactionRepository, enc *EncryptionService) *SealedTransactions {
	return &SealedTransactions{next: next, enc: enc}
}

func (s *SealedTransactions) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	sealed := *t
	var err error
	if sealed.Settlement, err = s.seal(t.Settlement); err != nil {
		return err
	}
	return s.next.Create(ctx, tx, &sealed)
}

func (s *SealedTransactions) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	t, err := s.next.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := s.open(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SealedTransactions) MarkPaidIfPending(ctx context.Context, tx repository.Tx, id string, st model.Settlement, paidAt time.Time) (bool, error) {
	sealed, err := s.seal(st)
	if err != nil {
		return false, err
	}
	return s.next.MarkPaidIfPending(ctx, tx, id, sealed, paidAt)
}

func (s *SealedTransactions) MarkTerminalIfPending(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus) (bool, error) {
	return s.next.MarkTerminalIfPending(ctx, tx, id, status)
}

func (s *SealedTransactions) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	return s.openAll(s.next.ListPendingOlderThan(ctx, tx, olderThan, limit))
}

func (s *SealedTransactions) ListPendingExpiredBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Transaction, error) {
	return s.openAll(s.next.ListPendingExpiredBefore(ctx, tx, cutoff, limit))
}

func (s *SealedTransactions) seal(st model.Settlement) (model.Settlement, error) {
	v, err := s.enc.Seal(st.PayerTaxID)
	if err != nil {
		return st, fmt.Errorf("seal payer tax id: %w: %v", domain.ErrOperationFailed, err)
	}
	st.PayerTaxID = v
	return st, nil
}

func (s *SealedTransactions) open(t *model.Transaction) error {
	v, err := s.enc.Open(t.Settlement.PayerTaxID)
	if err != nil {
		return fmt.Errorf("transaction %s: open payer tax id: %w", t.ID, err)
	}
	t.Settlement.PayerTaxID = v
	return nil
}

func (s *SealedTransactions) openAll(list []*model.Transaction, err error) ([]*model.Transaction, error) {
	if err != nil {
		return nil, err
	}
	for _, t := range list {
		if err := s.open(t); err != nil {
			return nil, err
		}
	}
	return list, nil
}
