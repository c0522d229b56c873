//go:build !integration

package security_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/infra/db/sqlite"
	"pix-subscription/internal/infra/security"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptionService(t *testing.T) {
	enc, err := security.NewEncryptionService(testKey)
	require.NoError(t, err)

	sealed, err := enc.Seal("123.456.789-00")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "enc:v1:"))
	assert.NotContains(t, sealed, "123.456")

	again, err := enc.Seal("123.456.789-00")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce is random")

	plain, err := enc.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "123.456.789-00", plain)

	empty, err := enc.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	legacy, err := enc.Open("98765432100")
	require.NoError(t, err)
	assert.Equal(t, "98765432100", legacy, "unsealed values pass through")

	other, err := security.NewEncryptionService("fedcba9876543210")
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, security.ErrCiphertext)
	_, err = enc.Open("enc:v1:!!!")
	assert.ErrorIs(t, err, security.ErrCiphertext)
	_, err = enc.Open("enc:v1:AAAA")
	assert.ErrorIs(t, err, security.ErrCiphertext)

	_, err = security.NewEncryptionService("short")
	assert.Error(t, err)
}

func TestSealedTransactions_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "sealed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(ctx, db))

	enc, err := security.NewEncryptionService(testKey)
	require.NoError(t, err)
	txs := security.NewSealedTransactions(sqlite.NewTransactionRepo(db), enc)

	now := time.Now().UTC()
	require.NoError(t, txs.Create(ctx, nil, &model.Transaction{
		ID: "tx-1", PayerEmail: "a@b.co", PlanID: "7days", GrossAmount: 1490,
		Status: model.TransactionStatusPending, CreatedAt: now, ExpiresAt: now.Add(time.Minute), UpdatedAt: now,
	}))

	pending, err := txs.ListPendingExpiredBefore(ctx, nil, now.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	ok, err := txs.MarkPaidIfPending(ctx, nil, "tx-1",
		model.Settlement{EndToEndID: "E2E", PayerName: "Maria", PayerTaxID: "12345678900"}, now)
	require.NoError(t, err)
	require.True(t, ok)

	var raw string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT payer_tax_id FROM transactions WHERE id = ?`, "tx-1").Scan(&raw))
	assert.True(t, strings.HasPrefix(raw, "enc:v1:"))
	assert.NotContains(t, raw, "12345678900")

	got, err := txs.FindByID(ctx, nil, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "12345678900", got.Settlement.PayerTaxID)
	assert.Equal(t, "Maria", got.Settlement.PayerName)

	ok, err = txs.MarkTerminalIfPending(ctx, nil, "tx-1", model.TransactionStatusExpired)
	require.NoError(t, err)
	assert.False(t, ok)

	stale, err := txs.ListPendingOlderThan(ctx, nil, now.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
