//go:build !integration

package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/adapter"
)

func TestParseWebhook_Accepted(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantID   string
		reported model.ReportedStatus
		value    int64
		e2e      string
	}{
		{
			name:     "json",
			body:     `{"id":"tx-1","status":"paid","value":1490,"end_to_end_id":"E2E1","payer_name":"Maria","payer_national_registration":"123"}`,
			wantID:   "tx-1",
			reported: model.ReportedPaid,
			value:    1490,
			e2e:      "E2E1",
		},
		{
			name:     "json with string value",
			body:     `{"id":"tx-2","status":"created","value":"2990"}`,
			wantID:   "tx-2",
			reported: model.ReportedPending,
			value:    2990,
		},
		{
			name:     "json nested under data",
			body:     `{"event":"transaction.updated","data":{"id":"tx-3","status":"APPROVED","value":19900}}`,
			wantID:   "tx-3",
			reported: model.ReportedPaid,
			value:    19900,
		},
		{
			name:     "form encoded",
			body:     `id=tx-4&status=paid&value=1490&end_to_end_id=E2E4&payer_name=Jo%C3%A3o+Silva`,
			wantID:   "tx-4",
			reported: model.ReportedPaid,
			value:    1490,
			e2e:      "E2E4",
		},
		{
			name:     "expired",
			body:     `{"id":"tx-5","status":"expired"}`,
			wantID:   "tx-5",
			reported: model.ReportedExpired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseWebhook([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, ev.TransactionID)
			assert.Equal(t, tt.reported, ev.Reported)
			assert.Equal(t, tt.value, ev.Value)
			assert.Equal(t, tt.e2e, ev.Settlement.EndToEndID)
		})
	}
}

func TestParseWebhook_FormDecodesPayerName(t *testing.T) {
	ev, err := ParseWebhook([]byte(`id=tx&status=paid&payer_name=Jo%C3%A3o+Silva`))
	require.NoError(t, err)
	assert.Equal(t, "João Silva", ev.Settlement.PayerName)
}

func TestParseWebhook_Rejected(t *testing.T) {
	bodies := map[string]string{
		"empty":          "",
		"plain text":     "hello gateway",
		"xml":            `<tx><id>1</id></tx>`,
		"broken json":    `{"id":"tx-1","status":`,
		"json array":     `[{"id":"tx-1"}]`,
		"missing id":     `{"status":"paid"}`,
		"missing status": `{"id":"tx-1"}`,
		"bad value":      `{"id":"tx-1","status":"paid","value":"abc"}`,
		"binary":         "\xff\xfe\x00\x01",
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := ParseWebhook([]byte(body))
			assert.ErrorIs(t, err, domain.ErrMalformedPayload)
		})
	}
}

func TestSandboxGateway(t *testing.T) {
	g := NewSandboxGateway()
	ctx := context.Background()

	charge, err := g.CreateTransaction(ctx, adapter.CreateRequest{
		GrossAmount: 1000,
		Split:       model.Split{Gross: 1000, Shares: []model.Share{{AccountID: "a", Amount: 300}}, Primary: 700},
	})
	require.NoError(t, err)

	state, found, err := g.QueryTransaction(ctx, charge.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "created", state.Status)

	require.NoError(t, g.Settle(charge.ID, model.Settlement{EndToEndID: "E1"}))
	state, _, _ = g.QueryTransaction(ctx, charge.ID)
	assert.Equal(t, "paid", state.Status)
	assert.Equal(t, "E1", state.Settlement.EndToEndID)

	_, found, err = g.QueryTransaction(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = g.CreateTransaction(ctx, adapter.CreateRequest{GrossAmount: 1000, Split: model.Split{Primary: 10}})
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)
	assert.ErrorIs(t, g.SetStatus("unknown", "paid"), domain.ErrNotFound)
}
