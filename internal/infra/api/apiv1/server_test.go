//go:build !integration

package apiv1_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	ports "pix-subscription/internal/domain/ports/usecase"
	"pix-subscription/internal/infra/api/apiv1"
	"pix-subscription/internal/usecase"
)

func newRouter(srv *apiv1.Server) *chi.Mux {
	r := chi.NewRouter()
	apiv1.RegisterAPIV1(r, srv)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestCheckout_Created(t *testing.T) {
	expires := time.Date(2026, 5, 1, 12, 15, 0, 0, time.UTC)
	co := &fakeCheckout{res: &usecase.CheckoutResult{
		Transaction: &model.Transaction{
			ID: "tx-1", Status: model.TransactionStatusPending, Code: "000201pix", GrossAmount: 1490, ExpiresAt: expires,
		},
		QRCodeBase64: "iVBOR",
	}}
	tokens := apiv1.NewCheckTokens("s3cret", time.Hour)
	r := newRouter(apiv1.NewServer(co, nil, nil, apiv1.Options{Tokens: tokens}, newLogger()))

	rec := do(t, r, http.MethodPost, "/api/v1/checkout",
		`{"gross_amount":1490,"payer_email":"maria@example.com","plan_id":"7days",
		  "attribution":{"source":"<b>instagram</b>","campaign":"spring","url":"https://shop.test/?a=1"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out apiv1.CheckoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "tx-1", out.TransactionID)
	assert.Equal(t, "000201pix", out.RenderableCode)
	assert.Equal(t, "iVBOR", out.QRCodeBase64)
	assert.Equal(t, "pending", out.Status)
	assert.Equal(t, int64(1490), out.GrossAmount)
	assert.True(t, expires.Equal(out.ExpiresAt))
	require.NotEmpty(t, out.CheckToken)
	assert.NoError(t, tokens.Verify(out.CheckToken, "tx-1"))

	assert.Equal(t, "instagram", co.got.Attribution.Source, "markup is stripped")
	assert.Equal(t, "spring", co.got.Attribution.Campaign)
	assert.Equal(t, "maria@example.com", co.got.PayerEmail)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		err       error
		code      int
		reason    string
		retryable bool
	}{
		{name: "broken json", body: `{"gross_amount":`, code: http.StatusBadRequest},
		{name: "unknown field", body: `{"gross_amount":1490,"foo":1}`, code: http.StatusBadRequest},
		{name: "amount out of range", err: fmt.Errorf("gross 50: %w", domain.ErrAmountOutOfRange), code: http.StatusBadRequest},
		{name: "bad email", err: domain.ErrInvalidArgument, code: http.StatusBadRequest},
		{name: "price mismatch", err: domain.ErrPlanPriceMismatch, code: http.StatusBadRequest},
		{
			name:   "gateway rejection keeps reason",
			err:    fmt.Errorf("create charge: %w", &domain.GatewayError{Op: "create", StatusCode: 422, Reason: "split account not found"}),
			code:   http.StatusUnprocessableEntity,
			reason: "split account not found",
		},
		{
			name:      "gateway 5xx is retryable",
			err:       &domain.GatewayError{Op: "create", StatusCode: 502, Reason: "bad gateway"},
			code:      http.StatusServiceUnavailable,
			retryable: true,
		},
		{name: "circuit open", err: domain.ErrGatewayUnavailable, code: http.StatusServiceUnavailable, retryable: true},
		{name: "store failure", err: errors.Join(domain.ErrOperationFailed, errors.New("disk full")), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			if body == "" {
				body = `{"gross_amount":1490,"payer_email":"a@b.co","plan_id":"7days"}`
			}
			r := newRouter(apiv1.NewServer(&fakeCheckout{err: tt.err}, nil, nil, apiv1.Options{}, newLogger()))
			rec := do(t, r, http.MethodPost, "/api/v1/checkout", body)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			m := decode(t, rec)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, m["reason"])
			}
			if tt.retryable {
				assert.Equal(t, true, m["retryable"])
			} else {
				assert.NotContains(t, m, "retryable")
			}
			assert.NotContains(t, rec.Body.String(), "disk full", "driver details stay in logs")
		})
	}
}

func TestWebhook(t *testing.T) {
	const paidBody = `{"id":"tx-1","status":"paid","value":1490,"end_to_end_id":"E2E1","payer_name":"Maria"}`

	t.Run("paid report reconciles with webhook source", func(t *testing.T) {
		rc := &fakeReconciler{res: &ports.ReconcileResult{Transaction: paidTransaction("tx-1"), Outcome: ports.OutcomeActivated}}
		r := newRouter(apiv1.NewServer(nil, rc, nil, apiv1.Options{}, newLogger()))

		rec := do(t, r, http.MethodPost, apiv1.DefaultWebhookPath, paidBody)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		m := decode(t, rec)
		assert.Equal(t, true, m["success"])
		assert.Equal(t, "paid", m["status"])

		require.Equal(t, 1, rc.count())
		in := rc.calls[0]
		assert.Equal(t, "tx-1", in.TransactionID)
		assert.Equal(t, model.ReportedPaid, in.Reported)
		assert.Equal(t, ports.SourceWebhook, in.Source)
		assert.Equal(t, "E2E1", in.Settlement.EndToEndID)
		assert.Equal(t, int64(1490), in.Value)
	})

	t.Run("custom path and form body", func(t *testing.T) {
		rc := &fakeReconciler{res: &ports.ReconcileResult{Transaction: paidTransaction("tx-9"), Outcome: ports.OutcomeAlreadyPaid}}
		r := newRouter(apiv1.NewServer(nil, rc, nil, apiv1.Options{WebhookPath: "/hooks/pix"}, newLogger()))
		rec := do(t, r, http.MethodPost, "/hooks/pix", "id=tx-9&status=paid", "Content-Type", "application/x-www-form-urlencoded")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, rc.count())
	})

	t.Run("malformed bodies never reach reconciliation", func(t *testing.T) {
		rc := &fakeReconciler{}
		r := newRouter(apiv1.NewServer(nil, rc, nil, apiv1.Options{}, newLogger()))
		for _, body := range []string{"", "not a payload", `{"status":"paid"}`, `{"id":"tx-1"}`, "\xff\xfe"} {
			rec := do(t, r, http.MethodPost, apiv1.DefaultWebhookPath, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		}
		assert.Zero(t, rc.count())
	})

	t.Run("oversized body", func(t *testing.T) {
		rc := &fakeReconciler{}
		r := newRouter(apiv1.NewServer(nil, rc, nil, apiv1.Options{}, newLogger()))
		big := `{"id":"tx-1","status":"paid","pad":"` + strings.Repeat("x", 70<<10) + `"}`
		rec := do(t, r, http.MethodPost, apiv1.DefaultWebhookPath, big)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Zero(t, rc.count())
	})

	t.Run("shared secret", func(t *testing.T) {
		rc := &fakeReconciler{res: &ports.ReconcileResult{Transaction: paidTransaction("tx-1"), Outcome: ports.OutcomeActivated}}
		r := newRouter(apiv1.NewServer(nil, rc, nil, apiv1.Options{WebhookSecret: "hook-secret"}, newLogger()))

		rec := do(t, r, http.MethodPost, apiv1.DefaultWebhookPath, paidBody)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		rec = do(t, r, http.MethodPost, apiv1.DefaultWebhookPath, paidBody, "X-Webhook-Token", "wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, rc.count())

		rec = do(t, r, http.MethodPost, apiv1.DefaultWebhookPath, paidBody, "X-Webhook-Token", "hook-secret")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown transaction and activation failure", func(t *testing.T) {
		rc := &fakeReconciler{err: fmt.Errorf("transaction tx-1: %w", domain.ErrNotFound)}
		r := newRouter(apiv1.NewServer(nil, rc, nil, apiv1.Options{}, newLogger()))
		assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, apiv1.DefaultWebhookPath, paidBody).Code)

		rc.err = fmt.Errorf("reconcile tx-1: %w", domain.ErrUserMissing)
		assert.Equal(t, http.StatusInternalServerError, do(t, r, http.MethodPost, apiv1.DefaultWebhookPath, paidBody).Code)
	})
}

func TestCheck(t *testing.T) {
	t.Run("manual check and poll status use their own sources", func(t *testing.T) {
		ch := &fakeChecker{res: &usecase.CheckResult{Found: true, Status: "paid", Paid: true, EndToEndID: "E2E", PayerName: "Maria"}}
		r := newRouter(apiv1.NewServer(nil, nil, ch, apiv1.Options{}, newLogger()))

		rec := do(t, r, http.MethodPost, "/api/v1/payments/check", `{"transaction_id":"tx-1"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var out apiv1.CheckResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, apiv1.CheckResponse{Status: "paid", Paid: true, EndToEndID: "E2E", PayerName: "Maria"}, out)

		rec = do(t, r, http.MethodGet, "/api/v1/payments/tx-1/status", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []ports.Source{ports.SourceManual, ports.SourcePoll}, ch.sources)
		assert.Equal(t, []string{"tx-1", "tx-1"}, ch.ids)
	})

	t.Run("pending answer reports paid false", func(t *testing.T) {
		ch := &fakeChecker{res: &usecase.CheckResult{Found: true, Status: "pending"}}
		r := newRouter(apiv1.NewServer(nil, nil, ch, apiv1.Options{}, newLogger()))
		rec := do(t, r, http.MethodGet, "/api/v1/payments/tx-1/status", "")
		require.Equal(t, http.StatusOK, rec.Code)
		m := decode(t, rec)
		assert.Equal(t, false, m["paid"])
		assert.Equal(t, "pending", m["status"])
	})

	t.Run("not found is distinct from not paid", func(t *testing.T) {
		ch := &fakeChecker{res: &usecase.CheckResult{Found: false, Status: usecase.StatusNotFound}}
		r := newRouter(apiv1.NewServer(nil, nil, ch, apiv1.Options{}, newLogger()))
		rec := do(t, r, http.MethodPost, "/api/v1/payments/check", `{"transaction_id":"ghost"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
		m := decode(t, rec)
		assert.Equal(t, "not_found", m["status"])
		assert.Equal(t, false, m["paid"])
	})

	t.Run("gateway outage is retryable", func(t *testing.T) {
		ch := &fakeChecker{err: fmt.Errorf("query transaction: %w", domain.ErrGatewayUnavailable)}
		r := newRouter(apiv1.NewServer(nil, nil, ch, apiv1.Options{}, newLogger()))
		rec := do(t, r, http.MethodPost, "/api/v1/payments/check", `{"transaction_id":"tx-1"}`)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, true, decode(t, rec)["retryable"])
	})

	t.Run("missing id and bad body", func(t *testing.T) {
		ch := &fakeChecker{}
		r := newRouter(apiv1.NewServer(nil, nil, ch, apiv1.Options{}, newLogger()))
		assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/v1/payments/check", `{}`).Code)
		assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/v1/payments/check", `nope`).Code)
		assert.Empty(t, ch.ids)
	})

	t.Run("rate limited", func(t *testing.T) {
		ch := &fakeChecker{res: &usecase.CheckResult{Found: true, Status: "pending"}}
		lim := &fakeLimiter{allow: false}
		r := newRouter(apiv1.NewServer(nil, nil, ch, apiv1.Options{Limiter: lim}, newLogger()))
		rec := do(t, r, http.MethodGet, "/api/v1/payments/tx-1/status", "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, []string{"check:tx-1"}, lim.keys)
		assert.Empty(t, ch.ids)

		lim.allow, lim.err = false, errors.New("redis down")
		rec = do(t, r, http.MethodGet, "/api/v1/payments/tx-1/status", "")
		assert.Equal(t, http.StatusOK, rec.Code, "limiter outage fails open")
	})

	t.Run("check token", func(t *testing.T) {
		ch := &fakeChecker{res: &usecase.CheckResult{Found: true, Status: "pending"}}
		tokens := apiv1.NewCheckTokens("s3cret", time.Hour)
		r := newRouter(apiv1.NewServer(nil, nil, ch, apiv1.Options{Tokens: tokens}, newLogger()))

		assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/api/v1/payments/tx-1/status", "").Code)

		other, err := tokens.Mint("tx-2")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized,
			do(t, r, http.MethodGet, "/api/v1/payments/tx-1/status", "", "Authorization", "Bearer "+other).Code)

		own, err := tokens.Mint("tx-1")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK,
			do(t, r, http.MethodGet, "/api/v1/payments/tx-1/status", "", "Authorization", "Bearer "+own).Code)
		assert.Equal(t, []string{"tx-1"}, ch.ids)
	})
}

func TestCheckTokens(t *testing.T) {
	assert.Nil(t, apiv1.NewCheckTokens("", time.Hour), "no secret disables tokens")

	tokens := apiv1.NewCheckTokens("s3cret", time.Hour)
	tok, err := tokens.Mint("tx-1")
	require.NoError(t, err)
	assert.NoError(t, tokens.Verify(tok, "tx-1"))
	assert.ErrorIs(t, tokens.Verify(tok, "tx-2"), domain.ErrUnauthorized)
	assert.ErrorIs(t, apiv1.NewCheckTokens("other", time.Hour).Verify(tok, "tx-1"), domain.ErrUnauthorized)
	assert.ErrorIs(t, tokens.Verify("garbage", "tx-1"), domain.ErrUnauthorized)

	expired := apiv1.NewCheckTokens("s3cret", time.Nanosecond)
	old, err := expired.Mint("tx-1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, expired.Verify(old, "tx-1"), domain.ErrUnauthorized)
}

func TestUnwiredRoutes(t *testing.T) {
	r := newRouter(apiv1.NewServer(nil, nil, nil, apiv1.Options{}, nil))
	for _, c := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/v1/checkout", `{}`},
		{http.MethodPost, apiv1.DefaultWebhookPath, `{}`},
		{http.MethodPost, "/api/v1/payments/check", `{"transaction_id":"x"}`},
	} {
		req := httptest.NewRequest(c.method, c.path, bytes.NewBufferString(c.body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotImplemented, rec.Code, c.path)
	}
}
