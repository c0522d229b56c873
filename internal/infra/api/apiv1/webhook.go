package apiv1

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	"pix-subscription/internal/domain"
	ports "pix-subscription/internal/domain/ports/usecase"
	"pix-subscription/internal/infra/logging"
	"pix-subscription/internal/infra/metrics"
	"pix-subscription/internal/infra/payment"
)

const (
	maxWebhookBody     = 64 << 10
	webhookTokenHeader = "X-Webhook-Token"
)

type webhookResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
}

// handleWebhook accepts the gateway's push. Whatever it claims goes through the same
// reconciliation as every other trigger; a malformed body never touches stored state.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil {
		notWired(w)
		return
	}
	start := time.Now()
	l := logging.With(r.Context(), s.log)
	fail := func(code int, reason string, err error) {
		metrics.ObserveWebhook("fail", reason, time.Since(start))
		ev := l.Warn()
		if code >= http.StatusInternalServerError {
			ev = l.Error()
		}
		ev.Err(err).Int("status", code).Str("reason", reason).Msg("webhook rejected")
	}

	if secret := s.opts.WebhookSecret; secret != "" {
		got := r.Header.Get(webhookTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			fail(http.StatusUnauthorized, "unauthorized", domain.ErrUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "payload too large"})
			fail(http.StatusRequestEntityTooLarge, "too_large", err)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body"})
		fail(http.StatusBadRequest, "malformed", err)
		return
	}

	ev, err := payment.ParseWebhook(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		fail(http.StatusBadRequest, "malformed", err)
		return
	}

	ctx := logging.WithTransactionID(r.Context(), ev.TransactionID)
	l = logging.With(ctx, s.log)
	res, err := s.reconciler.Reconcile(ctx, ports.ReconcileInput{
		TransactionID: ev.TransactionID,
		Reported:      ev.Reported,
		Value:         ev.Value,
		Settlement:    ev.Settlement,
		Source:        ports.SourceWebhook,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown transaction"})
			fail(http.StatusNotFound, "not_found", err)
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "reconciliation failed"})
		fail(http.StatusInternalServerError, "reconcile_error", err)
		return
	}

	metrics.ObserveWebhook("ok", "", time.Since(start))
	l.Info().Str("raw_status", ev.RawStatus).Str("outcome", string(res.Outcome)).Msg("webhook processed")
	writeJSON(w, http.StatusOK, webhookResponse{
		Success: true,
		Status:  string(res.Transaction.Status),
		Outcome: string(res.Outcome),
	})
}
