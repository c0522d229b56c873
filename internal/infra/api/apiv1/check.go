package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"pix-subscription/internal/domain"
	ports "pix-subscription/internal/domain/ports/usecase"
	"pix-subscription/internal/infra/logging"
	"pix-subscription/internal/infra/metrics"
	"pix-subscription/internal/usecase"
)

type checkRequest struct {
	TransactionID string `json:"transaction_id"`
}

type CheckResponse struct {
	Status     string `json:"status"`
	Paid       bool   `json:"paid"`
	EndToEndID string `json:"end_to_end_id,omitempty"`
	PayerName  string `json:"payer_name,omitempty"`
}

// handleManualCheck is the user's "I have paid" button.
func (s *Server) handleManualCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		metrics.IncCheck("error")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	s.check(w, r, strings.TrimSpace(req.TransactionID), ports.SourceManual)
}

// handleStatus serves the client-side poll loop.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.check(w, r, strings.TrimSpace(chi.URLParam(r, "id")), ports.SourcePoll)
}

func (s *Server) check(w http.ResponseWriter, r *http.Request, id string, source ports.Source) {
	if s.checker == nil {
		notWired(w)
		return
	}
	if id == "" {
		metrics.IncCheck("error")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "transaction_id is required"})
		return
	}
	ctx := logging.WithTransactionID(r.Context(), id)
	l := logging.With(ctx, s.log)

	if err := s.authorizeCheck(r, id); err != nil {
		metrics.IncCheck("unauthorized")
		writeError(w, err)
		return
	}
	if s.opts.Limiter != nil {
		ok, err := s.opts.Limiter.Allow(ctx, "check:"+id)
		switch {
		case err != nil:
			l.Warn().Err(err).Msg("rate limiter unavailable, allowing check")
		case !ok:
			metrics.IncCheck("rate_limited")
			writeError(w, domain.ErrRateLimited)
			return
		}
	}

	res, err := s.checker.Check(ctx, id, source)
	if err != nil {
		code := writeError(w, err)
		metrics.IncCheck("error")
		if errors.Is(err, domain.ErrGatewayTransient) {
			l.Warn().Err(err).Str("source", string(source)).Msg("check deferred, gateway unavailable")
		} else {
			l.Error().Err(err).Int("status", code).Str("source", string(source)).Msg("check failed")
		}
		return
	}
	if !res.Found {
		metrics.IncCheck(usecase.StatusNotFound)
		writeJSON(w, http.StatusNotFound, CheckResponse{Status: usecase.StatusNotFound})
		return
	}
	metrics.IncCheck(res.Status)
	writeJSON(w, http.StatusOK, CheckResponse{
		Status:     res.Status,
		Paid:       res.Paid,
		EndToEndID: res.EndToEndID,
		PayerName:  res.PayerName,
	})
}
