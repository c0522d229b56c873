package apiv1

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/infra/logging"
	"pix-subscription/internal/infra/metrics"
	"pix-subscription/internal/usecase"
)

const maxAttributionLen = 256

type attributionJSON struct {
	Source   string `json:"source"`
	Campaign string `json:"campaign"`
	URL      string `json:"url"`
}

type checkoutRequest struct {
	GrossAmount int64            `json:"gross_amount"`
	PayerEmail  string           `json:"payer_email"`
	PlanID      string           `json:"plan_id"`
	Attribution *attributionJSON `json:"attribution,omitempty"`
}

type CheckoutResponse struct {
	TransactionID  string    `json:"transaction_id"`
	RenderableCode string    `json:"renderable_code"`
	QRCodeBase64   string    `json:"qr_code_base64,omitempty"`
	Status         string    `json:"status"`
	GrossAmount    int64     `json:"gross_amount"`
	ExpiresAt      time.Time `json:"expires_at"`
	CheckToken     string    `json:"check_token,omitempty"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.checkout == nil {
		notWired(w)
		return
	}
	l := logging.With(r.Context(), s.log)

	var req checkoutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		metrics.IncCheckout("invalid")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	res, err := s.checkout.Checkout(r.Context(), usecase.CheckoutInput{
		GrossAmount: req.GrossAmount,
		PayerEmail:  req.PayerEmail,
		PlanID:      req.PlanID,
		Attribution: s.cleanAttribution(req.Attribution),
	})
	if err != nil {
		code := writeError(w, err)
		metrics.IncCheckout(checkoutResult(code))
		if code >= http.StatusInternalServerError {
			l.Error().Err(err).Int("status", code).Msg("checkout failed")
		} else {
			l.Info().Err(err).Int("status", code).Msg("checkout refused")
		}
		return
	}

	t := res.Transaction
	out := CheckoutResponse{
		TransactionID:  t.ID,
		RenderableCode: t.Code,
		QRCodeBase64:   res.QRCodeBase64,
		Status:         string(t.Status),
		GrossAmount:    t.GrossAmount,
		ExpiresAt:      t.ExpiresAt.UTC(),
	}
	if s.opts.Tokens != nil {
		tok, err := s.opts.Tokens.Mint(t.ID)
		if err != nil {
			l.Error().Err(err).Str("transaction_id", t.ID).Msg("mint check token")
		}
		out.CheckToken = tok
	}
	metrics.IncCheckout("ok")
	writeJSON(w, http.StatusCreated, out)
}

func checkoutResult(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusUnprocessableEntity:
		return "rejected"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "error"
	}
}

// cleanAttribution strips markup and bounds the length of analytics fields.
func (s *Server) cleanAttribution(in *attributionJSON) model.Attribution {
	if in == nil {
		return model.Attribution{}
	}
	clean := func(v string) string {
		v = strings.TrimSpace(s.sanitizer.Sanitize(v))
		for len(v) > maxAttributionLen {
			_, size := utf8.DecodeLastRuneInString(v)
			v = v[:len(v)-size]
		}
		return v
	}
	return model.Attribution{
		Source:   clean(in.Source),
		Campaign: clean(in.Campaign),
		URL:      clean(in.URL),
	}
}
