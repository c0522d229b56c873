package apiv1

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	ports "pix-subscription/internal/domain/ports/usecase"
	"pix-subscription/internal/usecase"
)

const DefaultWebhookPath = "/api/v1/webhooks/pix"

// RateLimiter bounds how often one transaction can be checked.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Options struct {
	WebhookPath   string
	WebhookSecret string       // empty disables the X-Webhook-Token check
	Limiter       RateLimiter  // nil disables rate limiting
	Tokens        *CheckTokens // nil disables check tokens
}

// Server implements the payment endpoints. Any use case may be nil; its routes then answer 501.
type Server struct {
	checkout   usecase.CheckoutUseCase
	reconciler ports.Reconciler
	checker    usecase.CheckUseCase
	opts       Options
	sanitizer  *bluemonday.Policy
	log        *zerolog.Logger
}

func NewServer(checkout usecase.CheckoutUseCase, reconciler ports.Reconciler, checker usecase.CheckUseCase, opts Options, logger *zerolog.Logger) *Server {
	if opts.WebhookPath == "" {
		opts.WebhookPath = DefaultWebhookPath
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "APIv1").Logger()
	return &Server{
		checkout:   checkout,
		reconciler: reconciler,
		checker:    checker,
		opts:       opts,
		sanitizer:  bluemonday.StrictPolicy(),
		log:        &l,
	}
}

// RegisterAPIV1 mounts the routes on absolute paths.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Post("/api/v1/checkout", s.handleCheckout)
	r.Post(s.opts.WebhookPath, s.handleWebhook)
	r.Post("/api/v1/payments/check", s.handleManualCheck)
	r.Get("/api/v1/payments/{id}/status", s.handleStatus)
}

func notWired(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotImplemented, errorBody{Error: "not implemented"})
}
