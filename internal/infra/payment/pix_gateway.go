package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"pix-subscription/internal/config"
	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/adapter"
	"pix-subscription/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*PixGateway)(nil)

const maxResponseBytes = 1 << 20

// PixGateway talks to the PIX provider over HTTP. Calls run behind a circuit breaker;
// business rejections (4xx) do not count as breaker failures.
type PixGateway struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[any]
	log     *zerolog.Logger
}

func NewPixGateway(cfg config.GatewayConfig, logger *zerolog.Logger) (*PixGateway, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("pix gateway: token is required: %w", domain.ErrInvalidArgument)
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("pix gateway: base url %q: %w", cfg.BaseURL, domain.ErrInvalidArgument)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "PixGateway").Logger()
	g := &PixGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		log:     &l,
	}

	bc := cfg.Breaker
	g.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "pix",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			var gwErr *domain.GatewayError
			return err == nil || (errors.As(err, &gwErr) && gwErr.Permanent())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			metrics.SetGatewayBreakerState(name, int(to))
		},
	})
	return g, nil
}

func (g *PixGateway) Name() string { return "pix" }

func (g *PixGateway) CreateTransaction(ctx context.Context, req adapter.CreateRequest) (*adapter.CreatedCharge, error) {
	body := createRequestJSON{Value: req.GrossAmount, WebhookURL: req.CallbackURL}
	for _, s := range req.Split.Shares {
		if s.Amount <= 0 {
			continue
		}
		body.SplitRules = append(body.SplitRules, splitRuleJSON{Value: s.Amount, AccountID: s.AccountID})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	start := time.Now()
	out, err := g.breaker.Execute(func() (any, error) {
		status, respBody, err := g.do(ctx, http.MethodPost, g.baseURL+"/pix/cashIn", payload)
		if err != nil {
			return nil, &domain.GatewayError{Op: "create", Reason: err.Error()}
		}
		if status < 200 || status > 299 {
			return nil, &domain.GatewayError{Op: "create", StatusCode: status, Reason: gatewayReason(respBody)}
		}
		var resp createResponseJSON
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, &domain.GatewayError{Op: "create", StatusCode: status, Reason: "unreadable response: " + err.Error()}
		}
		return &resp, nil
	})
	g.observe("create", start, err)
	if err != nil {
		return nil, g.translate(err)
	}
	resp := out.(*createResponseJSON)
	g.log.Debug().Str("transaction_id", resp.ID).Str("status", resp.Status).Msg("charge created")
	return &adapter.CreatedCharge{
		ID:             resp.ID,
		Status:         resp.Status,
		RenderableCode: resp.QRCode,
		QRCodeBase64:   resp.QRCodeBase64,
		Value:          int64(resp.Value),
	}, nil
}

func (g *PixGateway) QueryTransaction(ctx context.Context, id string) (*adapter.ChargeState, bool, error) {
	if strings.TrimSpace(id) == "" {
		return nil, false, domain.ErrInvalidArgument
	}
	start := time.Now()
	out, err := g.breaker.Execute(func() (any, error) {
		status, respBody, err := g.do(ctx, http.MethodGet, g.baseURL+"/transactions/"+url.PathEscape(id), nil)
		if err != nil {
			return nil, &domain.GatewayError{Op: "query", Reason: err.Error()}
		}
		if status == http.StatusNotFound {
			return (*transactionJSON)(nil), nil
		}
		if status < 200 || status > 299 {
			return nil, &domain.GatewayError{Op: "query", StatusCode: status, Reason: gatewayReason(respBody)}
		}
		var resp transactionJSON
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, &domain.GatewayError{Op: "query", StatusCode: status, Reason: "unreadable response: " + err.Error()}
		}
		return &resp, nil
	})
	if err != nil {
		g.observe("query", start, err)
		return nil, false, g.translate(err)
	}
	resp := out.(*transactionJSON)
	if resp == nil {
		metrics.ObserveGatewayCall("query", "not_found", time.Since(start))
		return nil, false, nil
	}
	g.observe("query", start, nil)
	if resp.ID == "" {
		resp.ID = id
	}
	return &adapter.ChargeState{
		ID:     resp.ID,
		Status: resp.Status,
		Value:  int64(resp.Value),
		Settlement: model.Settlement{
			EndToEndID: resp.EndToEndID,
			PayerName:  resp.PayerName,
			PayerTaxID: resp.PayerNationalRegistration,
		},
	}, true, nil
}

func (g *PixGateway) do(ctx context.Context, method, endpoint string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, b, nil
}

func (g *PixGateway) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.ErrGatewayUnavailable
	}
	return err
}

func (g *PixGateway) observe(op string, start time.Time, err error) {
	result := "ok"
	var gwErr *domain.GatewayError
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "open"
	case errors.As(err, &gwErr) && gwErr.Permanent():
		result = "rejected"
	default:
		result = "transient"
	}
	metrics.ObserveGatewayCall(op, result, time.Since(start))
}
