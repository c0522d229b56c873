package payment

import (
	"context"
	"fmt"
	"sync"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/model"
	"pix-subscription/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*SandboxGateway)(nil)

// SandboxBaseURL selects SandboxGateway instead of a real gateway.
const SandboxBaseURL = "sandbox://local"

// SandboxGateway is an in-memory gateway for local runs (gateway.base_url = "sandbox://local")
// and tests. Charges stay "created" until Settle or SetStatus moves them.
type SandboxGateway struct {
	mu      sync.Mutex
	seq     int64
	charges map[string]*adapter.ChargeState
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{charges: make(map[string]*adapter.ChargeState)}
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) next() string {
	g.seq++
	return fmt.Sprintf("sandbox-%d", g.seq)
}

func (g *SandboxGateway) CreateTransaction(ctx context.Context, req adapter.CreateRequest) (*adapter.CreatedCharge, error) {
	var allocated int64
	for _, s := range req.Split.Shares {
		allocated += s.Amount
	}
	if allocated+req.Split.Primary != req.GrossAmount {
		return nil, &domain.GatewayError{Op: "create", StatusCode: 422, Reason: "split does not add up to value"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.charges[id] = &adapter.ChargeState{ID: id, Status: "created", Value: req.GrossAmount}
	return &adapter.CreatedCharge{
		ID:             id,
		Status:         "created",
		RenderableCode: "00020126580014br.gov.bcb.pix0136" + id,
		Value:          req.GrossAmount,
	}, nil
}

func (g *SandboxGateway) QueryTransaction(ctx context.Context, id string) (*adapter.ChargeState, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[id]
	if !ok {
		return nil, false, nil
	}
	cp := *c
	return &cp, true, nil
}

// Settle marks a charge paid as if the payer had scanned the code.
func (g *SandboxGateway) Settle(id string, s model.Settlement) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = "paid"
	c.Settlement = s
	return nil
}

func (g *SandboxGateway) SetStatus(id, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	return nil
}
