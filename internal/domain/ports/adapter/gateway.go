package adapter

import (
	"context"

	"pix-subscription/internal/domain/model"
)

// CreateRequest is what the gateway needs to open a PIX charge.
type CreateRequest struct {
	GrossAmount int64
	Split       model.Split
	CallbackURL string
}

// CreatedCharge is the gateway's answer to a create call.
type CreatedCharge struct {
	ID             string
	Status         string
	RenderableCode string // copy-and-paste code
	QRCodeBase64   string // optional rendered image
	Value          int64
}

// ChargeState is the gateway's view of an existing charge.
type ChargeState struct {
	ID         string
	Status     string
	Value      int64
	Settlement model.Settlement
}

// PaymentGateway is the hex port for the instant-payment provider.
type PaymentGateway interface {
	Name() string

	// CreateTransaction submits one charge. Non-2xx answers come back as *domain.GatewayError.
	CreateTransaction(ctx context.Context, req CreateRequest) (*CreatedCharge, error)
	// QueryTransaction is an idempotent read. found=false with a nil error means the gateway
	// answered 404; it is not a transport failure.
	QueryTransaction(ctx context.Context, id string) (state *ChargeState, found bool, err error)
}
