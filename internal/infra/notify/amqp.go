package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"pix-subscription/internal/domain/ports/adapter"
)

// RoutingKeyActivated is the routing key of activation events.
const RoutingKeyActivated = "payment.activated"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ActivatedEvent is the JSON body published for each activation.
type ActivatedEvent struct {
	Event         string    `json:"event"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	PlanID        string    `json:"plan_id"`
	Amount        int64     `json:"amount"`
	ExpiresAt     time.Time `json:"expires_at"`
	ActivatedAt   time.Time `json:"activated_at"`
}

// EventPublisher publishes activation events to a topic exchange.
type EventPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	log      *zerolog.Logger
}

var _ adapter.Notifier = (*EventPublisher)(nil)

func NewEventPublisher(url, exchange string, logger *zerolog.Logger) (*EventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := newEventPublisher(ch, exchange, logger)
	p.conn = conn
	p.log.Info().Str("exchange", exchange).Msg("rabbitmq publisher connected")
	return p, nil
}

func newEventPublisher(ch amqpChannel, exchange string, logger *zerolog.Logger) *EventPublisher {
	l := logger.With().Str("component", "EventPublisher").Logger()
	return &EventPublisher{channel: ch, exchange: exchange, log: &l}
}

func (p *EventPublisher) Name() string { return "amqp" }

func (p *EventPublisher) Notify(ctx context.Context, n adapter.ActivationNotice) error {
	body, err := json.Marshal(ActivatedEvent{
		Event:         RoutingKeyActivated,
		TransactionID: n.TransactionID,
		UserID:        n.UserID,
		PlanID:        n.PlanID,
		Amount:        n.Amount,
		ExpiresAt:     n.ExpiresAt.UTC(),
		ActivatedAt:   n.ActivatedAt.UTC(),
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, RoutingKeyActivated, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.TransactionID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKeyActivated, err)
	}
	p.log.Debug().Str("transaction_id", n.TransactionID).Int("size", len(body)).Msg("event published")
	return nil
}

func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Warn().Err(err).Msg("close channel")
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
