package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
)

// Sender publishes a raw message to an exchange
type Sender interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// EventPublisher publishes domain events to the events exchange, routed by event type
type EventPublisher struct {
	sender   Sender
	exchange string
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(sender Sender, exchange string) *EventPublisher {
	return &EventPublisher{sender: sender, exchange: exchange}
}

// Publish sends event to the exchange
func (p *EventPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.sender.Publish(ctx, p.exchange, string(event.Type), body)
}
