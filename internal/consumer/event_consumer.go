package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/metrics"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/errors"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/rabbitmq"
)

const (
	eventsExchangeKind = "topic"
	eventsRoutingKey   = "#"
	consumerTag        = "webhook-fanout"

	maxRestartBackoff = 30 * time.Second
)

// Broker is the subset of the RabbitMQ client the consumer uses
type Broker interface {
	DeclareExchange(name, kind string) error
	DeclareQueue(name string) error
	BindQueue(queue, routingKey, exchange string) error
	Consume(ctx context.Context, queue, consumerTag string) (<-chan rabbitmq.Message, error)
	Reconnect() error
}

// Trigger fans an event out to the team's subscribed webhooks
type Trigger interface {
	Trigger(ctx context.Context, teamID string, event domain.EventType, data any) (int, error)
}

type disposition int

const (
	ack disposition = iota
	reject
	requeue
)

// EventConsumer consumes domain events from RabbitMQ and triggers webhooks
type EventConsumer struct {
	broker   Broker
	trigger  Trigger
	exchange string
	queue    string
	log      *logger.Logger
}

// NewEventConsumer creates a new event consumer
func NewEventConsumer(broker Broker, trigger Trigger, exchange, queue string, log *logger.Logger) *EventConsumer {
	return &EventConsumer{
		broker:   broker,
		trigger:  trigger,
		exchange: exchange,
		queue:    queue,
		log:      log,
	}
}

// Run consumes events until ctx is cancelled. A closed delivery channel is
// treated as a lost connection: the consumer reconnects with backoff.
func (c *EventConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}

		metrics.ConsumerRestarts.Inc()
		c.log.Warn("Event consumer stopped, restarting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxRestartBackoff)

		if err := c.broker.Reconnect(); err != nil {
			c.log.Error("Failed to reconnect to rabbitmq", "error", err)
			continue
		}
		backoff = time.Second
	}
}

func (c *EventConsumer) consume(ctx context.Context) error {
	c.log.Info("Starting event consumer", "exchange", c.exchange, "queue", c.queue)

	if err := c.broker.DeclareExchange(c.exchange, eventsExchangeKind); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if err := c.broker.DeclareQueue(c.queue); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.broker.BindQueue(c.queue, eventsRoutingKey, c.exchange); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	messages, err := c.broker.Consume(ctx, c.queue, consumerTag)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for msg := range messages {
		var ackErr error
		switch c.handle(ctx, msg.Body) {
		case ack:
			ackErr = msg.Ack(false)
		case reject:
			ackErr = msg.Nack(false, false)
		case requeue:
			ackErr = msg.Nack(false, true)
		}
		if ackErr != nil {
			c.log.Error("Failed to acknowledge message", "routing_key", msg.RoutingKey, "error", ackErr)
		}
	}
	return fmt.Errorf("delivery channel closed")
}

// handle decodes one message body and triggers the matching webhooks
func (c *EventConsumer) handle(ctx context.Context, body []byte) disposition {
	var event domain.Event
	if err := json.Unmarshal(body, &event); err != nil {
		c.log.Error("Failed to unmarshal event", "error", err)
		metrics.EventsConsumed.WithLabelValues("unknown", "rejected").Inc()
		return reject
	}

	if event.TeamID == "" || !event.Type.IsSupported() {
		c.log.Warn("Discarding event", "type", event.Type, "team_id", event.TeamID)
		metrics.EventsConsumed.WithLabelValues(string(event.Type), "rejected").Inc()
		return reject
	}

	n, err := c.trigger.Trigger(ctx, event.TeamID, event.Type, event.Data)
	if err != nil {
		if errors.HasCode(err, errors.CodeValidation) {
			metrics.EventsConsumed.WithLabelValues(string(event.Type), "rejected").Inc()
			return reject
		}
		c.log.Error("Failed to process event", "error", err, "type", event.Type, "team_id", event.TeamID)
		metrics.EventsConsumed.WithLabelValues(string(event.Type), "requeued").Inc()
		return requeue
	}

	metrics.EventsConsumed.WithLabelValues(string(event.Type), "processed").Inc()
	c.log.Debug("Event processed", "type", event.Type, "team_id", event.TeamID, "deliveries", n)
	return ack
}
