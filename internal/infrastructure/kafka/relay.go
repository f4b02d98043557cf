package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const componentKafkaRelay = "kafka_relay"

// Relay forwards order lifecycle events from the in-process bus to a Kafka
// topic, keyed by order id so all events for one order land on one partition.
type Relay struct {
	writer *kafka.Writer
	log    observability.Logger
}

func NewRelay(brokers []string, topic string, logger observability.Logger) *Relay {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Relay{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		log: logger.With(observability.F("component", componentKafkaRelay)),
	}
}

// Register subscribes the relay to every order lifecycle event.
func (r *Relay) Register(bus domoutbox.Subscriber) {
	bus.Subscribe(domain.OrderCreatedEvent{}.EventName(), r.handle)
	bus.Subscribe(domain.OrderConfirmedEvent{}.EventName(), r.handle)
	bus.Subscribe(domain.OrderPaymentFailedEvent{}.EventName(), r.handle)
}

func (r *Relay) Close() error {
	return r.writer.Close()
}

type envelope struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func (r *Relay) handle(ctx context.Context, e domoutbox.Event) error {
	key := orderKey(e)

	value, err := json.Marshal(envelope{
		EventID:    uuid.NewString(),
		Type:       e.EventName(),
		OccurredAt: time.Now().UTC(),
		Payload:    e,
	})
	if err != nil {
		return err
	}

	if err := r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		r.log.Warn("kafka_write_failed",
			observability.F("event", e.EventName()),
			observability.F("order_id", key),
			observability.F("error", err.Error()),
		)
		return err
	}

	r.log.Debug("event_relayed",
		observability.F("event", e.EventName()),
		observability.F("order_id", key),
	)
	return nil
}

func orderKey(e domoutbox.Event) string {
	switch evt := e.(type) {
	case domain.OrderCreatedEvent:
		return evt.OrderID
	case domain.OrderConfirmedEvent:
		return evt.OrderID
	case domain.OrderPaymentFailedEvent:
		return evt.OrderID
	default:
		return ""
	}
}
