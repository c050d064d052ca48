package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/casavia/payments-gateway/internal/payments/domain"
	"github.com/casavia/payments-gateway/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter builds the writer the publisher sends through. The topic is set
// per message, so a single writer carries every payment-lifecycle event.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Publisher emits payment-lifecycle notifications to order-management.
// Every publish is fire-and-forget from the caller's point of view: errors
// are returned for logging but nothing retries or blocks on them.
type Publisher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewPublisher(log *slog.Logger, producer Producer, topic string) *Publisher {
	return &Publisher{log: log, producer: producer, topic: topic}
}

func (p *Publisher) PaymentSucceeded(ctx context.Context, e domain.PaymentSucceeded) error {
	return p.publish(ctx, "payment_succeeded", e.OrderID, e)
}

func (p *Publisher) PaymentSessionExpired(ctx context.Context, orderID string) error {
	return p.publish(ctx, "payment_session_expired", orderID, domain.PaymentSessionExpired{OrderID: orderID})
}

func (p *Publisher) PaymentSessionAbandoned(ctx context.Context, orderID string) error {
	return p.publish(ctx, "payment_session_abandoned", orderID, domain.PaymentSessionAbandoned{OrderID: orderID})
}

func (p *Publisher) publish(ctx context.Context, eventType, orderID string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(eventType)}}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(orderID),
		Value:   value,
		Headers: headers,
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("bus publish failed", "type", eventType, "order_id", orderID, "err", err)
		return err
	}
	p.log.Info("bus event published", "type", eventType, "order_id", orderID)
	return nil
}
