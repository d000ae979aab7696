package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const EventFlowTransition = "checkout.flow.transition"

type FlowEvent struct {
	UserKey       string    `json:"user_key"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	CheckoutID    string    `json:"checkout_id,omitempty"`
	OrderID       int64     `json:"order_id,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Attempts      int       `json:"attempts,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev FlowEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev FlowEvent) error {
	msg, err := message(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish flow event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// message keys by order id once one exists, so all events of an order share a partition.
func message(ev FlowEvent) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal flow event: %w", err)
	}
	key := ev.UserKey
	if ev.OrderID > 0 {
		key = "order-" + strconv.FormatInt(ev.OrderID, 10)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventFlowTransition)},
		},
	}, nil
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, FlowEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }
