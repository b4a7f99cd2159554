// internal/events/kafka.publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	skafka "github.com/segmentio/kafka-go"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
)

// Writer defines the subset of segmentio kafka.Writer we need. This makes the publisher testable.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// KafkaPublisher writes order-paid events keyed by out_trade_no, so all events
// for one order land on the same partition.
type KafkaPublisher struct {
	writer Writer
}

func NewKafkaPublisher(brokerURL, topic string) *KafkaPublisher {
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokerURL),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		ErrorLogger:  skafka.LoggerFunc(func(msg string, args ...interface{}) { log.Printf("[Kafka][ERROR] "+msg, args...) }),
	}
	return &KafkaPublisher{writer: w}
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishOrderPaid(ctx context.Context, event payment.OrderPaidEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal order paid: %w", err)
	}
	msg := skafka.Message{
		Key:   []byte(event.OutTradeNo),
		Value: b,
		Headers: []skafka.Header{
			{Key: "event_type", Value: []byte(OrderPaidEventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: kafka write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
