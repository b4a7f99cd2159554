// internal/events/kafka.consumer.go
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

// Reader is the subset of kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (skafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// OrderPaidHandler processes one decoded event. Returning an error leaves the
// offset uncommitted so the group sees the message again.
type OrderPaidHandler func(ctx context.Context, event payment.OrderPaidEvent) error

type Consumer struct {
	reader     Reader
	retryDelay time.Duration
}

// NewConsumer joins groupID on topic. Running several copies splits the partitions between them.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return NewConsumerWithReader(skafka.NewReader(skafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}))
}

func NewConsumerWithReader(r Reader) *Consumer {
	return &Consumer{reader: r, retryDelay: time.Second}
}

// Run fetches until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handler OrderPaidHandler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[Kafka][WARN] fetch failed: %v", err)
			time.Sleep(c.retryDelay)
			continue
		}

		var evt payment.OrderPaidEvent
		if err := json.Unmarshal(m.Value, &evt); err != nil {
			// poison message: nothing will ever decode it, commit and move on
			log.Printf("[Kafka][ERROR] skipping undecodable message at offset %d: %v", m.Offset, err)
			c.commit(ctx, m)
			continue
		}

		processCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = handler(processCtx, evt)
		cancel()
		if err != nil {
			log.Printf("[Kafka][ERROR] processing failed (offset %d): %v", m.Offset, err)
			continue
		}
		c.commit(ctx, m)
	}
}

func (c *Consumer) commit(ctx context.Context, m skafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Printf("[Kafka][ERROR] commit offset %d: %v", m.Offset, err)
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("events: close reader: %w", err)
	}
	return nil
}
