// internal/events/publisher.go
package events

import (
	"context"
	"fmt"
	"log"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/config"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
)

const OrderPaidEventType = "order.paid"

// Publisher is an EventPublisher that owns a connection.
type Publisher interface {
	payment.EventPublisher
	Close() error
}

// Noop drops events. Used when EVENTS_BACKEND is "none".
type Noop struct{}

func (Noop) PublishOrderPaid(context.Context, payment.OrderPaidEvent) error { return nil }

func (Noop) Close() error { return nil }

// Open builds the publisher selected by cfg.EventsBackend.
func Open(cfg *config.Config) (Publisher, error) {
	c := cfg.CommonConfig
	switch cfg.EventsBackend {
	case "kafka":
		if c.KAFKA_BROKER == "" || c.KAFKA_TOPIC == "" {
			return nil, fmt.Errorf("events: kafka backend needs KAFKA_BROKER and KAFKA_TOPIC")
		}
		log.Printf("[Events] publishing order-paid events to kafka topic %s", c.KAFKA_TOPIC)
		return NewKafkaPublisher(c.KAFKA_BROKER, c.KAFKA_TOPIC), nil
	case "rabbitmq":
		queue := c.RABBITMQ_QUEUE
		if queue == "" {
			queue = "order_paid"
		}
		p, err := NewRabbitPublisher(c.GetRabbitMQURL(), queue)
		if err != nil {
			return nil, err
		}
		log.Printf("[Events] publishing order-paid events to rabbitmq queue %s", queue)
		return p, nil
	default:
		return Noop{}, nil
	}
}
