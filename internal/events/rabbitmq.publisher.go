// internal/events/rabbitmq.publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
)

// Channel is the slice of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitPublisher struct {
	conn  *amqp.Connection // nil when built from a bare channel
	chn   Channel
	queue string
}

// NewRabbitPublisher dials the server, opens a channel and declares a durable queue.
func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	//this opens the tcp connection to rabbitmq server
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial rabbitmq: %w", err)
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	p, err := NewRabbitPublisherWithChannel(chn, queue)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func NewRabbitPublisherWithChannel(chn Channel, queue string) (*RabbitPublisher, error) {
	_, err := chn.QueueDeclare(
		queue, //name of queue
		true,  //durable
		false, //delete when unused
		false, //exclusive
		false, //no-wait
		nil,   //arguments
	)
	if err != nil {
		return nil, fmt.Errorf("events: declare queue %s: %w", queue, err)
	}
	return &RabbitPublisher{chn: chn, queue: queue}, nil
}

func (r *RabbitPublisher) PublishOrderPaid(ctx context.Context, event payment.OrderPaidEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal order paid: %w", err)
	}
	err = r.chn.PublishWithContext(
		ctx,
		"",      //exchange
		r.queue, //routing key (queue name)
		false,   //mandatory
		false,   //immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         OrderPaidEventType,
			MessageId:    event.NotificationID,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("events: rabbitmq publish: %w", err)
	}
	return nil
}

func (r *RabbitPublisher) Close() error {
	if err := r.chn.Close(); err != nil {
		return err
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
