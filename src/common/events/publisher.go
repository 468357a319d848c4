package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jack-barr3tt/db-engine/src/common/types"
	amqp "github.com/rabbitmq/amqp091-go"
)

const QueueTimetableUpdates = "timetable-updates"

// Channel is the subset of *amqp.Channel used here.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type Publisher interface {
	Publish(ctx context.Context, event types.StationIngested) error
}

func DeclareQueue(channel Channel, name string) error {
	_, err := channel.QueueDeclare(
		name,
		false,
		false,
		false,
		false,
		nil,
	)
	return err
}

type AMQPPublisher struct {
	channel Channel
	queue   string
}

func NewAMQPPublisher(channel Channel) (*AMQPPublisher, error) {
	if err := DeclareQueue(channel, QueueTimetableUpdates); err != nil {
		return nil, fmt.Errorf("declare %s: %w", QueueTimetableUpdates, err)
	}

	return &AMQPPublisher{channel: channel, queue: QueueTimetableUpdates}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event types.StationIngested) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(
		ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   event.RunID,
			Timestamp:   event.At,
			Body:        body,
		},
	)
}

// NopPublisher drops every event. Used when RabbitMQ is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, types.StationIngested) error {
	return nil
}
