package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
)

const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
)

type TransactionEvent struct {
	Type          string          `json:"type"`
	TransactionId int64           `json:"transaction_id"`
	UserId        int64           `json:"user_id"`
	CategoryId    int64           `json:"category_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          Date            `json:"date"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func newTransactionEvent(kind string, t Transaction, at time.Time) TransactionEvent {
	return TransactionEvent{
		Type:          kind,
		TransactionId: t.Id,
		UserId:        t.UserId,
		CategoryId:    t.CategoryId,
		Amount:        t.Amount,
		Date:          t.Date,
		OccurredAt:    at.UTC(),
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, event TransactionEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TransactionEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

// RabbitMQPublisher is an implementation of EventPublisher using RabbitMQ
type RabbitMQPublisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection // Connection to RabbitMQ
	channel *amqp.Channel    // Channel to communicate with RabbitMQ
	queue   amqp.Queue       // Queue to which events will be published
}

func NewRabbitMQPublisher(rabbitMQURL, queueName string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(rabbitMQURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close() // Clean up connection on error
		return nil, err
	}

	queue, err := ch.QueueDeclare(
		queueName,
		true,  // Durable (survives RabbitMQ restarts)
		false, // Auto-delete when unused
		false, // Not exclusive to a single connection
		false, // No-wait for confirmation
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQPublisher{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

// Publish sends an event to the RabbitMQ queue
func (p *RabbitMQPublisher) Publish(ctx context.Context, event TransactionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.Publish(
		"",           // Default exchange (direct routing to a queue)
		p.queue.Name, // Queue name as the routing key
		false,        // Mandatory
		false,        // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         event.Type,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return err
	}

	log.Debug().Str("type", event.Type).Int64("transaction_id", event.TransactionId).Msg("event published")
	return nil
}

// Close releases RabbitMQ resources
func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// NewPublisher returns a RabbitMQ publisher when url is set and a
// NopPublisher otherwise.
func NewPublisher(cfg AMQPConfig) (EventPublisher, error) {
	if cfg.URL == "" {
		return NopPublisher{}, nil
	}
	p, err := NewRabbitMQPublisher(cfg.URL, cfg.Queue)
	if err != nil {
		return nil, err
	}
	return p, nil
}
