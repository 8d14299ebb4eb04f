// Package mq moves notification lifecycle events through a RabbitMQ topic
// exchange. Routing keys are the event types themselves, so a consumer can
// bind one type ("notification.read") or the whole family ("notification.*").
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Exchange is the durable topic exchange all lifecycle events go through.
const Exchange = "notifications"

// Publisher owns one AMQP connection and channel for the process lifetime.
type Publisher struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

// Connect dials the broker and declares the notifications exchange.
func Connect(url string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", Exchange, err)
	}

	return &Publisher{conn: conn, ch: ch}, nil
}

// Publish sends payload as a persistent JSON message routed by key.
func (p *Publisher) Publish(ctx context.Context, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", key, err)
	}

	return p.ch.PublishWithContext(ctx, Exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Healthy reports whether the broker connection is still usable. A dead
// connection degrades event delivery, not request handling, so it is
// surfaced through the health endpoint rather than failing anything.
func (p *Publisher) Healthy() bool {
	return p != nil && p.conn != nil && !p.conn.IsClosed()
}

func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
