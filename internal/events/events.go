// Package events publishes purchase facts to a message broker for
// downstream consumers (receipts, analytics). Publication is best effort.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const PurchaseCommittedQueue = "purchase.committed"

// PurchaseCommitted is emitted once per successfully committed purchase.
type PurchaseCommitted struct {
	HeaderID    string `json:"header_id"`
	CustomerID  string `json:"customer_id"`
	Date        string `json:"date"`
	TotalAmount int64  `json:"total_amount"`
	Lines       int    `json:"lines"`
	CommittedAt string `json:"committed_at"`
}

type Publisher interface {
	PublishPurchaseCommitted(ctx context.Context, e PurchaseCommitted) error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) PublishPurchaseCommitted(context.Context, PurchaseCommitted) error { return nil }

// NewPublisher returns an AMQP publisher for url, or Noop when url is empty.
func NewPublisher(url string) Publisher {
	if url == "" {
		return Noop{}
	}
	return &AMQPPublisher{URL: url, Queue: PurchaseCommittedQueue, DialTimeout: 2 * time.Second}
}

// AMQPPublisher opens a connection per message and holds no reconnect state.
type AMQPPublisher struct {
	URL         string
	Queue       string
	DialTimeout time.Duration
}

func (p *AMQPPublisher) PublishPurchaseCommitted(ctx context.Context, e PurchaseCommitted) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.DialTimeout)})
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// durable so events survive broker restarts
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	return ch.PublishWithContext(ctx, "", p.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.HeaderID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
