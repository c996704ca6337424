package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends domain events to RabbitMQ on the default exchange,
// routing key equal to the queue name. The connection is opened
// lazily and kept for reuse; a failed publish drops the connection
// and retries once on a fresh one. All messages are persistent so
// they survive broker restarts.
type Publisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

// NewPublisher creates a publisher for the given AMQP URL. No
// connection is made until the first Publish.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, declared: make(map[string]bool)}
}

// Publish marshals payload as JSON and sends it to queueName. Errors
// are logged and returned so the caller can choose to ignore them
// without interrupting the main request flow.
func (p *Publisher) Publish(ctx context.Context, queueName string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		if err = p.publishLocked(ctx, queueName, body); err == nil {
			return nil
		}
		// The channel may have died since the last publish; reset and
		// let the next attempt redial.
		p.resetLocked()
	}
	log.Printf("rabbitmq: publish to %s failed: %v", queueName, err)
	return err
}

func (p *Publisher) publishLocked(ctx context.Context, queueName string, body []byte) error {
	if err := p.ensureChannelLocked(); err != nil {
		return err
	}
	if !p.declared[queueName] {
		// Durable, idempotent declare.
		if _, err := p.ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare: %w", err)
		}
		p.declared[queueName] = true
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	return p.ch.PublishWithContext(ctx, "", queueName, false, false, pub)
}

func (p *Publisher) ensureChannelLocked() error {
	if p.ch != nil && p.conn != nil && !p.conn.IsClosed() {
		return nil
	}
	p.resetLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel open: %w", err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	p.declared = make(map[string]bool)
}

// Close shuts the underlying connection. Safe to call when nothing
// was ever published.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}
