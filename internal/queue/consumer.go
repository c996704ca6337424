// Package queue defines the durable event queues shared between the
// API process and the notification consumer, plus the consumer that
// turns those events into notification log lines.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartNotificationConsumer connects to RabbitMQ, declares the four
// durable event queues and consumes them. Each message is appended to
// logs/notifications.log in a single-line, human-friendly format. The
// function runs a reconnect loop with exponential backoff and never
// returns under normal operation; processing errors are logged and
// the offending message rejected without requeue so the consumer
// cannot spin on a poison message.
func StartNotificationConsumer(url string) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("notification-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("notification-consumer: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notification-consumer: set QoS failed: %v", err)
	}

	queues := []string{QueueAdmittedQueue, CartExpiredQueue, BookingConfirmedQueue, BookingCancelledQueue}
	merged := make(chan amqp.Delivery)
	// done unblocks the forwarders when the loop returns; without it a
	// forwarder holding an in-flight delivery would sit on the merged
	// send forever, leaking one goroutine per reconnect.
	done := make(chan struct{})
	defer close(done)
	for _, name := range queues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		go forwardDeliveries(msgs, merged, done)
	}

	closed := make(chan *amqp.Error, 1)
	ch.NotifyClose(closed)

	for {
		select {
		case d := <-merged:
			if err := handleDelivery(d); err != nil {
				log.Printf("notification-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		case err := <-closed:
			if err != nil {
				return err
			}
			return errors.New("channel closed")
		}
	}
}

// forwardDeliveries fans one consume channel into merged until the
// source closes or done is signalled, whichever comes first.
func forwardDeliveries(in <-chan amqp.Delivery, merged chan<- amqp.Delivery, done <-chan struct{}) {
	for d := range in {
		select {
		case merged <- d:
		case <-done:
			return
		}
	}
}

func handleDelivery(d amqp.Delivery) error {
	line, err := formatNotification(d.RoutingKey, d.Body)
	if err != nil {
		return err
	}
	return appendNotification(line)
}

func formatNotification(queueName string, body []byte) (string, error) {
	switch queueName {
	case QueueAdmittedQueue:
		var ev QueueAdmittedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", queueName, err)
		}
		return fmt.Sprintf("[%s] Queue admission | event_id=%d | admitted=%d | deadline=%s\n",
			ev.AdmittedAt, ev.EventID, len(ev.UserIDs), ev.ProcessingDeadline), nil
	case CartExpiredQueue:
		var ev CartExpiredEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", queueName, err)
		}
		return fmt.Sprintf("[%s] Cart expired | cart_id=%d | user_id=%d | event_id=%d | released=%d units\n",
			ev.ExpiredAt, ev.CartID, ev.UserID, ev.EventID, ev.ReleasedUnits), nil
	case BookingConfirmedQueue:
		var ev BookingConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", queueName, err)
		}
		return fmt.Sprintf("[%s] Booking confirmed | booking=%s | user_id=%d | event_id=%d | tickets=%d | total=%d cents\n",
			ev.ConfirmedAt, ev.BookingNumber, ev.UserID, ev.EventID, ev.TicketCount, ev.FinalCents), nil
	case BookingCancelledQueue:
		var ev BookingCancelledEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", queueName, err)
		}
		return fmt.Sprintf("[%s] Booking cancelled | booking=%s | user_id=%d | event_id=%d | released=%d units | reason=%s\n",
			ev.CancelledAt, ev.BookingNumber, ev.UserID, ev.EventID, ev.ReleasedUnits, ev.Reason), nil
	default:
		return "", fmt.Errorf("unknown queue %q", queueName)
	}
}

func appendNotification(line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "notifications.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
