package mail

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/haldane-systems/carecircle-server/internal/queue"
)

// QueueSender publishes mail as MailQueuedEvents on the "mail.outbound"
// queue instead of delivering it inline. The function attempts to be robust
// and to never panic; any error is logged and returned so the caller can
// choose to ignore it. Messages are marked as persistent.
type QueueSender struct {
	url string
}

func NewQueueSender(url string) *QueueSender { return &QueueSender{url: url} }

func (s *QueueSender) Send(ctx context.Context, to, subject, body string) error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		"mail.outbound", // name
		true,            // durable
		false,           // autoDelete
		false,           // exclusive
		false,           // noWait
		nil,             // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	ev := q.MailQueuedEvent{
		To:       to,
		Subject:  subject,
		Body:     body,
		QueuedAt: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}

	if err := ch.PublishWithContext(ctx,
		"",              // default exchange
		"mail.outbound", // routing key = queue name
		false,           // mandatory
		false,           // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}

	return nil
}
