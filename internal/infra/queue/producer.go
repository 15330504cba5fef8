package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
)

type NotificationPayload struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQProducer publishes operator notifications to ExchangeName. An
// amqp channel is not safe for concurrent publishes, so sends are serialized.
type RabbitMQProducer struct {
	mu  sync.Mutex
	ch  publisher
	now func() time.Time
}

func NewProducer(ch *amqp.Channel) *RabbitMQProducer {
	return newProducer(ch)
}

func newProducer(ch publisher) *RabbitMQProducer {
	return &RabbitMQProducer{ch: ch, now: time.Now}
}

func (p *RabbitMQProducer) Send(ctx context.Context, subject, body string) error {
	payload, err := json.Marshal(NotificationPayload{
		Subject: subject,
		Body:    body,
		SentAt:  p.now().UTC(),
	})
	if err != nil {
		return eris.Wrap(err, "rabbitmq: encode notification")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Timestamp:    p.now(),
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return eris.Wrap(err, "rabbitmq: publish notification")
	}
	return nil
}
