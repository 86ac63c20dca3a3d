package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// appID попадает в свойство app_id каждого сообщения.
const appID = "memorysphere"

// Publisher публикует сообщения через общий канал из нескольких горутин.
// amqp.Channel не допускает конкурентных Publish, поэтому вызовы сериализуются.
type Publisher struct {
	mu  sync.Mutex
	ch  *amqp.Channel
	now func() time.Time
}

// NewPublisher создаёт Publisher поверх открытого канала.
func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch, now: time.Now}
}

// newPublishing сериализует message в JSON и заполняет свойства сообщения.
func newPublishing(message any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    now.UTC(),
		AppId:        appID,
		Body:         body,
	}, nil
}

// Publish публикует message в exchange с ключом routingKey как постоянное JSON сообщение.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, message any) error {
	const op = "rabbitmq.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg, err := newPublishing(message, p.now())
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Publish(exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("%s: %s/%s: %w", op, exchange, routingKey, err)
	}
	return nil
}
