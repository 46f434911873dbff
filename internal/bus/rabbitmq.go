package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"kiosk/internal/models"
)

// StatusExchange is the fanout exchange status events are published to
const StatusExchange = "order_status_fanout"

// Rabbit publishes status events to a RabbitMQ fanout exchange. Every
// subscriber gets its own exclusive queue.
type Rabbit struct {
	conn   *amqp.Connection
	logger logrus.FieldLogger

	mu  sync.Mutex // guards pub
	pub *amqp.Channel
}

// DialRabbit connects to url and declares the exchange
func DialRabbit(url string, logger logrus.FieldLogger) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(StatusExchange, "fanout", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &Rabbit{conn: conn, pub: ch, logger: logger}, nil
}

func (r *Rabbit) Publish(ctx context.Context, ev models.StatusEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode status event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	err = r.pub.PublishWithContext(ctx, StatusExchange, "", false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}
	return nil
}

func (r *Rabbit) Subscribe(ctx context.Context) (<-chan models.StatusEvent, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", StatusExchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume: %w", err)
	}

	out := make(chan models.StatusEvent, subscriberBuffer)
	stop := context.AfterFunc(ctx, func() { ch.Close() })
	go func() {
		defer close(out)
		defer stop()
		for d := range deliveries {
			ev, err := models.DecodeStatusEvent(d.Body)
			if err != nil {
				r.logger.WithError(err).Warn("dropping malformed status event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *Rabbit) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pub != nil {
		_ = r.pub.Close()
	}
	return r.conn.Close()
}
