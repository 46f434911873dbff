package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"kiosk/internal/models"
)

// DefaultTopic carries status events when no topic is configured
const DefaultTopic = "kiosk.order-status"

// Kafka publishes status events to a topic keyed by order number. Each
// subscriber reads with its own consumer group starting at the newest offset.
type Kafka struct {
	brokers []string
	topic   string
	writer  *kafka.Writer
	logger  logrus.FieldLogger
}

// NewKafka creates a Kafka bus. No connection is made until the first publish.
func NewKafka(brokers []string, topic string, logger logrus.FieldLogger) *Kafka {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Kafka{
		brokers: brokers,
		topic:   topic,
		logger:  logger,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *Kafka) Publish(ctx context.Context, ev models.StatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode status event: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderNumber),
		Value: data,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}
	return nil
}

func (k *Kafka) Subscribe(ctx context.Context) (<-chan models.StatusEvent, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.brokers,
		Topic:       k.topic,
		GroupID:     "kiosk-hub-" + uuid.NewString(),
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})

	out := make(chan models.StatusEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer reader.Close()
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					k.logger.WithError(err).Error("kafka subscription ended")
				}
				return
			}
			ev, err := models.DecodeStatusEvent(msg.Value)
			if err != nil {
				k.logger.WithError(err).Warn("dropping malformed status event")
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

func (k *Kafka) Close() error {
	return k.writer.Close()
}
