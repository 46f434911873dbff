// Package bus carries order status events from the admin side to the push hub.
package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"kiosk/internal/config"
	"kiosk/internal/logging"
	"kiosk/internal/models"
)

// ErrClosed is returned after Close
var ErrClosed = errors.New("bus closed")

// Bus publishes status events to every subscriber. A subscription ends when
// its context is cancelled; the channel is closed then.
type Bus interface {
	Publish(ctx context.Context, ev models.StatusEvent) error
	Subscribe(ctx context.Context) (<-chan models.StatusEvent, error)
	Close() error
}

// New creates the bus selected by cfg.Kind
func New(cfg config.BusConfig, logger logrus.FieldLogger) (Bus, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	switch cfg.Kind {
	case "", "memory":
		return NewMemory(logger), nil
	case "rabbitmq":
		return DialRabbit(cfg.URL, logger)
	case "kafka":
		return NewKafka(cfg.Brokers, cfg.Topic, logger), nil
	default:
		return nil, fmt.Errorf("unknown bus kind: %s", cfg.Kind)
	}
}
