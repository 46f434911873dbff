package bus

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"kiosk/internal/models"
)

const subscriberBuffer = 64

// Memory fans events out to subscribers in the same process
type Memory struct {
	logger logrus.FieldLogger

	mu     sync.Mutex
	subs   map[int]chan models.StatusEvent
	nextID int
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewMemory creates an in-process bus
func NewMemory(logger logrus.FieldLogger) *Memory {
	return &Memory{
		logger: logger,
		subs:   make(map[int]chan models.StatusEvent),
		done:   make(chan struct{}),
	}
}

// Publish delivers ev to every subscriber. A subscriber whose buffer is full
// misses the event.
func (m *Memory) Publish(_ context.Context, ev models.StatusEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.WithFields(logrus.Fields{
				"subscriber":   id,
				"order_number": ev.OrderNumber,
			}).Warn("subscriber buffer full, dropping status event")
		}
	}
	return nil
}

// Subscribe returns a channel of events that is closed when ctx ends or the
// bus is closed.
func (m *Memory) Subscribe(ctx context.Context) (<-chan models.StatusEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	id := m.nextID
	m.nextID++
	ch := make(chan models.StatusEvent, subscriberBuffer)
	m.subs[id] = ch

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-ctx.Done():
		case <-m.done:
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}()
	return ch, nil
}

// Subscribers returns the number of live subscriptions
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close ends every subscription and waits for their watchers to exit
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}
