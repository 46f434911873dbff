package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk/internal/models"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// pushServer sends the given messages on every connection, then either
// closes the connection or keeps it open until the test ends.
func pushServer(t *testing.T, hangUp bool, messages ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var connections atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		connections.Add(1)

		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		if hangUp {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &connections
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type collector struct {
	mu     sync.Mutex
	events []models.StatusEvent
}

func (c *collector) add(ev models.StatusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) get() []models.StatusEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.StatusEvent(nil), c.events...)
}

func TestChannelDeliversBothWireForms(t *testing.T) {
	srv, _ := pushServer(t, false,
		`{"order_number":"A12","status":"preparing"}`,
		`not json`,
		`{"status":"ready"}`,
		`{"order_number":"A12","event":"completed"}`,
	)

	ch := NewChannel(wsURL(srv), WithBackoff(10*time.Millisecond))
	got := &collector{}
	ch.OnStatusEvent(got.add)
	ch.Connect(context.Background())
	defer ch.Close()

	require.Eventually(t, func() bool { return len(got.get()) == 2 }, 2*time.Second, 10*time.Millisecond)
	events := got.get()
	assert.Equal(t, models.OrderStatusPreparing, events[0].Status)
	assert.Equal(t, models.OrderStatusCompleted, events[1].Status)
	assert.Equal(t, "A12", events[1].OrderNumber)
	assert.NoError(t, ch.Err())
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	srv, connections := pushServer(t, true, `{"order_number":"B3","status":"pending"}`)

	ch := NewChannel(wsURL(srv), WithRetries(2), WithBackoff(10*time.Millisecond))
	got := &collector{}
	ch.OnStatusEvent(got.add)
	ch.Connect(context.Background())
	defer ch.Close()

	// every successful connect resets the retry budget, so drops never exhaust it
	require.Eventually(t, func() bool { return connections.Load() >= 4 }, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, len(got.get()), 3)
	assert.NoError(t, ch.Err())
}

func TestChannelGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	ch := NewChannel(url, WithRetries(2), WithBackoff(5*time.Millisecond))
	ch.Connect(context.Background())

	require.Eventually(t, func() bool { return ch.Err() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, ch.Err(), ErrChannelUnavailable)
	assert.NoError(t, ch.Close())
}

func TestChannelUnsubscribe(t *testing.T) {
	srv, _ := pushServer(t, false, `{"order_number":"C1","status":"ready"}`)

	ch := NewChannel(wsURL(srv))
	kept := &collector{}
	dropped := &collector{}
	ch.OnStatusEvent(kept.add)
	unsubscribe := ch.OnStatusEvent(dropped.add)
	unsubscribe()

	ch.Connect(context.Background())
	defer ch.Close()

	require.Eventually(t, func() bool { return len(kept.get()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, dropped.get())
}

func TestChannelCloseStopsReading(t *testing.T) {
	srv, connections := pushServer(t, false)

	ch := NewChannel(wsURL(srv))
	ch.Connect(context.Background())
	require.Eventually(t, func() bool { return connections.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		ch.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.NoError(t, ch.Err())
}
