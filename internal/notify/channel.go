// Package notify keeps the kiosk connected to the order desk's status push stream.
package notify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"kiosk/internal/logging"
	"kiosk/internal/models"
)

// ErrChannelUnavailable is reported by Err once reconnection gave up
var ErrChannelUnavailable = errors.New("notification channel unavailable")

const (
	defaultRetries = 5
	defaultBackoff = 2 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
)

// Channel receives status events over a websocket and hands them to subscribers.
// Connection problems are logged and retried; they never reach the caller.
type Channel struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	retries int
	backoff time.Duration
	logger  logrus.FieldLogger

	mu       sync.Mutex
	handlers map[int]func(models.StatusEvent)
	nextID   int
	err      error
	conn     *websocket.Conn
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Channel
type Option func(*Channel)

// WithRetries sets how many consecutive failed attempts are retried before giving up
func WithRetries(n int) Option {
	return func(c *Channel) { c.retries = n }
}

// WithBackoff sets the fixed pause between attempts
func WithBackoff(d time.Duration) Option {
	return func(c *Channel) { c.backoff = d }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Channel) { c.logger = l }
}

// WithHeader adds headers to the websocket handshake
func WithHeader(h http.Header) Option {
	return func(c *Channel) { c.header = h }
}

// WithDialer replaces the default websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// NewChannel creates a channel for the given ws:// or wss:// URL
func NewChannel(url string, opts ...Option) *Channel {
	c := &Channel{
		url:      url,
		dialer:   websocket.DefaultDialer,
		retries:  defaultRetries,
		backoff:  defaultBackoff,
		logger:   logging.Discard(),
		handlers: make(map[int]func(models.StatusEvent)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnStatusEvent registers a handler and returns a func that removes it.
// Handlers run on the channel's read goroutine.
func (c *Channel) OnStatusEvent(fn func(models.StatusEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}

// Connect starts connecting in the background and returns immediately.
// Calling it again while the channel runs does nothing.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.err = nil
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
}

// Err returns ErrChannelUnavailable once the channel gave up, nil otherwise
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close stops the channel and waits for the read goroutine to exit
func (c *Channel) Close() error {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if conn != nil {
		conn.Close()
	}
	<-done
	return nil
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	failures := 0
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			c.logger.WithError(err).WithField("attempt", failures).Warn("status channel connect failed")
			if failures > c.retries {
				c.giveUp()
				return
			}
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		failures = 0
		c.logger.WithField("url", c.url).Info("status channel connected")
		c.setConn(conn)
		err = c.readLoop(ctx, conn)
		c.setConn(nil)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		c.logger.WithError(err).Warn("status channel dropped, reconnecting")
		if !sleep(ctx, c.backoff) {
			return
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := models.DecodeStatusEvent(message)
		if err != nil {
			c.logger.WithError(err).Debug("ignoring status message")
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Channel) dispatch(ev models.StatusEvent) {
	c.mu.Lock()
	fns := make([]func(models.StatusEvent), 0, len(c.handlers))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.handlers[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Channel) giveUp() {
	c.mu.Lock()
	c.err = ErrChannelUnavailable
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.logger.WithField("url", c.url).Error("status channel unavailable, giving up")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
