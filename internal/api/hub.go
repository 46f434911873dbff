package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"kiosk/internal/bus"
	"kiosk/internal/models"
	"kiosk/internal/monitoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // kiosks connect from any origin on the shop network
	},
}

// Hub pushes status events to every connected kiosk
type Hub struct {
	logger  logrus.FieldLogger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	clients map[*pushClient]struct{}
}

type pushClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub
func NewHub(logger logrus.FieldLogger, metrics *monitoring.Metrics) *Hub {
	return &Hub{logger: logger, metrics: metrics, clients: make(map[*pushClient]struct{})}
}

// Clients returns the number of connected kiosks
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues data for every client. Clients with a full buffer miss it.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("push buffer full, dropping message")
		}
	}
}

// Relay forwards events from b to the kiosks until ctx ends. A completed
// order is also announced in the event form older kiosks listen for.
func (h *Hub) Relay(ctx context.Context, b bus.Bus) error {
	events, err := b.Subscribe(ctx)
	if err != nil {
		return err
	}
	for ev := range events {
		h.push(ev)
		if ev.Status == models.OrderStatusCompleted {
			h.push(models.StatusEvent{OrderNumber: ev.OrderNumber, Event: models.EventCompleted})
		}
	}
	return ctx.Err()
}

func (h *Hub) push(ev models.StatusEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).Error("failed to encode status event")
		return
	}
	h.Broadcast(data)
}

// ServeWS upgrades the request and registers the kiosk
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("failed to upgrade connection")
		return
	}

	client := &pushClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.PushClientConnected()
	}
	h.logger.WithField("remote", c.Request.RemoteAddr).Info("kiosk connected")

	go h.writePump(client)
	go h.readPump(client)
}

// Close disconnects every kiosk
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if h.metrics != nil {
			h.metrics.PushClientGone()
		}
	}
}

func (h *Hub) unregister(c *pushClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		if h.metrics != nil {
			h.metrics.PushClientGone()
		}
	}
}

// readPump discards anything the kiosk sends and notices when it goes away
func (h *Hub) readPump(c *pushClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).Warn("websocket error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *pushClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
