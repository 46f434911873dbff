// Package monitoring exposes prometheus metrics and an activity snapshot for the order desk.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the order desk collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	confirms        *prometheus.CounterVec
	cups            prometheus.Counter
	statusEvents    *prometheus.CounterVec
	pushClients     prometheus.Gauge
}

// NewMetrics creates and registers the collectors
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kiosk",
				Name:      "http_requests_total",
				Help:      "HTTP requests served by the order desk",
			},
			[]string{"method", "path", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kiosk",
				Name:      "http_request_duration_ms",
				Help:      "HTTP request latency in milliseconds",
				Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"method", "path"},
		),
		confirms: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kiosk",
				Name:      "orders_confirmed_total",
				Help:      "Confirm requests by result",
			},
			[]string{"result"},
		),
		cups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kiosk",
			Name:      "cups_ordered_total",
			Help:      "Cups stored by confirmed orders",
		}),
		statusEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kiosk",
				Name:      "status_events_total",
				Help:      "Order status events published",
			},
			[]string{"status"},
		),
		pushClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kiosk",
			Name:      "push_clients",
			Help:      "Kiosks connected to the status push endpoint",
		}),
	}

	registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.confirms,
		m.cups,
		m.statusEvents,
		m.pushClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records count and latency of every request by route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).
			Observe(float64(time.Since(start).Microseconds()) / 1000)
	}
}

// Confirm records the result of a confirm request: created, replayed or failed
func (m *Metrics) Confirm(result string, cups int) {
	m.confirms.WithLabelValues(result).Inc()
	if cups > 0 {
		m.cups.Add(float64(cups))
	}
}

// StatusEvent counts a published status change
func (m *Metrics) StatusEvent(status string) {
	m.statusEvents.WithLabelValues(status).Inc()
}

// PushClientConnected and PushClientGone track open push connections
func (m *Metrics) PushClientConnected() { m.pushClients.Inc() }

func (m *Metrics) PushClientGone() { m.pushClients.Dec() }
