package monitoring

import (
	"sync"
	"time"
)

// Monitor keeps a snapshot of order desk activity for the admin stats endpoint
type Monitor struct {
	metrics      map[string]interface{}
	metricsMutex sync.RWMutex
	startTime    time.Time
}

// NewMonitor creates a new monitoring instance
func NewMonitor() *Monitor {
	return &Monitor{
		metrics:   make(map[string]interface{}),
		startTime: time.Now(),
	}
}

// GetMetrics returns a copy of all values plus the uptime
func (m *Monitor) GetMetrics() map[string]interface{} {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()

	metrics := make(map[string]interface{}, len(m.metrics)+1)
	for k, v := range m.metrics {
		metrics[k] = v
	}
	metrics["uptime_seconds"] = time.Since(m.startTime).Seconds()
	return metrics
}

// RecordOrder counts a confirmed order and remembers its number
func (m *Monitor) RecordOrder(orderNumber string, cups int) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()

	orders, _ := m.metrics["orders_confirmed"].(int)
	total, _ := m.metrics["cups_confirmed"].(int)
	m.metrics["orders_confirmed"] = orders + 1
	m.metrics["cups_confirmed"] = total + cups
	m.metrics["last_order_number"] = orderNumber
	m.metrics["last_order_at"] = time.Now().Format(time.RFC3339)
}

// RecordStatus remembers the latest status change pushed to kiosks
func (m *Monitor) RecordStatus(orderNumber, status string) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()

	m.metrics["last_status_order"] = orderNumber
	m.metrics["last_status"] = status
	m.metrics["last_status_at"] = time.Now().Format(time.RFC3339)
}
