package models

import (
	"encoding/json"
	"fmt"
)

// OrderStatus represents the preparation state of a submitted order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// EventCompleted is the event name of the order-completed push message
const EventCompleted = "completed"

// ParseOrderStatus validates a status coming from an admin request
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown order status: %s", s)
	}
}

// StatusEvent is an order status change pushed to kiosks
type StatusEvent struct {
	OrderNumber string      `json:"order_number"`
	Status      OrderStatus `json:"status,omitempty"`
	Event       string      `json:"event,omitempty"`
}

// DecodeStatusEvent accepts both push forms:
// {"order_number","status"} and {"order_number","event":"completed"}.
func DecodeStatusEvent(data []byte) (StatusEvent, error) {
	var ev StatusEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return StatusEvent{}, fmt.Errorf("decode status event: %w", err)
	}
	if ev.OrderNumber == "" {
		return StatusEvent{}, fmt.Errorf("status event without order number")
	}
	if ev.Status == "" && ev.Event == EventCompleted {
		ev.Status = OrderStatusCompleted
	}
	if ev.Status == "" {
		return StatusEvent{}, fmt.Errorf("status event %s without status", ev.OrderNumber)
	}
	return ev, nil
}
