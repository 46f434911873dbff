package session

import (
	"sync"

	"kiosk/internal/models"
)

// Transition describes one state change
type Transition struct {
	From   State
	To     State
	Reason string
}

// Receipt is published when the order desk accepted an order
type Receipt struct {
	OrderNumber     string
	FullOrderNumber string
	Draft           models.Draft
	WaitingMinutes  int
	Message         string
}

// StatusUpdate is published when a status event for the confirmed order was applied
type StatusUpdate struct {
	OrderNumber    string
	Status         models.OrderStatus
	WaitingMinutes int
	Message        string
}

type event struct {
	transition *Transition
	receipt    *Receipt
	status     *StatusUpdate
}

type observers struct {
	obsMu     sync.Mutex
	nextID    int
	onState   map[int]func(Transition)
	onConfirm map[int]func(Receipt)
	onStatus  map[int]func(StatusUpdate)
}

// OnStateChange registers fn for every transition and returns a func that removes it.
func (o *observers) OnStateChange(fn func(Transition)) func() {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	if o.onState == nil {
		o.onState = make(map[int]func(Transition))
	}
	id := o.nextID
	o.nextID++
	o.onState[id] = fn
	return func() {
		o.obsMu.Lock()
		defer o.obsMu.Unlock()
		delete(o.onState, id)
	}
}

// OnConfirmed registers fn for accepted orders and returns a func that removes it.
func (o *observers) OnConfirmed(fn func(Receipt)) func() {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	if o.onConfirm == nil {
		o.onConfirm = make(map[int]func(Receipt))
	}
	id := o.nextID
	o.nextID++
	o.onConfirm[id] = fn
	return func() {
		o.obsMu.Lock()
		defer o.obsMu.Unlock()
		delete(o.onConfirm, id)
	}
}

// OnStatusUpdate registers fn for applied status events and returns a func that removes it.
func (o *observers) OnStatusUpdate(fn func(StatusUpdate)) func() {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	if o.onStatus == nil {
		o.onStatus = make(map[int]func(StatusUpdate))
	}
	id := o.nextID
	o.nextID++
	o.onStatus[id] = fn
	return func() {
		o.obsMu.Lock()
		defer o.obsMu.Unlock()
		delete(o.onStatus, id)
	}
}

// emit delivers events in order. Must be called without the session lock held.
func (o *observers) emit(events []event) {
	if len(events) == 0 {
		return
	}

	o.obsMu.Lock()
	ids := make([]int, 0, o.nextID)
	for id := 0; id < o.nextID; id++ {
		ids = append(ids, id)
	}
	stateFns := make([]func(Transition), 0, len(o.onState))
	confirmFns := make([]func(Receipt), 0, len(o.onConfirm))
	statusFns := make([]func(StatusUpdate), 0, len(o.onStatus))
	for _, id := range ids {
		if fn, ok := o.onState[id]; ok {
			stateFns = append(stateFns, fn)
		}
		if fn, ok := o.onConfirm[id]; ok {
			confirmFns = append(confirmFns, fn)
		}
		if fn, ok := o.onStatus[id]; ok {
			statusFns = append(statusFns, fn)
		}
	}
	o.obsMu.Unlock()

	for _, ev := range events {
		switch {
		case ev.transition != nil:
			for _, fn := range stateFns {
				fn(*ev.transition)
			}
		case ev.receipt != nil:
			for _, fn := range confirmFns {
				fn(*ev.receipt)
			}
		case ev.status != nil:
			for _, fn := range statusFns {
				fn(*ev.status)
			}
		}
	}
}
