// Package session holds the order-confirmation dialogue of one kiosk conversation.
//
// A Session walks a draft order through analysis, confirmation, submission and
// completion. Backend calls run without holding the session lock; when a call
// returns, its result is applied only if the session is still waiting for it.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kiosk/internal/logging"
	"kiosk/internal/models"
)

// State is the position of a session in the order dialogue
type State string

const (
	StateIdle       State = "idle"
	StateAnalyzing  State = "analyzing"
	StateConfirming State = "confirming"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
	// StateCancelled is passed through on the way back to idle after a cancel.
	StateCancelled State = "cancelled"
)

// OrderBackend is the part of the order desk the session talks to. key
// identifies one draft: every submission of the same draft carries it.
type OrderBackend interface {
	AnalyzeOrder(ctx context.Context, text string) (models.AnalyzeResponse, error)
	ConfirmOrder(ctx context.Context, key string, lines []models.OrderLine) (models.ConfirmResponse, error)
}

// Snapshot is a copy of the session state
type Snapshot struct {
	State           State
	Draft           models.Draft
	OrderNumber     string
	FullOrderNumber string
	WaitingMinutes  int
}

// Session is the order dialogue of one conversation
type Session struct {
	backend     OrderBackend
	logger      logrus.FieldLogger
	defaults    models.Defaults
	initialWait int

	mu              sync.Mutex
	state           State
	draft           models.Draft
	orderNumber     string
	fullOrderNumber string
	waitingMinutes  int
	gen             uint64
	confirmKey      string
	newKey          func() string

	observers
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.logger = l }
}

// WithDefaults sets the values used for options the analyzer left empty
func WithDefaults(d models.Defaults) Option {
	return func(s *Session) { s.defaults = d }
}

// WithInitialWait sets the waiting time announced when an order is confirmed
func WithInitialWait(minutes int) Option {
	return func(s *Session) { s.initialWait = minutes }
}

// New creates an idle session
func New(backend OrderBackend, opts ...Option) *Session {
	s := &Session{
		backend:     backend,
		logger:      logging.Discard(),
		defaults:    models.StandardDefaults(),
		initialWait: 3,
		state:       StateIdle,
		newKey:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:           s.state,
		Draft:           s.draft.Clone(),
		OrderNumber:     s.orderNumber,
		FullOrderNumber: s.fullOrderNumber,
		WaitingMinutes:  s.waitingMinutes,
	}
}

// StartAnalysis sends the customer's text to the order desk and installs the
// returned draft. Only legal from Idle; a call while Analyzing fails with
// ErrSessionBusy and leaves the session untouched.
func (s *Session) StartAnalysis(ctx context.Context, text string) (models.Draft, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &Error{Kind: ErrAnalysisFailed, Message: MsgEmptyOrder}
	}

	var pending []event
	s.mu.Lock()
	switch s.state {
	case StateIdle:
	case StateAnalyzing:
		s.mu.Unlock()
		return nil, ErrSessionBusy
	default:
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot analyze while %s", ErrInvalidState, st)
	}
	s.gen++
	gen := s.gen
	s.setState(StateAnalyzing, "analysis started", &pending)
	s.mu.Unlock()
	s.emit(pending)

	resp, err := s.backend.AnalyzeOrder(ctx, text)

	pending = pending[:0]
	s.mu.Lock()
	if s.gen != gen || s.state != StateAnalyzing {
		s.mu.Unlock()
		s.logger.WithField("text", text).Info("discarding analysis result after cancel")
		return nil, ErrStale
	}

	if err != nil {
		s.setState(StateIdle, "analysis error", &pending)
		s.mu.Unlock()
		s.emit(pending)
		s.logger.WithError(err).Warn("order analysis failed")
		return nil, &Error{Kind: ErrAnalysisFailed, Message: MsgAnalysisError, Err: err}
	}

	draft := models.NormalizeDraft(resp.OrderDetails, s.defaults)
	if resp.Status != models.StatusSuccess || len(draft) == 0 {
		s.setState(StateIdle, "nothing recognised", &pending)
		s.mu.Unlock()
		s.emit(pending)
		msg := resp.Message
		if msg == "" {
			msg = MsgAnalysisFailed
		}
		return nil, &Error{Kind: ErrAnalysisFailed, Message: msg}
	}

	s.draft = draft
	s.confirmKey = s.newKey()
	s.setState(StateConfirming, "draft ready", &pending)
	s.mu.Unlock()
	s.emit(pending)
	return draft.Clone(), nil
}

// AdoptDraft installs lines that arrived with a chat reply. Only legal from Idle.
func (s *Session) AdoptDraft(lines []models.OrderLine) (models.Draft, error) {
	draft := models.NormalizeDraft(lines, s.defaults)
	if len(draft) == 0 {
		return nil, &Error{Kind: ErrAnalysisFailed, Message: MsgAnalysisFailed}
	}

	var pending []event
	s.mu.Lock()
	if s.state != StateIdle {
		st := s.state
		s.mu.Unlock()
		if st == StateAnalyzing || st == StateSubmitting {
			return nil, ErrSessionBusy
		}
		return nil, fmt.Errorf("%w: cannot adopt a draft while %s", ErrInvalidState, st)
	}
	s.gen++
	s.draft = draft
	s.confirmKey = s.newKey()
	s.setState(StateConfirming, "draft from chat", &pending)
	s.mu.Unlock()
	s.emit(pending)
	return draft.Clone(), nil
}

// Confirm submits the draft. Only legal from Confirming. A second call while
// the first is still Submitting does not reach the order desk and returns
// ErrSessionBusy. On failure the draft is kept and the session returns to
// Confirming so the customer can retry or cancel.
func (s *Session) Confirm(ctx context.Context) (Receipt, error) {
	var pending []event
	s.mu.Lock()
	switch s.state {
	case StateConfirming:
	case StateSubmitting:
		s.mu.Unlock()
		s.logger.Debug("confirm ignored, submission in flight")
		return Receipt{}, ErrSessionBusy
	default:
		st := s.state
		s.mu.Unlock()
		return Receipt{}, fmt.Errorf("%w: cannot confirm while %s", ErrInvalidState, st)
	}
	s.gen++
	gen := s.gen
	lines := s.draft.Clone()
	key := s.confirmKey
	s.setState(StateSubmitting, "confirm requested", &pending)
	s.mu.Unlock()
	s.emit(pending)

	resp, err := s.backend.ConfirmOrder(ctx, key, lines)

	pending = pending[:0]
	s.mu.Lock()
	if s.gen != gen || s.state != StateSubmitting {
		s.mu.Unlock()
		s.logger.Info("discarding confirm result after reset")
		return Receipt{}, ErrStale
	}

	if err != nil || !resp.OK() {
		s.setState(StateConfirming, "confirm failed", &pending)
		s.mu.Unlock()
		s.emit(pending)
		if err != nil {
			s.logger.WithError(err).Warn("order confirmation failed")
			return Receipt{}, &Error{Kind: ErrConfirmFailed, Message: MsgConfirmError, Err: err}
		}
		msg := resp.Message
		if msg == "" {
			msg = MsgConfirmFailed
		}
		return Receipt{}, &Error{Kind: ErrConfirmFailed, Message: msg}
	}

	s.confirmKey = ""
	s.orderNumber = resp.OrderNumber
	s.fullOrderNumber = resp.FullOrderNumber
	s.waitingMinutes = s.initialWait
	receipt := Receipt{
		OrderNumber:     s.orderNumber,
		FullOrderNumber: s.fullOrderNumber,
		Draft:           s.draft.Clone(),
		WaitingMinutes:  s.waitingMinutes,
		Message:         ConfirmedMessage(s.orderNumber, s.waitingMinutes),
	}
	s.setState(StateConfirmed, "order accepted", &pending)
	pending = append(pending, event{receipt: &receipt})
	s.mu.Unlock()
	s.emit(pending)

	s.logger.WithField("order_number", receipt.OrderNumber).Info("order confirmed")
	return receipt, nil
}

// Cancel discards the draft and returns to Idle. While Analyzing the pending
// result is abandoned. While Submitting the cancel is ignored: the outcome of
// the submission decides.
func (s *Session) Cancel() (string, error) {
	var pending []event
	s.mu.Lock()
	switch s.state {
	case StateConfirming, StateAnalyzing:
		s.gen++
		s.draft = nil
		s.confirmKey = ""
		s.setState(StateCancelled, "cancelled by customer", &pending)
		s.setState(StateIdle, "cancelled by customer", &pending)
		s.mu.Unlock()
		s.emit(pending)
		return MsgCancelled, nil
	case StateSubmitting:
		s.mu.Unlock()
		s.logger.Info("cancel ignored, submission in flight")
		return MsgStillSubmitting, nil
	default:
		st := s.state
		s.mu.Unlock()
		return "", fmt.Errorf("%w: nothing to cancel while %s", ErrInvalidState, st)
	}
}

// Reset returns to Idle from any state and forgets the current order.
// Results of calls still in flight are discarded.
func (s *Session) Reset() {
	var pending []event
	s.mu.Lock()
	s.gen++
	s.resetLocked("reset", &pending)
	s.mu.Unlock()
	s.emit(pending)
}

// ApplyStatusEvent updates the waiting time of a confirmed order. Events for
// other orders, or arriving in any other state, are ignored and false is returned.
func (s *Session) ApplyStatusEvent(ev models.StatusEvent) bool {
	var pending []event
	s.mu.Lock()
	if s.state != StateConfirmed || !matchOrderNumber(ev.OrderNumber, s.orderNumber, s.fullOrderNumber) {
		s.mu.Unlock()
		return false
	}

	switch ev.Status {
	case models.OrderStatusPreparing:
		s.waitingMinutes = max(1, s.waitingMinutes-2)
	case models.OrderStatusReady, models.OrderStatusCompleted:
		s.waitingMinutes = 0
	}

	update := StatusUpdate{
		OrderNumber:    s.orderNumber,
		Status:         ev.Status,
		WaitingMinutes: s.waitingMinutes,
		Message:        StatusMessage(ev.Status, s.orderNumber, s.waitingMinutes),
	}
	pending = append(pending, event{status: &update})

	if ev.Status == models.OrderStatusCompleted {
		s.gen++
		s.resetLocked("order completed", &pending)
	}
	s.mu.Unlock()
	s.emit(pending)

	s.logger.WithFields(logrus.Fields{
		"order_number": update.OrderNumber,
		"status":       update.Status,
	}).Debug("status applied")
	return true
}

func (s *Session) resetLocked(reason string, pending *[]event) {
	s.draft = nil
	s.confirmKey = ""
	s.orderNumber = ""
	s.fullOrderNumber = ""
	s.waitingMinutes = 0
	if s.state != StateIdle {
		s.setState(StateIdle, reason, pending)
	}
}

// setState must be called with s.mu held.
func (s *Session) setState(to State, reason string, pending *[]event) {
	from := s.state
	s.state = to
	*pending = append(*pending, event{transition: &Transition{From: from, To: to, Reason: reason}})
}
