// Package presenter turns session events into chat messages for a display.
package presenter

import (
	"sync"

	"kiosk/internal/session"
)

// Role identifies who a chat message comes from
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Controls is the state of the confirm and cancel buttons
type Controls struct {
	Visible bool
	Enabled bool
}

// Message is one chat bubble together with the button state at the time it was shown
type Message struct {
	Role     Role
	Text     string
	Controls Controls
}

// Sink displays messages
type Sink interface {
	Render(Message)
	SetControls(Controls)
}

// ControlsFor returns the button state for a session state: visible while the
// customer is asked to confirm, disabled while the order is being submitted.
func ControlsFor(state session.State) Controls {
	switch state {
	case session.StateConfirming:
		return Controls{Visible: true, Enabled: true}
	case session.StateSubmitting:
		return Controls{Visible: true, Enabled: false}
	default:
		return Controls{}
	}
}

// Presenter renders one session to any number of sinks
type Presenter struct {
	sess *session.Session

	mu     sync.Mutex
	sinks  []Sink
	detach []func()
}

// New subscribes to sess and renders its events to sinks
func New(sess *session.Session, sinks ...Sink) *Presenter {
	p := &Presenter{sess: sess, sinks: sinks}
	p.detach = []func(){
		sess.OnStateChange(p.onTransition),
		sess.OnConfirmed(func(r session.Receipt) { p.Assistant(r.Message) }),
		sess.OnStatusUpdate(func(u session.StatusUpdate) { p.Assistant(u.Message) }),
	}
	return p
}

// AddSink adds a display
func (p *Presenter) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Close stops following the session
func (p *Presenter) Close() {
	p.mu.Lock()
	detach := p.detach
	p.detach = nil
	p.mu.Unlock()
	for _, fn := range detach {
		fn()
	}
}

// User shows what the customer said
func (p *Presenter) User(text string) { p.render(RoleUser, text) }

// Assistant shows an assistant reply
func (p *Presenter) Assistant(text string) { p.render(RoleAssistant, text) }

// System shows a notice that is not part of the conversation
func (p *Presenter) System(text string) { p.render(RoleSystem, text) }

func (p *Presenter) render(role Role, text string) {
	if text == "" {
		return
	}
	msg := Message{Role: role, Text: text, Controls: ControlsFor(p.sess.State())}
	for _, s := range p.snapshotSinks() {
		s.Render(msg)
	}
}

func (p *Presenter) onTransition(tr session.Transition) {
	controls := ControlsFor(tr.To)
	for _, s := range p.snapshotSinks() {
		s.SetControls(controls)
	}

	// a failed submit returns to Confirming; the failure message follows instead of a second prompt
	if tr.To == session.StateConfirming && tr.From != session.StateSubmitting {
		p.Assistant(session.ConfirmPrompt(p.sess.Snapshot().Draft))
	}
}

func (p *Presenter) snapshotSinks() []Sink {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sink(nil), p.sinks...)
}
