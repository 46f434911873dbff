package presenter

import "sync"

// Transcript is a Sink that keeps everything it was shown
type Transcript struct {
	mu       sync.Mutex
	messages []Message
	controls Controls
}

func (t *Transcript) Render(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, m)
}

func (t *Transcript) SetControls(c Controls) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.controls = c
}

// Messages returns a copy of the rendered messages
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.messages...)
}

// Texts returns the text of every message from role
func (t *Transcript) Texts(role Role) []string {
	var out []string
	for _, m := range t.Messages() {
		if m.Role == role {
			out = append(out, m.Text)
		}
	}
	return out
}

// Last returns the most recent message
func (t *Transcript) Last() (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Controls returns the current button state
func (t *Transcript) Controls() Controls {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.controls
}
