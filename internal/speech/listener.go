package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"kiosk/internal/logging"
)

const defaultRecognizeTimeout = 8 * time.Second

// Listener runs one recognition at a time and reports start and end of every
// attempt, whatever the outcome. A Listen rejected with ErrListening is not an
// attempt.
type Listener struct {
	rec     Recognizer
	timeout time.Duration
	logger  logrus.FieldLogger

	mu        sync.Mutex
	listening bool
	onStart   []func()
	onEnd     []func(error)
}

// ListenerOption configures a Listener
type ListenerOption func(*Listener)

// WithTimeout sets the time budget of one recognition
func WithTimeout(d time.Duration) ListenerOption {
	return func(l *Listener) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithListenerLogger sets the logger
func WithListenerLogger(lg logrus.FieldLogger) ListenerOption {
	return func(l *Listener) { l.logger = lg }
}

// NewListener wraps a recognizer. A nil recognizer is Unsupported.
func NewListener(rec Recognizer, opts ...ListenerOption) *Listener {
	if rec == nil {
		rec = Unsupported{}
	}
	l := &Listener{
		rec:     rec,
		timeout: defaultRecognizeTimeout,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnStart registers fn, called when a recognition begins
func (l *Listener) OnStart(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStart = append(l.onStart, fn)
}

// OnEnd registers fn, called with the outcome when a recognition ends
func (l *Listener) OnEnd(fn func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onEnd = append(l.onEnd, fn)
}

// Listening reports whether a recognition is running
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening
}

// Listen captures one utterance. It gives up with ErrTimeout after the
// configured budget even if the recognizer does not honour ctx.
func (l *Listener) Listen(ctx context.Context) (text string, err error) {
	l.mu.Lock()
	if l.listening {
		// the running attempt owns the start and end notifications
		l.mu.Unlock()
		return "", ErrListening
	}
	l.listening = true
	starts := append([]func(){}, l.onStart...)
	ends := append([]func(error){}, l.onEnd...)
	l.mu.Unlock()

	for _, fn := range starts {
		fn()
	}
	defer func() {
		l.mu.Lock()
		l.listening = false
		l.mu.Unlock()
		for _, fn := range ends {
			fn(err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	out := make(chan result, 1)
	go func() {
		t, e := l.rec.Recognize(ctx)
		out <- result{t, e}
	}()

	select {
	case r := <-out:
		text, err = r.text, r.err
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			err = ErrNoSpeech
		}
	}
	if err != nil {
		err = l.classify(ctx, err)
		l.logger.WithError(err).Info("voice recognition failed")
		return "", err
	}
	return text, nil
}

func (l *Listener) classify(ctx context.Context, err error) error {
	var re *RecognitionError
	switch {
	case errors.As(err, &re):
		return err
	case errors.Is(err, ErrTimeout):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, ErrSpeechUnavailable):
		return &RecognitionError{Code: CodeNotSupported, Err: err}
	default:
		return err
	}
}
