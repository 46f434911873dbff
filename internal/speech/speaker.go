package speech

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"kiosk/internal/logging"
)

// Mode decides what happens when text arrives while the speaker is busy
type Mode string

const (
	// ModeQueue plays utterances one after another
	ModeQueue Mode = "queue"
	// ModeReplace stops the current utterance and drops pending ones
	ModeReplace Mode = "replace"
)

const defaultQueueSize = 16

// ErrQueueFull is returned by Say when the queue mode backlog is full
var ErrQueueFull = errors.New("speech queue full")

type utterance struct {
	text   string
	seq    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Speaker reads assistant messages aloud. A single worker plays utterances,
// so two of them never overlap.
type Speaker struct {
	synth  Synthesizer
	player Player
	mode   Mode
	logger logrus.FieldLogger

	queue chan utterance

	mu        sync.Mutex
	speaking  bool
	seq       uint64
	cancelCur context.CancelFunc
	baseCtx   context.Context
	stop      context.CancelFunc
	done      chan struct{}
	closed    bool
}

// SpeakerOption configures a Speaker
type SpeakerOption func(*Speaker)

// WithMode sets queue or replace behaviour
func WithMode(m Mode) SpeakerOption {
	return func(s *Speaker) { s.mode = m }
}

// WithSpeakerLogger sets the logger
func WithSpeakerLogger(l logrus.FieldLogger) SpeakerOption {
	return func(s *Speaker) { s.logger = l }
}

// WithQueueSize sets the backlog kept in queue mode
func WithQueueSize(n int) SpeakerOption {
	return func(s *Speaker) {
		if n > 0 {
			s.queue = make(chan utterance, n)
		}
	}
}

// NewSpeaker starts a speaker. Nil ports are treated as Unsupported.
func NewSpeaker(synth Synthesizer, player Player, opts ...SpeakerOption) *Speaker {
	if synth == nil {
		synth = Unsupported{}
	}
	if player == nil {
		player = Unsupported{}
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Speaker{
		synth:   synth,
		player:  player,
		mode:    ModeReplace,
		logger:  logging.Discard(),
		queue:   make(chan utterance, defaultQueueSize),
		baseCtx: ctx,
		stop:    stop,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.worker()
	return s
}

// Available reports whether both ports are real
func (s *Speaker) Available() bool {
	_, noSynth := s.synth.(Unsupported)
	_, noPlayer := s.player.(Unsupported)
	return !noSynth && !noPlayer
}

// Say schedules text to be spoken and returns without waiting for playback
func (s *Speaker) Say(text string) error {
	if !s.Available() {
		return ErrSpeechUnavailable
	}
	if text == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSpeechUnavailable
	}

	if s.mode == ModeReplace {
		s.silenceLocked()
	}

	s.seq++
	ctx, cancel := context.WithCancel(s.baseCtx)
	select {
	case s.queue <- utterance{text: text, seq: s.seq, ctx: ctx, cancel: cancel}:
		return nil
	default:
		cancel()
		return ErrQueueFull
	}
}

// Speaking reports whether an utterance is being synthesized or played
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Stop silences the current utterance and drops pending ones
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silenceLocked()
}

// Close stops playback and the worker
func (s *Speaker) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.stop()
	<-s.done
}

func (s *Speaker) silenceLocked() {
	for {
		select {
		case u := <-s.queue:
			u.cancel()
		default:
			if s.cancelCur != nil {
				s.cancelCur()
				s.cancelCur = nil
			}
			return
		}
	}
}

func (s *Speaker) worker() {
	defer close(s.done)
	for {
		select {
		case <-s.baseCtx.Done():
			return
		case u := <-s.queue:
			s.play(u)
		}
	}
}

func (s *Speaker) play(u utterance) {
	defer u.cancel()

	s.mu.Lock()
	// in replace mode only the latest utterance may start
	if u.ctx.Err() != nil || (s.mode == ModeReplace && u.seq != s.seq) {
		s.mu.Unlock()
		return
	}
	s.speaking = true
	s.cancelCur = u.cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.speaking = false
		s.cancelCur = nil
		s.mu.Unlock()
	}()

	audio, err := s.synth.Synthesize(u.ctx, u.text)
	if err != nil {
		if u.ctx.Err() == nil {
			s.logger.WithError(err).Warn("speech synthesis failed")
		}
		return
	}
	if err := s.player.Play(u.ctx, audio); err != nil && u.ctx.Err() == nil {
		s.logger.WithError(err).Warn("audio playback failed")
	}
}
