// Package speech connects the kiosk conversation to optional voice output and input.
//
// Both capabilities are ports. A missing capability is reported as
// ErrSpeechUnavailable and the conversation continues in text.
package speech

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSpeechUnavailable means a synthesizer, player or recognizer is missing or refused.
	ErrSpeechUnavailable = errors.New("speech unavailable")
	// ErrTimeout means recognition produced nothing within the time budget.
	ErrTimeout = errors.New("speech recognition timed out")
	// ErrListening is returned when a recognition is already running. The
	// rejected call is not an attempt: OnStart and OnEnd hooks do not fire.
	ErrListening = errors.New("already listening")
)

// Recognition error codes
const (
	CodeNoSpeech     = "no_speech"
	CodeNotSupported = "not_supported"
	CodeDenied       = "denied"
)

// RecognitionError is a failed voice capture
type RecognitionError struct {
	Code string
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recognition failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("recognition failed (%s)", e.Code)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// Is matches any RecognitionError with the same code
func (e *RecognitionError) Is(target error) bool {
	var re *RecognitionError
	if !errors.As(target, &re) {
		return false
	}
	return re.Code == e.Code
}

// Sentinels for errors.Is
var (
	ErrNoSpeech     = &RecognitionError{Code: CodeNoSpeech}
	ErrNotSupported = &RecognitionError{Code: CodeNotSupported}
	ErrDenied       = &RecognitionError{Code: CodeDenied}
)

// AudioHandle points at synthesized audio
type AudioHandle struct {
	URL string
}

// Synthesizer turns text into audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (AudioHandle, error)
}

// Player plays audio until it ends or ctx is cancelled
type Player interface {
	Play(ctx context.Context, audio AudioHandle) error
}

// Recognizer captures one utterance and returns its transcript
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// SynthesizerFunc adapts a function to Synthesizer
type SynthesizerFunc func(ctx context.Context, text string) (AudioHandle, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, text string) (AudioHandle, error) {
	return f(ctx, text)
}

// PlayerFunc adapts a function to Player
type PlayerFunc func(ctx context.Context, audio AudioHandle) error

func (f PlayerFunc) Play(ctx context.Context, audio AudioHandle) error {
	return f(ctx, audio)
}

// RecognizerFunc adapts a function to Recognizer
type RecognizerFunc func(ctx context.Context) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context) (string, error) {
	return f(ctx)
}

// Unsupported stands in for every capability on a kiosk without audio
type Unsupported struct{}

func (Unsupported) Synthesize(context.Context, string) (AudioHandle, error) {
	return AudioHandle{}, ErrSpeechUnavailable
}

func (Unsupported) Play(context.Context, AudioHandle) error {
	return ErrSpeechUnavailable
}

func (Unsupported) Recognize(context.Context) (string, error) {
	return "", &RecognitionError{Code: CodeNotSupported, Err: ErrSpeechUnavailable}
}

// UserMessage is the chat text shown when voice input failed
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrNoSpeech):
		return "我沒有聽到您的語音，請再試一次。"
	default:
		return "語音識別出錯，請嘗試使用文字輸入。"
	}
}
