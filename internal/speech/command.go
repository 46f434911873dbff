package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandPlayer plays audio with an external program, e.g. mpv --no-video.
// The audio URL is appended as the last argument.
type CommandPlayer struct {
	args []string
}

// NewCommandPlayer creates a player running args
func NewCommandPlayer(args []string) (*CommandPlayer, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no player command", ErrSpeechUnavailable)
	}
	return &CommandPlayer{args: append([]string(nil), args...)}, nil
}

func (p *CommandPlayer) Play(ctx context.Context, audio AudioHandle) error {
	argv := append(append([]string(nil), p.args[1:]...), audio.URL)
	cmd := exec.CommandContext(ctx, p.args[0], argv...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrSpeechUnavailable, err)
		}
		return fmt.Errorf("%s: %w: %s", p.args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CommandRecognizer runs an external capture program and reads the transcript
// from its standard output.
type CommandRecognizer struct {
	args []string
}

// NewCommandRecognizer creates a recognizer running args
func NewCommandRecognizer(args []string) (*CommandRecognizer, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no recognizer command", ErrSpeechUnavailable)
	}
	return &CommandRecognizer{args: append([]string(nil), args...)}, nil
}

func (r *CommandRecognizer) Recognize(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.args[0], r.args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.Is(err, exec.ErrNotFound):
		return "", &RecognitionError{Code: CodeNotSupported, Err: err}
	case errors.Is(err, os.ErrPermission):
		return "", &RecognitionError{Code: CodeDenied, Err: err}
	default:
		return "", fmt.Errorf("%s: %w: %s", r.args[0], err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", &RecognitionError{Code: CodeNoSpeech}
	}
	return text, nil
}
