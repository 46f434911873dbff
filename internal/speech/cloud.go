package speech

import (
	"context"
	"fmt"
	"net/url"

	"kiosk/internal/models"
)

// SpeechBackend is the order desk's text-to-speech endpoint
type SpeechBackend interface {
	SynthesizeSpeech(ctx context.Context, text, style string) (models.SpeechResponse, error)
}

// CloudSynthesizer asks the order desk to synthesize speech and returns the audio URL
type CloudSynthesizer struct {
	backend SpeechBackend
	style   string
	base    *url.URL
}

// NewCloudSynthesizer creates a synthesizer. Relative audio URLs are resolved
// against baseURL.
func NewCloudSynthesizer(backend SpeechBackend, style, baseURL string) (*CloudSynthesizer, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if style == "" {
		style = "default"
	}
	return &CloudSynthesizer{backend: backend, style: style, base: base}, nil
}

func (c *CloudSynthesizer) Synthesize(ctx context.Context, text string) (AudioHandle, error) {
	resp, err := c.backend.SynthesizeSpeech(ctx, text, c.style)
	if err != nil {
		return AudioHandle{}, fmt.Errorf("%w: %v", ErrSpeechUnavailable, err)
	}
	if !resp.Success || resp.AudioURL == "" {
		return AudioHandle{}, fmt.Errorf("%w: %s", ErrSpeechUnavailable, resp.Error)
	}

	ref, err := url.Parse(resp.AudioURL)
	if err != nil {
		return AudioHandle{}, fmt.Errorf("invalid audio url %q: %w", resp.AudioURL, err)
	}
	return AudioHandle{URL: c.base.ResolveReference(ref).String()}, nil
}
