// Package tts renders assistant replies to mp3 files served under /temp_audio.
package tts

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kiosk/internal/logging"
)

// ErrDisabled is returned when no synthesizer is configured
var ErrDisabled = errors.New("speech synthesis is not configured")

// DefaultRate is the speaking rate used when a request gives none
const DefaultRate = 1.2

// Voices maps a style to an Azure neural voice
var Voices = map[string]string{
	"female_warm":     "zh-TW-HsiaoChenNeural",
	"female_cheerful": "zh-TW-HsiaoYuNeural",
	"male_warm":       "zh-TW-YunJheNeural",
	"default":         "zh-TW-HsiaoYuNeural",
}

// Provider writes speech for text into an audio file and returns its name
type Provider interface {
	Synthesize(ctx context.Context, text, style string, rate float64) (string, error)
}

// Disabled is the provider used when synthesis is off
type Disabled struct{}

func (Disabled) Synthesize(context.Context, string, string, float64) (string, error) {
	return "", ErrDisabled
}

// AzureProvider calls the Azure Speech REST endpoint
type AzureProvider struct {
	key      string
	endpoint string
	dir      string
	client   *http.Client
	logger   logrus.FieldLogger
}

// AzureOption configures an AzureProvider
type AzureOption func(*AzureProvider)

// WithEndpoint overrides the regional endpoint
func WithEndpoint(url string) AzureOption {
	return func(a *AzureProvider) { a.endpoint = url }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) AzureOption {
	return func(a *AzureProvider) { a.logger = l }
}

// NewAzureProvider creates a provider writing files into dir
func NewAzureProvider(key, region, dir string, opts ...AzureOption) (*AzureProvider, error) {
	if key == "" {
		return nil, fmt.Errorf("azure speech key is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio dir: %w", err)
	}
	a := &AzureProvider{
		key:      key,
		endpoint: fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		dir:      dir,
		client:   &http.Client{Timeout: 20 * time.Second},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *AzureProvider) Synthesize(ctx context.Context, text, style string, rate float64) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty text")
	}
	if rate <= 0 {
		rate = DefaultRate
	}

	doc, err := SSML(text, style, rate)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "audio-16khz-128kbitrate-mono-mp3")
	req.Header.Set("User-Agent", "kiosk")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("speech service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	name := fmt.Sprintf("speech_%s.mp3", uuid.NewString())
	f, err := os.Create(filepath.Join(a.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	a.logger.WithField("file", name).Debug("speech synthesized")
	return name, nil
}

// SSML builds the request document for text. Invalid UTF-8 in text is
// replaced with U+FFFD.
func SSML(text, style string, rate float64) (string, error) {
	voice, ok := Voices[style]
	if !ok {
		voice = Voices["default"]
	}
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", fmt.Errorf("failed to escape speech text: %w", err)
	}

	return fmt.Sprintf(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="http://www.w3.org/2001/mstts" xml:lang="zh-TW">`+
		`<voice name="%s"><prosody rate="%.2f"><mstts:express-as style="cheerful" styledegree="1.2">%s</mstts:express-as></prosody></voice></speak>`,
		voice, rate, escaped.String()), nil
}
