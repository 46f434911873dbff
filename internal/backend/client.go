// Package backend is the kiosk's HTTP client for the order desk.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kiosk/internal/logging"
	"kiosk/internal/models"
)

// IdempotencyHeader carries the key that lets the order desk recognise a repeated confirm
const IdempotencyHeader = "Idempotency-Key"

// ErrConfirmPending means the desk was still storing an earlier submission of
// the same key when the client stopped waiting. Confirming again with the key
// replays the stored order instead of creating a second one.
var ErrConfirmPending = errors.New("order desk is still processing the confirmation")

// Client handles requests to the order desk API
type Client struct {
	httpClient      *http.Client
	BaseURL         string
	logger          logrus.FieldLogger
	confirmAttempts int
	retryPause      time.Duration
	pendingWait     time.Duration
	newKey          func() string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// WithConfirmAttempts sets how often a confirm is sent when the transport fails.
// Every attempt carries the same idempotency key.
func WithConfirmAttempts(n int, pause time.Duration) Option {
	return func(c *Client) {
		if n > 0 {
			c.confirmAttempts = n
		}
		c.retryPause = pause
	}
}

// WithPendingWait sets how long a confirm keeps asking while the desk reports
// the same key as still in progress
func WithPendingWait(d time.Duration) Option {
	return func(c *Client) { c.pendingWait = d }
}

// NewClient creates a new API client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		BaseURL:         strings.TrimRight(baseURL, "/"),
		logger:          logging.Discard(),
		confirmAttempts: 2,
		retryPause:      500 * time.Millisecond,
		pendingWait:     30 * time.Second,
		newKey:          func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-2xx reply that did not carry the desk's error body
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// CheckHealth checks if the order desk is up and running
func (c *Client) CheckHealth(ctx context.Context) error {
	var out map[string]interface{}
	return c.do(ctx, http.MethodGet, "/health", nil, &out, nil)
}

// AnalyzeOrder asks the desk to turn free text into order lines
func (c *Client) AnalyzeOrder(ctx context.Context, text string) (models.AnalyzeResponse, error) {
	var out models.AnalyzeResponse
	err := c.do(ctx, http.MethodPost, "/analyze_text", models.AnalyzeRequest{Text: text}, &out, nil)
	if err != nil && !isDeskError(err) {
		return models.AnalyzeResponse{}, fmt.Errorf("analyze order: %w", err)
	}
	return out, nil
}

// AnalyzeChat sends small talk to the desk's chat endpoint
func (c *Client) AnalyzeChat(ctx context.Context, text string) (models.ChatResponse, error) {
	var out models.ChatResponse
	err := c.do(ctx, http.MethodPost, "/analyze_chat", models.AnalyzeRequest{Text: text}, &out, nil)
	if err != nil && !isDeskError(err) {
		return models.ChatResponse{}, fmt.Errorf("analyze chat: %w", err)
	}
	return out, nil
}

// ConfirmOrder submits the lines under key, or under a fresh key when key is
// empty. Transport failures are retried with the same key, and while the desk
// answers that the key is still in progress the client waits and asks again
// until the stored response is replayed, so the desk creates the order at most once.
func (c *Client) ConfirmOrder(ctx context.Context, key string, lines []models.OrderLine) (models.ConfirmResponse, error) {
	if key == "" {
		key = c.newKey()
	}
	header := http.Header{}
	header.Set(IdempotencyHeader, key)
	logger := c.logger.WithField("idempotency_key", key)

	deadline := time.Now().Add(c.pendingWait)
	attempt := 1
	for {
		var out models.ConfirmResponse
		err := c.do(ctx, http.MethodPost, "/confirm_order", models.ConfirmRequest{OrderDetails: lines}, &out, header)
		switch {
		case inProgress(err):
			if time.Now().After(deadline) {
				return models.ConfirmResponse{}, fmt.Errorf("confirm order: %w", ErrConfirmPending)
			}
			logger.Debug("confirm still in progress at the desk, waiting")
		case err == nil || isDeskError(err):
			return out, nil
		default:
			if !retryable(err) || attempt >= c.confirmAttempts {
				return models.ConfirmResponse{}, fmt.Errorf("confirm order: %w", err)
			}
			logger.WithError(err).WithField("attempt", attempt).Warn("confirm failed, retrying")
			attempt++
		}

		select {
		case <-ctx.Done():
			return models.ConfirmResponse{}, fmt.Errorf("confirm order: %w", ctx.Err())
		case <-time.After(c.retryPause):
		}
	}
}

// SynthesizeSpeech asks the desk for an audio file of text in a voice style
func (c *Client) SynthesizeSpeech(ctx context.Context, text, style string) (models.SpeechResponse, error) {
	var out models.SpeechResponse
	err := c.do(ctx, http.MethodPost, "/api/get_speech", models.SpeechRequest{Text: text, Style: style}, &out, nil)
	if err == nil {
		return out, nil
	}
	// failures come back as {"success":false,"error":...}
	var se *StatusError
	if errors.As(err, &se) && json.Unmarshal([]byte(se.Body), &out) == nil && out.Error != "" {
		return out, nil
	}
	return models.SpeechResponse{}, fmt.Errorf("synthesize speech: %w", err)
}

// Menu retrieves the drink list
func (c *Client) Menu(ctx context.Context) ([]models.MenuItem, error) {
	var out struct {
		Items []models.MenuItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/menu", nil, &out, nil); err != nil {
		return nil, fmt.Errorf("get menu: %w", err)
	}
	return out.Items, nil
}

// Login exchanges admin credentials for a token
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/admin/login", models.LoginRequest{Username: username, Password: password}, &out, nil)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return out.Token, nil
}

// Orders lists stored cups, optionally filtered by status
func (c *Client) Orders(ctx context.Context, token, status string) ([]models.OrderView, error) {
	path := "/admin/api/orders"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out struct {
		Orders []models.OrderView `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out, bearer(token)); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out.Orders, nil
}

// UpdateStatus moves an order to a new status
func (c *Client) UpdateStatus(ctx context.Context, token, orderNumber string, status models.OrderStatus) error {
	path := "/admin/api/orders/" + url.PathEscape(orderNumber) + "/status"
	var out map[string]interface{}
	if err := c.do(ctx, http.MethodPut, path, models.StatusChangeRequest{Status: string(status)}, &out, bearer(token)); err != nil {
		return fmt.Errorf("update status of %s: %w", orderNumber, err)
	}
	return nil
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// deskError is a non-2xx reply whose body followed the {"status":"error"} shape
// and has been decoded into the caller's value.
type deskError struct {
	code int
}

func (e *deskError) Error() string { return fmt.Sprintf("order desk replied %d", e.code) }

func isDeskError(err error) bool {
	var de *deskError
	return errors.As(err, &de)
}

// inProgress reports a 409 reply: the desk holds the key but has not stored a response yet
func inProgress(err error) bool {
	var de *deskError
	if errors.As(err, &de) {
		return de.code == http.StatusConflict
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusConflict
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return !errors.Is(err, context.Canceled)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, header http.Header) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
		return nil
	}

	var shape struct {
		Status string `json:"status"`
	}
	if json.Unmarshal(data, &shape) == nil && shape.Status == models.StatusError && out != nil {
		if err := json.Unmarshal(data, out); err == nil {
			return &deskError{code: resp.StatusCode}
		}
	}
	return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}
