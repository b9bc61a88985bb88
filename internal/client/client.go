// Package client is a Go client for the lexembed HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperjump/lexembed/internal/server"
	"go.uber.org/zap"
)

// DefaultBaseURL is where a locally started server listens.
const DefaultBaseURL = "http://localhost:8080"

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Detail)
}

// IsUnavailable reports whether err is the server saying its model is not loaded.
func IsUnavailable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusServiceUnavailable
}

// Client talks to one embedding server. Requests carry no timeout by default, since a
// large batch on a CPU-only server can take minutes; use the context to bound them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	initialInterval time.Duration
	maxInterval     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for readiness polling.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithPollInterval sets the initial and maximum delay between WaitReady probes.
func WithPollInterval(initial, maxInterval time.Duration) Option {
	return func(c *Client) {
		c.initialInterval = initial
		c.maxInterval = maxInterval
	}
}

// New creates a client for the server at baseURL. An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{},
		logger:          zap.NewNop(),
		initialInterval: 500 * time.Millisecond,
		maxInterval:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health returns the server health report. A server still loading its model yields a
// *StatusError with status 503.
func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	var out server.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Info returns the service description served on the root path.
func (c *Client) Info(ctx context.Context) (*server.InfoResponse, error) {
	var out server.InfoResponse
	if err := c.do(ctx, http.MethodGet, "/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Embed returns one CLS-pooled vector per text, in order.
func (c *Client) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	return c.embed(ctx, "/embed", texts)
}

// EmbedLegacy returns one mean-pooled vector per text, in order.
//
// Deprecated: vectors from this endpoint live in a different space than Embed's.
func (c *Client) EmbedLegacy(ctx context.Context, texts ...string) ([][]float32, error) {
	return c.embed(ctx, "/embed/legacy", texts)
}

// EmbedText embeds a single text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) embed(ctx context.Context, path string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided")
	}
	var out [][]float32
	if err := c.do(ctx, http.MethodPost, path, server.EmbedRequest{Inputs: texts}, &out); err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("server returned %d vectors for %d texts", len(out), len(texts))
	}
	return out, nil
}

// WaitReady polls /health with exponential backoff until the server reports healthy or
// ctx is done. A 503 means the model is still loading; any other failure is retried too,
// so the server may still be starting up.
func (c *Client) WaitReady(ctx context.Context) (*server.HealthResponse, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	b.MaxElapsedTime = 0

	var health *server.HealthResponse
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		h, err := c.Health(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Debug("embedding server not ready",
				zap.String("url", c.baseURL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		health = h
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", c.baseURL, err)
	}
	return health, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var detail server.ErrorResponse
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); len(data) > 0 {
			if json.Unmarshal(data, &detail) == nil {
				se.Detail = detail.Detail
			} else {
				se.Detail = strings.TrimSpace(string(data))
			}
		}
		return se
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
