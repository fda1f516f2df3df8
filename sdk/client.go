// Package engage is the client SDK for the engage conversational surface:
// a streaming text chat against the gateway's completion endpoint, and a
// live avatar call over a realtime room transport with half-duplex
// turn-taking between the user and the avatar.
package engage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	tokenPath = "/api/liveavatar/token"
	startPath = "/api/liveavatar/start"
	stopPath  = "/api/liveavatar/stop"
	chatPath  = "/api/maria/chat"
)

func endPath(sessionID string) string {
	return "/api/liveavatar/sessions/" + sessionID + "/end"
}

// Client talks to the engage gateway. It is safe for concurrent use and is
// shared by the chat and avatar controllers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	locale     string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLocale selects the locale for user-facing fallback text.
func WithLocale(locale string) ClientOption {
	return func(c *Client) {
		if locale != "" {
			c.locale = locale
		}
	}
}

// NewClient creates a gateway client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newDefaultHTTPClient(),
		logger:     slog.Default(),
		locale:     "en",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// postJSON performs a JSON POST with the control-call deadline and decodes a
// 2xx response into out (when out is non-nil). Non-2xx statuses are returned
// as errors carrying the status code only; body text never reaches callers.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}
