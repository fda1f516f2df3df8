// Package upstream is the HTTP client for the live avatar provider. The
// gateway holds the provider API key; browser and SDK callers only ever see
// the short-lived session credentials minted here.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("avatar provider status %d", e.StatusCode)
}

type Client struct {
	baseURL    string
	apiKey     string
	avatarID   string
	voiceID    string
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPersona selects the avatar and voice used for new sessions.
func WithPersona(avatarID, voiceID string) Option {
	return func(c *Client) {
		c.avatarID = avatarID
		c.voiceID = voiceID
	}
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		timeout:    15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type SessionCredential struct {
	SessionID    string `json:"session_id"`
	SessionToken string `json:"session_token"`
}

type ConnectionInfo struct {
	LivekitURL         string `json:"livekit_url"`
	LivekitClientToken string `json:"livekit_client_token"`
}

type TranscriptEntry struct {
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	OffsetMs int64  `json:"offset_ms"`
}

// NewSessionToken mints a per-session credential pair for the configured
// persona.
func (c *Client) NewSessionToken(ctx context.Context, language string) (SessionCredential, error) {
	body := map[string]string{"language": language}
	if c.avatarID != "" {
		body["avatar_id"] = c.avatarID
	}
	if c.voiceID != "" {
		body["voice_id"] = c.voiceID
	}

	var out struct {
		Data SessionCredential `json:"data"`
	}
	if err := c.post(ctx, "/sessions/token", c.apiKey, body, &out); err != nil {
		return SessionCredential{}, err
	}
	if out.Data.SessionID == "" || out.Data.SessionToken == "" {
		return SessionCredential{}, fmt.Errorf("token response missing session credential fields")
	}
	return out.Data, nil
}

// StartSession activates a minted session and returns the realtime room
// connection parameters.
func (c *Client) StartSession(ctx context.Context, sessionToken string) (ConnectionInfo, error) {
	var out struct {
		Data ConnectionInfo `json:"data"`
	}
	if err := c.post(ctx, "/sessions/start", sessionToken, map[string]string{}, &out); err != nil {
		return ConnectionInfo{}, err
	}
	if out.Data.LivekitURL == "" || out.Data.LivekitClientToken == "" {
		return ConnectionInfo{}, fmt.Errorf("start response missing connection parameters")
	}
	return out.Data, nil
}

// StopSession invalidates an activated session. Callers treat failures as
// best-effort; the provider reaps abandoned sessions on its own timeout.
func (c *Client) StopSession(ctx context.Context, sessionID, sessionToken string) error {
	return c.post(ctx, "/sessions/stop", sessionToken, map[string]string{"session_id": sessionID}, nil)
}

// EndSession finalizes a session and returns the provider-side transcript.
func (c *Client) EndSession(ctx context.Context, sessionID, sessionToken string) ([]TranscriptEntry, error) {
	var out struct {
		Data struct {
			Transcript []TranscriptEntry `json:"transcript"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/sessions/%s/end", sessionID)
	if err := c.post(ctx, path, sessionToken, map[string]string{}, &out); err != nil {
		return nil, err
	}
	return out.Data.Transcript, nil
}

func (c *Client) post(ctx context.Context, path, bearer string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused; the body is never surfaced.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return &StatusError{StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
