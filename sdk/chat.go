package engage

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/meridianfx/engage/pkg/core/transcript"
)

// fallbackText is the fixed assistant reply appended when a chat exchange
// fails. Keyed by locale; the user is never shown raw network error text.
var fallbackText = map[string]string{
	"en": "Something went wrong, please try again.",
	"zh": "發生錯誤，請再試一次。",
}

// wireMessage is the role+content pair sent to the completion endpoint.
// Client-side metadata (IDs, timestamps) never goes over the wire.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatController manages one conversational text exchange at a time against
// the gateway's token-streaming completion endpoint, assembling assistant
// replies from the incremental stream and keeping a durable local history.
//
// A single request may be in flight per controller; overlapping sends are
// rejected with ErrBusy. The in-progress reply accumulates in a streaming
// buffer that is only promoted into the finalized history once the stream's
// done marker arrives.
type ChatController struct {
	client *Client
	store  HistoryStore

	mu       sync.Mutex
	history  []transcript.ChatMessage
	buffer   strings.Builder
	inFlight bool

	// OnDelta receives the full streaming buffer after each fragment.
	// OnError receives absorbed stream failures. Both optional; set before
	// the first Send.
	OnDelta func(partial string)
	OnError func(err error)
}

// NewChatController creates a controller and rehydrates history from the
// store. An unreadable or unparseable stored history starts empty rather
// than failing construction.
func NewChatController(client *Client, store HistoryStore) *ChatController {
	if store == nil {
		store = NewMemoryHistoryStore()
	}
	c := &ChatController{client: client, store: store}
	if messages, err := store.Load(); err != nil {
		client.logger.Warn("chat history rehydrate failed, starting empty", "error", err)
	} else {
		c.history = messages
	}
	return c
}

// History returns a copy of the finalized message sequence.
func (c *ChatController) History() []transcript.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]transcript.ChatMessage, len(c.history))
	copy(out, c.history)
	return out
}

// StreamingBuffer returns the in-progress assistant text, empty when no
// stream is active.
func (c *ChatController) StreamingBuffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.String()
}

// Streaming reports whether a request is currently in flight.
func (c *ChatController) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// ClearHistory empties the finalized history in memory and in the store.
// Rejected with ErrBusy while a stream is in flight so the in-flight
// completion cannot resurrect a cleared conversation.
func (c *ChatController) ClearHistory() error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.history = nil
	c.mu.Unlock()
	return c.store.Clear()
}

// Send submits one user message and blocks until the assistant's reply
// stream completes (or fails into the fallback message). The user message is
// appended to the finalized history optimistically, before any server
// acknowledgment.
func (c *ChatController) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inFlight = true
	c.history = append(c.history, transcript.NewChatMessage(transcript.RoleUser, text))
	wire := c.wireHistoryLocked()
	c.mu.Unlock()

	c.persist()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	if err := c.stream(ctx, wire); err != nil {
		c.absorb(err)
	}
	return nil
}

// wireHistoryLocked projects the finalized history to role+content pairs.
func (c *ChatController) wireHistoryLocked() []wireMessage {
	wire := make([]wireMessage, 0, len(c.history))
	for _, m := range c.history {
		wire = append(wire, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	return wire
}

// stream opens the completion request and consumes frames until the done
// marker. Any transport or HTTP failure is returned for fallback handling;
// individual malformed frames are skipped by the reader.
func (c *ChatController) stream(ctx context.Context, wire []wireMessage) error {
	body, err := json.Marshal(struct {
		Messages []wireMessage `json:"messages"`
	}{Messages: wire})
	if err != nil {
		return &StreamError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.client.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return &StreamError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.httpClient.Do(req)
	if err != nil {
		return &StreamError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return &StreamError{Err: &httpStatusError{status: resp.StatusCode}}
	}

	reader := newChatStreamReader(resp.Body)
	defer reader.Close()

	for {
		frame, err := reader.Next()
		if err != nil {
			// EOF without a done marker still counts as a mid-exchange
			// failure: the reply never completed.
			return &StreamError{Err: err}
		}

		if frame.Done {
			c.finalize(frame.FullContent)
			return nil
		}
		if frame.Content == "" {
			continue
		}

		c.mu.Lock()
		c.buffer.WriteString(frame.Content)
		partial := c.buffer.String()
		onDelta := c.OnDelta
		c.mu.Unlock()
		if onDelta != nil {
			onDelta(partial)
		}
	}
}

// finalize promotes the assembled reply into the finalized history and
// clears the streaming buffer. The done frame's fullContent wins when
// present; otherwise the accumulated buffer is used.
func (c *ChatController) finalize(fullContent string) {
	c.mu.Lock()
	content := fullContent
	if content == "" {
		content = c.buffer.String()
	}
	c.buffer.Reset()
	c.history = append(c.history, transcript.NewChatMessage(transcript.RoleAssistant, content))
	c.mu.Unlock()

	c.persist()
}

// absorb converts a mid-exchange failure into the fixed fallback assistant
// message. No automatic retry.
func (c *ChatController) absorb(err error) {
	c.client.logger.Error("chat stream failed", "error", err)

	c.mu.Lock()
	c.buffer.Reset()
	c.history = append(c.history, transcript.NewChatMessage(transcript.RoleAssistant, c.fallback()))
	onError := c.OnError
	c.mu.Unlock()

	c.persist()
	if onError != nil {
		onError(err)
	}
}

func (c *ChatController) fallback() string {
	if text, ok := fallbackText[c.client.locale]; ok {
		return text
	}
	return fallbackText["en"]
}

// persist writes the finalized history to the store after every mutation.
// Persistence failures are logged, never surfaced; the in-memory history
// stays authoritative for the session.
func (c *ChatController) persist() {
	c.mu.Lock()
	snapshot := make([]transcript.ChatMessage, len(c.history))
	copy(snapshot, c.history)
	c.mu.Unlock()

	if err := c.store.Save(snapshot); err != nil {
		c.client.logger.Error("persist chat history", "error", err)
	}
}

// httpStatusError reports a non-200 response to the chat endpoint without
// leaking body text.
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return "unexpected status " + http.StatusText(e.status)
}
