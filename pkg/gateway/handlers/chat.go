package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridianfx/engage/pkg/gateway/apierror"
	"github.com/meridianfx/engage/pkg/gateway/llm"
	"github.com/meridianfx/engage/pkg/gateway/mw"
	"github.com/meridianfx/engage/pkg/gateway/sse"
	"github.com/meridianfx/engage/pkg/gateway/store"
)

// Chat streams an assistant reply over SSE. Each delta goes out as
//
//	data: {"content":"..."}
//
// and the stream terminates with
//
//	data: {"done":true,"fullContent":"..."}
//
// Clients treat a stream that ends without the done frame as a failure, so
// a provider error mid-stream simply closes the connection.
type Chat struct {
	Provider llm.Provider
	Store    store.ChatLogs
	Logger   *slog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h Chat) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Provider == nil {
		reqID, _ := mw.RequestIDFrom(r.Context())
		mw.WriteJSONError(w, http.StatusServiceUnavailable, &apierror.Error{
			Type:      apierror.ErrAPI,
			Message:   "chat model is not configured",
			RequestID: reqID,
		})
		return
	}

	var req struct {
		Messages []chatMessage `json:"messages"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, r, apierror.Invalid("messages must not be empty", "messages"))
		return
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" || strings.TrimSpace(last.Content) == "" {
		writeError(w, r, apierror.Invalid("last message must be a non-empty user message", "messages"))
		return
	}

	history := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}

	writer, err := sse.New(w)
	if err != nil {
		writeError(w, r, err)
		return
	}

	full, err := h.Provider.StreamChat(r.Context(), history, func(text string) {
		if sendErr := writer.Data(map[string]string{"content": text}); sendErr != nil {
			h.Logger.Debug("send chat delta", "error", sendErr)
		}
	})
	if err != nil {
		// Headers are already out; terminating without the done frame is the
		// failure signal.
		h.Logger.Warn("chat stream", "error", err)
		return
	}

	if err := writer.Data(map[string]any{"done": true, "fullContent": full}); err != nil {
		h.Logger.Debug("send chat done frame", "error", err)
		return
	}

	if h.Store != nil {
		log := &store.ChatLog{SessionKind: "chat"}
		for _, m := range history {
			log.Messages = append(log.Messages, store.ChatLogMessage{Role: m.Role, Content: m.Content})
		}
		log.Messages = append(log.Messages, store.ChatLogMessage{Role: "assistant", Content: full})
		if err := h.Store.CreateChatLog(r.Context(), log); err != nil {
			h.Logger.Warn("persist chat log", "error", err)
		}
	}
}
