package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridianfx/engage/pkg/gateway/apierror"
	"github.com/meridianfx/engage/pkg/gateway/store"
	"github.com/meridianfx/engage/pkg/gateway/upstream"
)

// LiveAvatar proxies session control calls to the avatar provider. The
// provider API key stays on this side; clients receive only the short-lived
// session credential pair.
type LiveAvatar struct {
	Upstream *upstream.Client
	Store    store.ChatLogs
	Logger   *slog.Logger
}

func (h LiveAvatar) Token(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Language) == "" {
		req.Language = "en"
	}

	cred, err := h.Upstream.NewSessionToken(r.Context(), req.Language)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (h LiveAvatar) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string `json:"session_token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SessionToken == "" {
		writeError(w, r, apierror.Invalid("session_token is required", "session_token"))
		return
	}

	info, err := h.Upstream.StartSession(r.Context(), req.SessionToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]upstream.ConnectionInfo{"data": info})
}

func (h LiveAvatar) Stop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID    string `json:"session_id"`
		SessionToken string `json:"session_token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		writeError(w, r, apierror.Invalid("session_id is required", "session_id"))
		return
	}

	if err := h.Upstream.StopSession(r.Context(), req.SessionID, req.SessionToken); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// End finalizes a session, captures the provider transcript as a chat log
// and acknowledges. Transcript persistence is best-effort: a store failure
// is logged, not surfaced, so teardown on the client never blocks.
func (h LiveAvatar) End(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, r, apierror.Invalid("session id is required", "id"))
		return
	}
	var req struct {
		SessionToken string `json:"session_token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.Upstream.EndSession(r.Context(), sessionID, req.SessionToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.Store != nil && len(entries) > 0 {
		log := &store.ChatLog{SessionKind: "avatar"}
		for _, e := range entries {
			role := "assistant"
			if e.Sender == "user" {
				role = "user"
			}
			log.Messages = append(log.Messages, store.ChatLogMessage{Role: role, Content: e.Text})
		}
		if err := h.Store.CreateChatLog(r.Context(), log); err != nil {
			h.Logger.Warn("persist avatar transcript", "session_id", sessionID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
