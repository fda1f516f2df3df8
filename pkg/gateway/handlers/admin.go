package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/meridianfx/engage/pkg/gateway/apierror"
	"github.com/meridianfx/engage/pkg/gateway/auth"
	"github.com/meridianfx/engage/pkg/gateway/mw"
	"github.com/meridianfx/engage/pkg/gateway/ratelimit"
	"github.com/meridianfx/engage/pkg/gateway/store"
)

// AdminLogin exchanges the shared admin password for a session token. The
// per-IP limiter throttles guessing; failed attempts burn tokens the same as
// successful ones.
type AdminLogin struct {
	Password string
	Tokens   *auth.Tokens
	Limiter  *ratelimit.Limiter
	Logger   *slog.Logger
}

func (h AdminLogin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := mw.ClientIP(r)
	if ok, retryAfter := h.Limiter.Allow(ip, time.Now()); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, r, &apierror.Error{
			Type:    apierror.ErrRateLimit,
			Message: "too many login attempts",
		})
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if !auth.PasswordMatch(req.Password, h.Password) {
		h.Logger.Warn("admin login rejected", "ip", ip)
		writeError(w, r, &apierror.Error{
			Type:    apierror.ErrAuthentication,
			Message: "invalid password",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": h.Tokens.Mint()})
}

// Promotions is the admin CRUD surface for kiosk promotions.
type Promotions struct {
	Store  store.Promotions
	Logger *slog.Logger
}

func (h Promotions) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListPromotions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []store.Promotion{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h Promotions) Create(w http.ResponseWriter, r *http.Request) {
	var p store.Promotion
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(p.Title) == "" {
		writeError(w, r, apierror.Invalid("title is required", "title"))
		return
	}
	p.ID = ""
	if err := h.Store.CreatePromotion(r.Context(), &p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h Promotions) Update(w http.ResponseWriter, r *http.Request) {
	var p store.Promotion
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	p.ID = r.PathValue("id")
	if strings.TrimSpace(p.Title) == "" {
		writeError(w, r, apierror.Invalid("title is required", "title"))
		return
	}
	if err := h.Store.UpdatePromotion(r.Context(), &p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h Promotions) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeletePromotion(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events is the admin CRUD surface for venue events.
type Events struct {
	Store  store.Events
	Logger *slog.Logger
}

func (h Events) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListEvents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []store.Event{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h Events) Create(w http.ResponseWriter, r *http.Request) {
	var e store.Event
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(e.Title) == "" {
		writeError(w, r, apierror.Invalid("title is required", "title"))
		return
	}
	e.ID = ""
	if err := h.Store.CreateEvent(r.Context(), &e); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h Events) Update(w http.ResponseWriter, r *http.Request) {
	var e store.Event
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, r, err)
		return
	}
	e.ID = r.PathValue("id")
	if strings.TrimSpace(e.Title) == "" {
		writeError(w, r, apierror.Invalid("title is required", "title"))
		return
	}
	if err := h.Store.UpdateEvent(r.Context(), &e); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h Events) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteEvent(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChatLogs exposes captured conversations to admins.
type ChatLogs struct {
	Store  store.ChatLogs
	Logger *slog.Logger
}

func (h ChatLogs) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	list, err := h.Store.ListChatLogs(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []store.ChatLog{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h ChatLogs) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteChatLog(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
