package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianfx/engage/pkg/gateway/auth"
	"github.com/meridianfx/engage/pkg/gateway/ratelimit"
	"github.com/meridianfx/engage/pkg/gateway/store"
)

func loginHandler(burst int) (AdminLogin, *auth.Tokens) {
	tokens := auth.NewTokens(time.Hour)
	return AdminLogin{
		Password: "hunter2",
		Tokens:   tokens,
		Limiter:  ratelimit.New(ratelimit.Config{RPS: 0.001, Burst: burst}),
		Logger:   discardLogger(),
	}, tokens
}

func postLogin(h AdminLogin, ip, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/admin/login", strings.NewReader(body))
	r.RemoteAddr = ip + ":40000"
	h.ServeHTTP(rec, r)
	return rec
}

func TestAdminLogin_MintsTokenOnCorrectPassword(t *testing.T) {
	h, tokens := loginHandler(10)

	rec := postLogin(h, "203.0.113.1", `{"password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, tokens.Valid(resp.Token), "minted token must validate")
}

func TestAdminLogin_RejectsWrongPassword(t *testing.T) {
	h, _ := loginHandler(10)
	rec := postLogin(h, "203.0.113.1", `{"password":"guess"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminLogin_RateLimitsPerIP(t *testing.T) {
	h, _ := loginHandler(2)

	for i := 0; i < 2; i++ {
		rec := postLogin(h, "203.0.113.1", `{"password":"guess"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i)
	}
	rec := postLogin(h, "203.0.113.1", `{"password":"guess"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different caller is unaffected.
	rec = postLogin(h, "203.0.113.2", `{"password":"hunter2"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPromotionsCRUD(t *testing.T) {
	mem := store.NewMemory()
	h := Promotions{Store: mem, Logger: discardLogger()}

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/api/admin/promotions",
		strings.NewReader(`{"title":"Happy hour","body":"2-for-1","starts_at":"2026-09-01T17:00:00Z","ends_at":"2026-09-01T19:00:00Z"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created store.Promotion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = httptest.NewRecorder()
	r := httptest.NewRequest("PUT", "/api/admin/promotions/"+created.ID,
		strings.NewReader(`{"title":"Extended happy hour","starts_at":"2026-09-01T17:00:00Z","ends_at":"2026-09-01T20:00:00Z"}`))
	r.SetPathValue("id", created.ID)
	h.Update(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/admin/promotions", nil))
	var list []store.Promotion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Extended happy hour", list[0].Title)

	rec = httptest.NewRecorder()
	r = httptest.NewRequest("DELETE", "/api/admin/promotions/"+created.ID, nil)
	r.SetPathValue("id", created.ID)
	h.Delete(rec, r)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r = httptest.NewRequest("DELETE", "/api/admin/promotions/"+created.ID, nil)
	r.SetPathValue("id", created.ID)
	h.Delete(rec, r)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPromotionsCreate_RequiresTitle(t *testing.T) {
	h := Promotions{Store: store.NewMemory(), Logger: discardLogger()}
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/api/admin/promotions", strings.NewReader(`{"body":"no title"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsCRUD(t *testing.T) {
	mem := store.NewMemory()
	h := Events{Store: mem, Logger: discardLogger()}

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/api/admin/events",
		strings.NewReader(`{"title":"Live jazz","location":"Lobby","starts_at":"2026-09-05T20:00:00Z","ends_at":"2026-09-05T22:00:00Z"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created store.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = httptest.NewRecorder()
	r := httptest.NewRequest("PUT", "/api/admin/events/missing", strings.NewReader(`{"title":"x"}`))
	r.SetPathValue("id", "missing")
	h.Update(rec, r)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/admin/events", nil))
	var list []store.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Live jazz", list[0].Title)
}

func TestChatLogsListAndDelete(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.CreateChatLog(context.Background(), &store.ChatLog{
		SessionKind: "chat",
		Messages:    []store.ChatLogMessage{{Role: "user", Content: "hi"}},
	}))

	h := ChatLogs{Store: mem, Logger: discardLogger()}

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/admin/chatlogs", nil))
	var list []store.ChatLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = httptest.NewRecorder()
	r := httptest.NewRequest("DELETE", "/api/admin/chatlogs/"+list[0].ID, nil)
	r.SetPathValue("id", list[0].ID)
	h.Delete(rec, r)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLeadsCreate(t *testing.T) {
	mem := store.NewMemory()
	h := Leads{Store: mem, Logger: discardLogger()}

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/api/leads",
		strings.NewReader(`{"name":"Dana","email":"dana@example.com","message":"call me"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/api/leads", strings.NewReader(`{"name":"NoContact"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/api/leads", strings.NewReader(`{"phone":"555-0100"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	leads, err := mem.ListLeads(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Dana", leads[0].Name)
}
