package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianfx/engage/pkg/gateway/config"
	"github.com/meridianfx/engage/pkg/gateway/llm"
	"github.com/meridianfx/engage/pkg/gateway/store"
	"github.com/meridianfx/engage/pkg/gateway/upstream"
)

func testConfig() config.Config {
	return config.Config{
		AdminPassword: "hunter2",
		AdminTokenTTL: time.Hour,
		LoginRPS:      1,
		LoginBurst:    10,
	}
}

func testServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Store == nil {
		opts.Store = store.NewMemory()
		opts.StoreKind = "memory"
	}
	if opts.Upstream == nil {
		opts.Upstream = upstream.New("http://127.0.0.1:0", "unused")
	}
	s := New(testConfig(), logger, opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthAndReadyRoutes(t *testing.T) {
	_, ts := testServer(t, Options{Provider: &llm.Scripted{Chunks: []string{"ok"}}})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestPublicReadsNeedNoAuth(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.CreatePromotion(t.Context(), &store.Promotion{Title: "Brunch deal"}))
	_, ts := testServer(t, Options{Store: mem, StoreKind: "memory"})

	resp, err := http.Get(ts.URL + "/api/promotions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []store.Promotion
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "Brunch deal", list[0].Title)
}

func TestAdminRoutesRequireBearerToken(t *testing.T) {
	s, ts := testServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/admin/promotions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest("GET", ts.URL+"/api/admin/promotions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.AdminTokens().Mint())
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginRouteBypassesAdminGuard(t *testing.T) {
	_, ts := testServer(t, Options{})

	resp, err := http.Post(ts.URL+"/api/admin/login", "application/json",
		strings.NewReader(`{"password":"hunter2"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, strings.HasPrefix(body.Token, "adm_"))
}

func TestChatStreamsThroughMiddlewareChain(t *testing.T) {
	_, ts := testServer(t, Options{Provider: &llm.Scripted{Chunks: []string{"Hel", "lo"}}})

	resp, err := http.Post(ts.URL+"/api/maria/chat", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `data: {"content":"Hel"}`)
	assert.Contains(t, body, `data: {"done":true,"fullContent":"Hello"}`)
}

func TestPublicEndpointsAreRateLimited(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	cfg.LimitRPS = 0.001
	cfg.LimitBurst = 2

	s := New(cfg, logger, Options{
		Store:    store.NewMemory(),
		Upstream: upstream.New("http://127.0.0.1:0", "unused"),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	post := func() *http.Response {
		resp, err := http.Post(ts.URL+"/api/leads", "application/json",
			strings.NewReader(`{"name":"Dana","email":"dana@example.com"}`))
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, post().StatusCode, "request %d", i)
	}
	resp := post()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Read-only kiosk endpoints stay outside the bucket.
	read, err := http.Get(ts.URL + "/api/promotions")
	require.NoError(t, err)
	read.Body.Close()
	assert.Equal(t, http.StatusOK, read.StatusCode)
}

func TestUnknownRouteIs404(t *testing.T) {
	_, ts := testServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
