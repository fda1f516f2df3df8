package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/meridianfx/engage/pkg/gateway/auth"
	"github.com/meridianfx/engage/pkg/gateway/config"
	"github.com/meridianfx/engage/pkg/gateway/handlers"
	"github.com/meridianfx/engage/pkg/gateway/llm"
	"github.com/meridianfx/engage/pkg/gateway/mw"
	"github.com/meridianfx/engage/pkg/gateway/ratelimit"
	"github.com/meridianfx/engage/pkg/gateway/store"
	"github.com/meridianfx/engage/pkg/gateway/upstream"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	upstream      *upstream.Client
	provider      llm.Provider
	store         store.Store
	storeKind     string
	adminTokens   *auth.Tokens
	loginLimiter  *ratelimit.Limiter
	publicLimiter *ratelimit.Limiter
}

// Options carries the injectable collaborators. Nil fields get production
// defaults derived from cfg; tests swap in fakes.
type Options struct {
	Upstream  *upstream.Client
	Provider  llm.Provider
	Store     store.Store
	StoreKind string
}

func New(cfg config.Config, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	up := opts.Upstream
	if up == nil {
		httpClient := &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: cfg.UpstreamConnectTimeout,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
			},
		}
		up = upstream.New(cfg.AvatarAPIBase, cfg.AvatarAPIKey,
			upstream.WithHTTPClient(httpClient),
			upstream.WithRequestTimeout(cfg.UpstreamRequestTimeout),
			upstream.WithPersona(cfg.AvatarID, cfg.VoiceID),
		)
	}

	st := opts.Store
	storeKind := opts.StoreKind
	if st == nil {
		st = store.NewMemory()
		storeKind = "memory"
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		mux:         http.NewServeMux(),
		upstream:    up,
		provider:    opts.Provider,
		store:       st,
		storeKind:   storeKind,
		adminTokens: auth.NewTokens(cfg.AdminTokenTTL),
		loginLimiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.LoginRPS,
			Burst: cfg.LoginBurst,
		}),
		publicLimiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.LimitRPS,
			Burst: cfg.LimitBurst,
		}),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("GET /healthz", handlers.HealthHandler{})
	s.mux.Handle("GET /readyz", handlers.ReadyHandler{
		StoreKind: s.storeKind,
		HasLLM:    s.provider != nil,
		HasAvatar: s.upstream != nil,
	})

	// Public mutation endpoints share a per-IP token bucket.
	limited := func(h http.Handler) http.Handler {
		return mw.RateLimit(s.publicLimiter, h)
	}

	live := handlers.LiveAvatar{Upstream: s.upstream, Store: s.store, Logger: s.logger}
	s.mux.Handle("POST /api/liveavatar/token", limited(http.HandlerFunc(live.Token)))
	s.mux.Handle("POST /api/liveavatar/start", limited(http.HandlerFunc(live.Start)))
	s.mux.Handle("POST /api/liveavatar/stop", limited(http.HandlerFunc(live.Stop)))
	s.mux.Handle("POST /api/liveavatar/sessions/{id}/end", limited(http.HandlerFunc(live.End)))

	s.mux.Handle("POST /api/maria/chat", limited(handlers.Chat{
		Provider: s.provider,
		Store:    s.store,
		Logger:   s.logger,
	}))

	leads := handlers.Leads{Store: s.store, Logger: s.logger}
	s.mux.Handle("POST /api/leads", limited(http.HandlerFunc(leads.Create)))

	promotions := handlers.Promotions{Store: s.store, Logger: s.logger}
	events := handlers.Events{Store: s.store, Logger: s.logger}
	chatLogs := handlers.ChatLogs{Store: s.store, Logger: s.logger}

	// Kiosk-facing reads are public; mutations live under the admin guard.
	s.mux.HandleFunc("GET /api/promotions", promotions.List)
	s.mux.HandleFunc("GET /api/events", events.List)

	s.mux.Handle("POST /api/admin/login", handlers.AdminLogin{
		Password: s.cfg.AdminPassword,
		Tokens:   s.adminTokens,
		Limiter:  s.loginLimiter,
		Logger:   s.logger,
	})

	admin := http.NewServeMux()
	admin.HandleFunc("GET /api/admin/promotions", promotions.List)
	admin.HandleFunc("POST /api/admin/promotions", promotions.Create)
	admin.HandleFunc("PUT /api/admin/promotions/{id}", promotions.Update)
	admin.HandleFunc("DELETE /api/admin/promotions/{id}", promotions.Delete)
	admin.HandleFunc("GET /api/admin/events", events.List)
	admin.HandleFunc("POST /api/admin/events", events.Create)
	admin.HandleFunc("PUT /api/admin/events/{id}", events.Update)
	admin.HandleFunc("DELETE /api/admin/events/{id}", events.Delete)
	admin.HandleFunc("GET /api/admin/chatlogs", chatLogs.List)
	admin.HandleFunc("DELETE /api/admin/chatlogs/{id}", chatLogs.Delete)
	admin.HandleFunc("GET /api/admin/leads", handlers.Leads{Store: s.store, Logger: s.logger}.List)
	s.mux.Handle("/api/admin/", mw.AdminAuth(s.adminTokens, admin))
}

// AdminTokens exposes the registry for tests that need a pre-minted token.
func (s *Server) AdminTokens() *auth.Tokens {
	return s.adminTokens
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
