package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Upstream live avatar provider.
	AvatarAPIBase string
	AvatarAPIKey  string
	AvatarID      string
	VoiceID       string

	// Chat completion backend.
	GeminiAPIKey string
	GeminiModel  string
	SystemPrompt string

	// Admin surface.
	AdminPassword string
	AdminTokenTTL time.Duration

	// Empty means the gateway runs on the in-memory store.
	DatabaseURL string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Per-IP limits on the admin login endpoint.
	LoginRPS   float64
	LoginBurst int

	// Per-IP limits on public endpoints (token issuance, chat, leads).
	LimitRPS   float64
	LimitBurst int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
	UpstreamRequestTimeout        time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("ENGAGE_ADDR", ":8080"),
		AvatarAPIBase:                 envOr("ENGAGE_AVATAR_API_BASE", "https://api.liveavatar.com/v1"),
		AvatarAPIKey:                  strings.TrimSpace(os.Getenv("ENGAGE_AVATAR_API_KEY")),
		AvatarID:                      strings.TrimSpace(os.Getenv("ENGAGE_AVATAR_ID")),
		VoiceID:                       strings.TrimSpace(os.Getenv("ENGAGE_VOICE_ID")),
		GeminiAPIKey:                  strings.TrimSpace(os.Getenv("ENGAGE_GEMINI_API_KEY")),
		GeminiModel:                   envOr("ENGAGE_GEMINI_MODEL", "gemini-2.0-flash"),
		SystemPrompt:                  strings.TrimSpace(os.Getenv("ENGAGE_SYSTEM_PROMPT")),
		AdminPassword:                 strings.TrimSpace(os.Getenv("ENGAGE_ADMIN_PASSWORD")),
		AdminTokenTTL:                 envDurationOr("ENGAGE_ADMIN_TOKEN_TTL", 12*time.Hour),
		DatabaseURL:                   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CORSAllowedOrigins:            make(map[string]struct{}),
		LoginRPS:                      envFloat64Or("ENGAGE_LOGIN_RATE_LIMIT_RPS", 0.2),
		LoginBurst:                    envIntOr("ENGAGE_LOGIN_RATE_LIMIT_BURST", 5),
		LimitRPS:                      envFloat64Or("ENGAGE_RATE_LIMIT_RPS", 5.0),
		LimitBurst:                    envIntOr("ENGAGE_RATE_LIMIT_BURST", 10),
		ReadHeaderTimeout:             envDurationOr("ENGAGE_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                   envDurationOr("ENGAGE_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:           envDurationOr("ENGAGE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamConnectTimeout:        envDurationOr("ENGAGE_CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("ENGAGE_RESPONSE_HEADER_TIMEOUT", 30*time.Second),
		UpstreamRequestTimeout:        envDurationOr("ENGAGE_UPSTREAM_REQUEST_TIMEOUT", 15*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("ENGAGE_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if strings.TrimSpace(cfg.AvatarAPIBase) == "" {
		return Config{}, fmt.Errorf("ENGAGE_AVATAR_API_BASE must not be empty")
	}
	if cfg.AvatarAPIKey == "" {
		return Config{}, fmt.Errorf("ENGAGE_AVATAR_API_KEY must be set")
	}
	if cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("ENGAGE_GEMINI_API_KEY must be set")
	}
	if strings.TrimSpace(cfg.GeminiModel) == "" {
		return Config{}, fmt.Errorf("ENGAGE_GEMINI_MODEL must not be empty")
	}
	if cfg.AdminPassword == "" {
		return Config{}, fmt.Errorf("ENGAGE_ADMIN_PASSWORD must be set")
	}
	if cfg.AdminTokenTTL <= 0 {
		return Config{}, fmt.Errorf("ENGAGE_ADMIN_TOKEN_TTL must be > 0")
	}
	if cfg.LoginRPS <= 0 {
		return Config{}, fmt.Errorf("ENGAGE_LOGIN_RATE_LIMIT_RPS must be > 0")
	}
	if cfg.LoginBurst <= 0 {
		return Config{}, fmt.Errorf("ENGAGE_LOGIN_RATE_LIMIT_BURST must be > 0")
	}
	if cfg.LimitRPS < 0 {
		return Config{}, fmt.Errorf("ENGAGE_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.LimitBurst < 0 {
		return Config{}, fmt.Errorf("ENGAGE_RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("ENGAGE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("ENGAGE_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("ENGAGE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("ENGAGE_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("ENGAGE_RESPONSE_HEADER_TIMEOUT must be > 0")
	}
	if cfg.UpstreamRequestTimeout <= 0 {
		return Config{}, fmt.Errorf("ENGAGE_UPSTREAM_REQUEST_TIMEOUT must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
