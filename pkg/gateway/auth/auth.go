// Package auth holds the admin session token registry. Tokens are minted by
// the login endpoint and expire after a TTL; the registry is in-memory, so a
// restart signs every admin out.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"
)

type Tokens struct {
	ttl time.Duration
	now func() time.Time

	mu sync.Mutex
	m  map[string]time.Time // token -> expiry
}

func NewTokens(ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{
		ttl: ttl,
		now: time.Now,
		m:   make(map[string]time.Time),
	}
}

// Mint issues a fresh admin token.
func (t *Tokens) Mint() string {
	token := "adm_" + randHex(24)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gcLocked()
	t.m[token] = t.now().Add(t.ttl)
	return token
}

// Valid reports whether token is a live admin session.
func (t *Tokens) Valid(token string) bool {
	if token == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	expiry, ok := t.m[token]
	if !ok {
		return false
	}
	if t.now().After(expiry) {
		delete(t.m, token)
		return false
	}
	return true
}

// Revoke invalidates a token. A no-op for unknown tokens.
func (t *Tokens) Revoke(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, token)
}

func (t *Tokens) gcLocked() {
	now := t.now()
	for token, expiry := range t.m {
		if now.After(expiry) {
			delete(t.m, token)
		}
	}
}

// PasswordMatch compares a submitted password in constant time.
func PasswordMatch(submitted, configured string) bool {
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(configured)) == 1
}

func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

func randHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand should not fail in practice; fall back to time-based entropy.
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000000000")))
	}
	return hex.EncodeToString(b)
}
