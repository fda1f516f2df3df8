// Package ratelimit is a single-process token bucket keyed by caller
// identity (typically the remote IP). Entries are evicted after a TTL so the
// map stays bounded without a background goroutine.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

type Config struct {
	RPS   float64
	Burst int

	// Operational bounds for the in-memory map.
	MaxEntries int
	EntryTTL   time.Duration
}

type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*bucket
}

type bucket struct {
	tokens   float64
	last     time.Time
	lastSeen time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{
		cfg: cfg,
		m:   make(map[string]*bucket),
	}
}

// Allow reports whether one request for key may proceed at now. When denied,
// retryAfter is the whole-second wait before the bucket refills enough for
// one request.
func (l *Limiter) Allow(key string, now time.Time) (allowed bool, retryAfter int) {
	if key == "" {
		key = "anonymous"
	}
	if l.cfg.RPS <= 0 || l.cfg.Burst <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		if len(l.m) >= l.cfg.MaxEntries {
			l.gcLocked(now)
			// Bounded memory beats perfect fairness: drop one arbitrary
			// entry when the map is still full after GC.
			if len(l.m) >= l.cfg.MaxEntries {
				for k := range l.m {
					delete(l.m, k)
					break
				}
			}
		}
		b = &bucket{tokens: float64(l.cfg.Burst), last: now}
		l.m[key] = b
	}
	b.lastSeen = now

	capacity := float64(l.cfg.Burst)
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(capacity, b.tokens+elapsed*l.cfg.RPS)
		b.last = now
	}

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true, 0
	}

	needed := 1.0 - b.tokens
	wait := int(math.Ceil(needed / l.cfg.RPS))
	if wait < 1 {
		wait = 1
	}
	return false, wait
}

func (l *Limiter) gcLocked(now time.Time) {
	for k, v := range l.m {
		if now.Sub(v.lastSeen) > l.cfg.EntryTTL {
			delete(l.m, k)
		}
	}
}
