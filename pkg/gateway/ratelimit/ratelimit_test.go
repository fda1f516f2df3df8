package ratelimit

import (
	"testing"
	"time"
)

func TestAllowBurstThenDeny(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 3})
	now := time.Now()

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("1.2.3.4", now); !ok {
			t.Fatalf("request %d denied inside burst", i)
		}
	}
	ok, retryAfter := l.Allow("1.2.3.4", now)
	if ok {
		t.Fatal("request allowed beyond burst")
	}
	if retryAfter < 1 {
		t.Fatalf("retryAfter = %d, want >= 1", retryAfter)
	}
}

func TestRefillOverTime(t *testing.T) {
	l := New(Config{RPS: 2, Burst: 1})
	now := time.Now()

	if ok, _ := l.Allow("k", now); !ok {
		t.Fatal("first request denied")
	}
	if ok, _ := l.Allow("k", now); ok {
		t.Fatal("second immediate request allowed")
	}
	// 2 rps refills one token in 500ms.
	if ok, _ := l.Allow("k", now.Add(600*time.Millisecond)); !ok {
		t.Fatal("request denied after refill window")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	now := time.Now()

	if ok, _ := l.Allow("a", now); !ok {
		t.Fatal("key a denied")
	}
	if ok, _ := l.Allow("b", now); !ok {
		t.Fatal("key b throttled by key a's bucket")
	}
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	l := New(Config{})
	now := time.Now()
	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow("k", now); !ok {
			t.Fatal("disabled limiter denied a request")
		}
	}
}

func TestTTLEvictionBoundsMap(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1, MaxEntries: 2, EntryTTL: time.Minute})
	now := time.Now()

	l.Allow("a", now)
	l.Allow("b", now)
	// Both entries are stale by the time c arrives; GC must make room.
	l.Allow("c", now.Add(2*time.Minute))

	l.mu.Lock()
	size := len(l.m)
	_, hasC := l.m["c"]
	l.mu.Unlock()
	if size > 2 {
		t.Fatalf("map size = %d, want <= 2", size)
	}
	if !hasC {
		t.Fatal("newest key evicted instead of stale ones")
	}
}

func TestEmptyKeyCollapsesToAnonymous(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	now := time.Now()

	if ok, _ := l.Allow("", now); !ok {
		t.Fatal("first anonymous request denied")
	}
	if ok, _ := l.Allow("", now); ok {
		t.Fatal("anonymous callers must share one bucket")
	}
}
