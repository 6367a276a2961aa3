package main

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// limiterCleanupThreshold is the map size before an idle sweep runs
	limiterCleanupThreshold = 500
	limiterMaxIdle          = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter hands out one token bucket per key (usually a client IP) and
// prunes idle keys inline.
type KeyedLimiter struct {
	mu   sync.Mutex
	keys map[string]*limiterEntry
	r    rate.Limit
	b    int
}

// NewKeyedLimiter creates a limiter allowing r events per second with burst b
func NewKeyedLimiter(r rate.Limit, b int) *KeyedLimiter {
	return &KeyedLimiter{
		keys: make(map[string]*limiterEntry),
		r:    r,
		b:    b,
	}
}

// Get returns the bucket for key
func (k *KeyedLimiter) Get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	if len(k.keys) > limiterCleanupThreshold {
		cutoff := now.Add(-limiterMaxIdle)
		for key, e := range k.keys {
			if e.lastSeen.Before(cutoff) {
				delete(k.keys, key)
			}
		}
	}

	e, ok := k.keys[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(k.r, k.b)}
		k.keys[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Allow consumes one token for key
func (k *KeyedLimiter) Allow(key string) bool {
	return k.Get(key).Allow()
}

// Middleware rejects requests over the per-IP budget with 429
func (k *KeyedLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !k.Allow(extractIP(r)) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
