package http

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Simple in-memory rate limiter, keyed by user. Mutations rewrite the whole
// ledger document, so a runaway client gets throttled before it hammers the
// backing store.
type rateLimiter struct {
	mu           sync.Mutex
	users        map[string]*userWindow
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type userWindow struct {
	lastRequest time.Time
	requests    int
}

const mutationsPerMinute = 60

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		users:       make(map[string]*userWindow),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale user entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes user entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for user, w := range rl.users {
		if w.lastRequest.Before(cutoff) {
			delete(rl.users, user)
		}
	}
}

// stop gracefully shuts down the cleanup goroutine
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, exists := rl.users[userID]

	if !exists {
		rl.users[userID] = &userWindow{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(w.lastRequest) > time.Minute {
		w.requests = 1
		w.lastRequest = now
		return true
	}

	w.requests++
	w.lastRequest = now

	return w.requests <= mutationsPerMinute
}

// withRateLimit throttles mutation handlers per user.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.allow(userID(r)) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"user_id", userID(r),
				"method", r.Method,
				"url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next(w, r)
	}
}
