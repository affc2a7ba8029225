// Package http exposes the calorie ledger over a JSON API. Identity comes
// from the X-User-ID header; every /api route requires it.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"kalori/internal/ledger"
	applog "kalori/internal/log"
	"kalori/internal/middleware/trace"
	"kalori/internal/profile"
)

type Server struct {
	http.Server
	engine      *ledger.Engine
	profiles    *profile.Service
	rateLimiter *rateLimiter
	logs        *applog.StructuredLogger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, engine *ledger.Engine, profiles *profile.Service) *Server {
	mux := http.NewServeMux()

	s := &Server{
		engine:      engine,
		profiles:    profiles,
		rateLimiter: newRateLimiter(),
		logs:        applog.NewStructuredLogger(applog.Default(applog.ComponentHTTP)),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("GET /api/day/{date}", s.requireUser(s.handleGetDay))
	mux.HandleFunc("POST /api/day/{date}/entries", s.requireUser(s.withRateLimit(s.handleAddEntry)))
	mux.HandleFunc("PUT /api/day/{date}/entries/{index}", s.requireUser(s.withRateLimit(s.handleReplaceEntry)))
	mux.HandleFunc("GET /api/week", s.requireUser(s.handleWeek))
	mux.HandleFunc("GET /api/calendar", s.requireUser(s.handleCalendar))
	mux.HandleFunc("GET /api/stats", s.requireUser(s.handleStats))
	mux.HandleFunc("GET /api/profile", s.requireUser(s.handleGetProfile))
	mux.HandleFunc("PUT /api/profile", s.requireUser(s.handleSaveProfile))

	tracer := trace.NewMiddleware(clientIP, s.logs)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// clientIP extracts the client address, considering proxies.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
