package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"kalori/internal/docstore"
	"kalori/internal/ledger"
	applog "kalori/internal/log"
	"kalori/internal/middleware/trace"
	"kalori/internal/profile"
)

type contextKey string

const userIDKey contextKey = "user_id"

// requireUser rejects requests without an X-User-ID header. The engine treats
// an empty user as an empty ledger, so identity has to be enforced here.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get("X-User-ID")
		if uid == "" {
			writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next(w, r.WithContext(ctx))
	}
}

func userID(r *http.Request) string {
	if uid, ok := r.Context().Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError maps engine and store errors to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrNoUser), errors.Is(err, profile.ErrNoUser):
		status = http.StatusUnauthorized
	case errors.Is(err, ledger.ErrInvalidEntry), errors.Is(err, profile.ErrInvalidProfile):
		status = http.StatusBadRequest
	case errors.Is(err, docstore.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, docstore.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		fields := applog.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
			WithRequestID(trace.GetRequestID(r.Context()))
		fields[applog.FieldUserID] = userID(r)
		s.logs.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, fields)
	}

	writeError(w, status, err.Error())
}
