package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger emits the fixed-shape log lines shared by the HTTP layer:
// request lifecycle, committed mutations, and request failures.
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPStart logs the start of an HTTP request
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, requestID, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithRequestID(requestID).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	fields[FieldUserID] = r.Header.Get("X-User-ID")

	sl.logger.InfoContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs the completion of an HTTP request. Client errors log at
// Warn, server errors at Error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, requestID string, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithRequestID(requestID).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	fields[FieldUserID] = r.Header.Get("X-User-ID")

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogEntryAdded logs a committed food entry
func (sl *StructuredLogger) LogEntryAdded(ctx context.Context, userID, dateKey, food string, calories int) {
	fields := NewFields().
		WithEntry(userID, dateKey, food, calories).
		WithOperation(OpAdd).
		WithComponent(ComponentLedger)

	sl.logger.InfoContext(ctx, "Food entry added", fields.ToSlice()...)
}

// LogEntryReplaced logs a committed in-place edit of a food entry
func (sl *StructuredLogger) LogEntryReplaced(ctx context.Context, userID, dateKey string, index int, food string, calories int) {
	fields := NewFields().
		WithEntry(userID, dateKey, food, calories).
		WithOperation(OpReplace).
		WithComponent(ComponentLedger)
	fields[FieldEntryIndex] = index

	sl.logger.InfoContext(ctx, "Food entry replaced", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, fields LogFields) {
	allFields := fields.
		WithError(err).
		WithComponent(component)

	sl.logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
