// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// UserIDKey is the context key for user ID
	UserIDKey contextKey = "user_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and user_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("user_id", userID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// StageMutation logs a pipeline stage registry mutation.
func (l *Logger) StageMutation(op, stageCode string, tenantID string) {
	l.Info("stage_mutation",
		slog.String("op", op),
		slog.String("stage_code", stageCode),
		slog.String("tenant_id", tenantID),
	)
}

// DealTransition logs the outcome of a deal stage transition.
func (l *Logger) DealTransition(dealID, toStageID, outcome string) {
	l.Info("deal_transition",
		slog.String("deal_id", dealID),
		slog.String("to_stage_id", toStageID),
		slog.String("outcome", outcome),
	)
}

// WebhookAttempt logs a single webhook delivery attempt.
func (l *Logger) WebhookAttempt(eventType, url string, attempt, status int, err error) {
	attrs := []any{
		slog.String("event", eventType),
		slog.String("url", url),
		slog.Int("attempt", attempt),
		slog.Int("status", status),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.Warn("webhook_attempt", attrs...)
		return
	}
	l.Info("webhook_attempt", attrs...)
}

// WebhookExhausted logs a webhook delivery that gave up after all attempts.
func (l *Logger) WebhookExhausted(eventType, url string, attempts int, elapsed time.Duration) {
	l.Error("webhook_exhausted",
		slog.String("event", eventType),
		slog.String("url", url),
		slog.Int("attempts", attempts),
		slog.Float64("elapsed_ms", float64(elapsed.Milliseconds())),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
