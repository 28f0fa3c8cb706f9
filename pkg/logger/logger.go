package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	// RequestIDKey is the context key under which the request ID is stored
	RequestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	l := New("panic")
	l.SetOutput(io.Discard)
	return l
}

// WithRequestID attaches a request ID to ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// ContextWithUserID attaches the authenticated user ID to ctx so that
// WithContext entries carry it
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// WithUserID creates a new logger entry with user ID field
func (l *Logger) WithUserID(userID string) *logrus.Entry {
	return l.Logger.WithField("user_id", userID)
}

// WithContext creates a logger with context-aware fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithFields(logrus.Fields{})
	if ctx == nil {
		return entry
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	if userID, ok := ctx.Value(userIDKey).(string); ok && userID != "" {
		entry = entry.WithField("user_id", userID)
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		entry = entry.WithFields(logrus.Fields{
			"trace_id": sc.TraceID().String(),
			"span_id":  sc.SpanID().String(),
		})
	}

	return entry
}

// Audit mirrors an audit_logs entry into the log stream. details is the
// same text that is persisted.
func (l *Logger) Audit(ctx context.Context, userID, action, entity, entityID, details string) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"audit":     true,
		"user_id":   userID,
		"action":    action,
		"entity":    entity,
		"entity_id": entityID,
	})
	if details != "" {
		entry = entry.WithField("details", details)
	}
	entry.Info("Audit event")
}

// Security logs security-related events
func (l *Logger) Security(event string, userID string, details map[string]interface{}) {
	l.Logger.WithFields(logrus.Fields{
		"security": true,
		"event":    event,
		"user_id":  userID,
		"details":  details,
	}).Warn("Security event")
}

// HTTPRequest logs one served request. path is the route template, never
// the raw URL, so QR tokens stay out of the logs.
func (l *Logger) HTTPRequest(ctx context.Context, method, path, userAgent, clientIP string, statusCode int, duration time.Duration) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"http_request": true,
		"method":       method,
		"path":         path,
		"user_agent":   userAgent,
		"client_ip":    clientIP,
		"status_code":  statusCode,
		"duration_ms":  duration.Milliseconds(),
	})

	switch {
	case statusCode >= 500:
		entry.Error("Request failed")
	case statusCode >= 400:
		entry.Info("Request rejected")
	default:
		entry.Info("Request completed")
	}
}

// DatabaseOperation logs one tracked query
func (l *Logger) DatabaseOperation(ctx context.Context, operation, table string, duration time.Duration, rows int64, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"operation":   operation,
		"table":       table,
		"duration_ms": duration.Milliseconds(),
		"rows":        rows,
	})

	if err != nil {
		entry.WithError(err).Error("Query failed")
		return
	}
	entry.Debug("Query completed")
}
