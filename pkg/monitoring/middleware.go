package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sriharan2222/medlog/pkg/logger"
)

// MonitoringMiddleware combines metrics, tracing, and logging
type MonitoringMiddleware struct {
	metrics *MetricsCollector
	tracing *TracingManager
	logger  *logger.Logger
}

// NewMonitoringMiddleware creates a new monitoring middleware
func NewMonitoringMiddleware(metrics *MetricsCollector, tracing *TracingManager, log *logger.Logger) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		tracing: tracing,
		logger:  log,
	}
}

// HTTPMiddleware assigns a request ID, traces, measures and logs every request
func (mm *MonitoringMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := logger.WithRequestID(r.Context(), requestID)

		route := routeTemplate(r)
		ctx = mm.tracing.ExtractTraceContext(ctx, r.Header)
		ctx, span := mm.tracing.StartHTTPSpan(ctx, r.Method, route)
		defer span.End()
		span.SetAttributes(attribute.String("request.id", requestID))

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		wrapper.Header().Set("X-Request-ID", requestID)
		mm.tracing.InjectTraceContext(ctx, wrapper.Header())

		next.ServeHTTP(wrapper, r.WithContext(ctx))

		duration := time.Since(start)
		span.SetAttributes(attribute.Int("http.status_code", wrapper.statusCode))
		if wrapper.statusCode >= 500 {
			span.SetAttributes(attribute.Bool("error", true))
		}

		mm.metrics.RecordHTTPRequest(r.Method, route, wrapper.statusCode, duration)
		mm.logger.HTTPRequest(ctx, r.Method, route, r.UserAgent(), r.RemoteAddr, wrapper.statusCode, duration)
	})
}

// TrackQuery runs fn inside a database span and records its duration
func (mm *MonitoringMiddleware) TrackQuery(ctx context.Context, operation, table string, fn func(ctx context.Context) (int64, error)) error {
	start := time.Now()

	ctx, span := mm.tracing.StartDatabaseSpan(ctx, operation, table)
	defer span.End()

	rows, err := fn(ctx)
	duration := time.Since(start)

	mm.metrics.RecordDBQuery(operation+"_"+table, duration)
	if err != nil {
		mm.tracing.RecordError(span, err)
	}
	mm.logger.DatabaseOperation(ctx, operation, table, duration, rows, err)

	return err
}

// routeTemplate returns the matched mux route template so metrics are not
// labelled with raw IDs or tokens.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}
