package monitoring

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// TraceIDHeader carries the trace ID in both directions
const TraceIDHeader = "X-Trace-ID"

// maxTraceIDLength bounds caller supplied IDs; longer ones are replaced
const maxTraceIDLength = 128

type traceIDKey struct{}

// GetTraceIDFromContext returns the trace ID stored in ctx, or ""
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return traceID
	}
	return ""
}

// WithTraceID stores a trace ID in ctx
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// Logger returns the default logger tagged with the request's trace ID and
// any extra key/value pairs, e.g. the instance or submission being handled
func Logger(ctx context.Context, args ...any) *slog.Logger {
	logger := slog.Default()
	if traceID := GetTraceIDFromContext(ctx); traceID != "" {
		logger = logger.With("traceID", traceID)
	}
	if len(args) > 0 {
		logger = logger.With(args...)
	}
	return logger
}

// TraceIDMiddleware keeps the caller's X-Trace-ID when it is well formed,
// otherwise generates one, and echoes it on the response. A well formed ID
// is letters, digits, '-', '_' and '.' only.
func TraceIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceIDHeader)
		if !validTraceID(traceID) {
			traceID = uuid.New().String()
		}
		w.Header().Set(TraceIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), traceID)))
	})
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
