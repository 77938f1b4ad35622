package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/shared/monitoring"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/utils"
)

// SecurityHeaders adds security headers to responses
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// PanicRecovery turns a handler panic into a 500 and logs the stack
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				monitoring.Logger(r.Context()).Error("handler panic recovered",
					"error", err,
					"path", r.URL.Path,
					"stack", string(debug.Stack()))
				utils.RespondWithError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestLogging logs every request with its status and duration
func RequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"ip", ClientIP(r),
			"traceID", monitoring.GetTraceIDFromContext(r.Context()),
		}
		switch {
		case wrapped.statusCode >= 500:
			slog.Error("HTTP Error Response", attrs...)
		case wrapped.statusCode >= 400:
			slog.Warn("HTTP Error Response", append(attrs, "userAgent", r.Header.Get("User-Agent"))...)
		default:
			slog.Info("HTTP Response", attrs...)
		}
	})
}

// ClientIP extracts the client address, preferring proxy headers
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
