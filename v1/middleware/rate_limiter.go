package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/utils"
)

// RateLimiter is an in-memory sliding window limiter keyed by client IP
type RateLimiter struct {
	requests map[string][]time.Time
	mutex    sync.Mutex
	maxReqs  int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		maxReqs:  maxRequests,
		window:   window,
		now:      time.Now,
	}
}

// IsAllowed records a request from clientIP and reports whether it is within the limit
func (rl *RateLimiter) IsAllowed(clientIP string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	var valid []time.Time
	for _, at := range rl.requests[clientIP] {
		if now.Sub(at) < rl.window {
			valid = append(valid, at)
		}
	}

	if len(valid) >= rl.maxReqs {
		rl.requests[clientIP] = valid
		slog.Warn("Rate limit exceeded", "ip", clientIP, "requests", len(valid), "limit", rl.maxReqs)
		return false
	}

	rl.requests[clientIP] = append(valid, now)
	return true
}

// Prune drops clients with no request inside the window
func (rl *RateLimiter) Prune() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for ip, times := range rl.requests {
		if len(times) == 0 || now.Sub(times[len(times)-1]) >= rl.window {
			delete(rl.requests, ip)
		}
	}
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := ClientIP(r)
		if !rl.IsAllowed(clientIP) {
			utils.RespondWithError(w, http.StatusTooManyRequests, models.ErrorCodeTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimitMiddleware creates a rate limiting middleware. A non-positive
// maxRequests disables limiting.
func RateLimitMiddleware(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	if maxRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return NewRateLimiter(maxRequests, window).Middleware
}
