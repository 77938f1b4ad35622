package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serve(mw func(http.Handler) http.Handler, req *http.Request) (*httptest.ResponseRecorder, bool) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	w := httptest.NewRecorder()
	mw(next).ServeHTTP(w, req)
	return w, called
}

func TestDefaultCORSConfig(t *testing.T) {
	config := DefaultCORSConfig("https://example.com, https://test.com", "http://localhost:5173", "https://example.com")

	assert.Equal(t, []string{"https://example.com", "https://test.com", "http://localhost:5173"}, config.AllowedOrigins)
	assert.Contains(t, config.AllowedMethods, "POST")
	assert.Contains(t, config.AllowedMethods, "PUT")
	assert.Contains(t, config.AllowedHeaders, "Content-Type")
	assert.True(t, config.AllowCredentials)
	assert.Equal(t, 86400, config.MaxAge)
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	mw := CORSMiddleware(CORSConfig{
		AllowedOrigins:   []string{"https://example.com"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           3600,
	})

	req := httptest.NewRequest("POST", "/api/v1/instances/afi_1/submit", nil)
	req.Header.Set("Origin", "https://example.com")
	w, called := serve(mw, req)

	assert.True(t, called)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, w.Header().Values("Vary"), "Origin")
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	mw := CORSMiddleware(CORSConfig{AllowedOrigins: []string{"https://example.com"}})

	req := httptest.NewRequest("GET", "/api/v1/instances/afi_1/form", nil)
	req.Header.Set("Origin", "https://malicious.com")
	w, called := serve(mw, req)

	assert.True(t, called)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSMiddleware_WildcardOrigin(t *testing.T) {
	mw := CORSMiddleware(CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET"}})

	req := httptest.NewRequest("GET", "/api/v1/instances/afi_1/form", nil)
	req.Header.Set("Origin", "https://any-origin.com")
	w, called := serve(mw, req)

	assert.True(t, called)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_PreflightRequest(t *testing.T) {
	mw := CORSMiddleware(CORSConfig{
		AllowedOrigins: []string{"https://example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	})

	req := httptest.NewRequest("OPTIONS", "/api/v1/instances/afi_1/submit", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w, called := serve(mw, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Values("Vary"), "Access-Control-Request-Method")
	assert.Contains(t, w.Header().Values("Vary"), "Access-Control-Request-Headers")
}

func TestCORSMiddleware_WildcardWithCredentialsPanics(t *testing.T) {
	assert.Panics(t, func() {
		CORSMiddleware(CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true})
	})
}

func TestNewCORSMiddleware(t *testing.T) {
	mw := NewCORSMiddleware("http://localhost:5173")

	req := httptest.NewRequest("GET", "/api/v1/instances/afi_1/form", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w, called := serve(mw, req)

	assert.True(t, called)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
