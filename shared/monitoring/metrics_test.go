package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := Initialize(DefaultConfig("attribute-forms-test")); err != nil {
		panic(err)
	}
	m.Run()
}

func scrape(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestHandler_PrometheusFormat(t *testing.T) {
	assert.True(t, IsInitialized())
	body := scrape(t)
	assert.True(t, strings.Contains(body, "# HELP") || strings.Contains(body, "# TYPE"))
}

func TestHandler_ExportsRuntimeMetrics(t *testing.T) {
	assert.Contains(t, scrape(t), "goroutine")
}

func TestHTTPMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)
	r.Get("/api/v1/instances/{instanceID}/form", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/instances/afi_abc/form", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := scrape(t)
	assert.Contains(t, body, "http_requests")
	assert.Contains(t, body, "/api/v1/instances/{instanceID}/form")
	assert.NotContains(t, body, "afi_abc")
}

func TestHTTPMetricsMiddleware_NotFoundIsUnknown(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no/such/path-12345", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, scrape(t), "path-12345")
}

func TestRecordExternalCallAndBusinessEvent(t *testing.T) {
	RecordExternalCall("smtp", "send", 20*time.Millisecond, nil)
	RecordExternalCall("webhook", "post", 5*time.Millisecond, errors.New("boom"))
	RecordBusinessEvent("attribute_form_submission", "completed")

	body := scrape(t)
	assert.Contains(t, body, "external_calls")
	assert.Contains(t, body, "external_call_errors")
	assert.Contains(t, body, "business_events")
	assert.Contains(t, body, "attribute_form_submission")
}

func TestInitialize_OnlyOnce(t *testing.T) {
	assert.NoError(t, Initialize(Config{ExporterType: "bogus"}))
}

func TestTraceIDMiddleware(t *testing.T) {
	var seen string
	h := TraceIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceIDHeader, "trace-1")
	h.ServeHTTP(w, req)
	assert.Equal(t, "trace-1", seen)
	assert.Equal(t, "trace-1", w.Header().Get(TraceIDHeader))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "trace-1", seen)
	assert.Equal(t, seen, w.Header().Get(TraceIDHeader))
}

func TestTraceIDMiddleware_ReplacesMalformedIDs(t *testing.T) {
	var seen string
	h := TraceIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceIDFromContext(r.Context())
	}))

	for _, bad := range []string{"has space", "line\tbreak", "<script>", strings.Repeat("a", maxTraceIDLength+1)} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceIDHeader, bad)
		h.ServeHTTP(w, req)
		assert.NotEqual(t, bad, seen)
		assert.Equal(t, seen, w.Header().Get(TraceIDHeader))
	}
}

func TestLogger_TagsTraceID(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(previous)

	ctx := WithTraceID(context.Background(), "trace-7")
	Logger(ctx, "instanceID", "afi_1").Info("submission received")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-7", entry["traceID"])
	assert.Equal(t, "afi_1", entry["instanceID"])

	buf.Reset()
	Logger(context.Background()).Info("no trace")
	assert.NotContains(t, buf.String(), "traceID")
}
