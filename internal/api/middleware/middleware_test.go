package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/ragescanner/internal/auth"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/metrics/mocks"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	}))

	t.Run("generated", func(t *testing.T) {
		rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, strings.HasPrefix(seen, "req_"), seen)
		assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	})

	t.Run("client supplied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "trace-42")
		rr := serve(h, req)
		assert.Equal(t, "trace-42", seen)
		assert.Equal(t, "trace-42", rr.Header().Get(RequestIDHeader))
	})

	t.Run("oversized client value replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 100))
		serve(h, req)
		assert.True(t, strings.HasPrefix(seen, "req_"))
	})

	t.Run("missing outside middleware", func(t *testing.T) {
		assert.Equal(t, "unknown", GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil)))
	})
}

func TestRecovery(t *testing.T) {
	h := RequestID()(Recovery(logging.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, rr.Header().Get(RequestIDHeader), body["request_id"])
}

func TestAuthentication(t *testing.T) {
	key := "rs_abcdefghijklmnopqrstuvwxyz234567"
	hash, err := auth.HashAPIKey(key)
	require.NoError(t, err)
	store, err := auth.NewKeyStore([]string{hash})
	require.NoError(t, err)

	h := Authentication(store, logging.Discard())(okHandler)

	tests := []struct {
		name   string
		path   string
		method string
		header map[string]string
		status int
	}{
		{"no key", "/api/v1/ports", http.MethodGet, nil, http.StatusUnauthorized},
		{"wrong key", "/api/v1/ports", http.MethodGet, map[string]string{APIKeyHeader: "rs_wrongwrongwrongwrong"}, http.StatusUnauthorized},
		{"api key header", "/api/v1/ports", http.MethodGet, map[string]string{APIKeyHeader: key}, http.StatusOK},
		{"bearer token", "/api/v1/ports", http.MethodGet, map[string]string{"Authorization": "Bearer " + key}, http.StatusOK},
		{"basic auth is not accepted", "/api/v1/ports", http.MethodGet, map[string]string{"Authorization": "Basic " + key}, http.StatusUnauthorized},
		{"query parameter", "/api/v1/events?api_key=" + key, http.MethodGet, nil, http.StatusOK},
		{"health is public", "/api/v1/health", http.MethodGet, nil, http.StatusOK},
		{"preflight is public", "/api/v1/scans", http.MethodOptions, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rr := serve(h, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestAuthenticationDisabled(t *testing.T) {
	empty, err := auth.NewKeyStore(nil)
	require.NoError(t, err)

	for _, store := range []*auth.KeyStore{nil, empty} {
		rr := serve(Authentication(store, logging.Discard())(okHandler),
			httptest.NewRequest(http.MethodGet, "/api/v1/ports", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, 2, logging.Discard())(okHandler)

	request := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ports", nil)
		req.RemoteAddr = ip + ":40000"
		return serve(h, req)
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, request("10.0.0.1").Code)

	limited := request("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.Equal(t, "1", limited.Header().Get("X-RateLimit-Limit"))

	// Buckets are per client
	assert.Equal(t, http.StatusOK, request("10.0.0.2").Code)
}

func TestContentType(t *testing.T) {
	h := ContentType()(okHandler)

	tests := []struct {
		name        string
		method      string
		contentType string
		status      int
	}{
		{"json post", http.MethodPost, "application/json", http.StatusOK},
		{"json with charset", http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{"no content type", http.MethodPost, "", http.StatusOK},
		{"form post", http.MethodPost, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"text put", http.MethodPut, "text/plain", http.StatusUnsupportedMediaType},
		{"get ignores content type", http.MethodGet, "text/plain", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/scans", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			assert.Equal(t, tt.status, serve(h, req).Code)
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := RequestTimeout(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestSecurityHeaders(t *testing.T) {
	rr := serve(SecurityHeaders()(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rr.Header().Get("Referrer-Policy"))
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockRecorder(ctrl)

	recorder.EXPECT().IncrementHTTPRequests("GET", "/items/{id}", "418")
	recorder.EXPECT().RecordHTTPDuration("GET", "/items/{id}", gomock.Any())

	router := mux.NewRouter()
	router.Use(Metrics(recorder))
	router.HandleFunc("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestLoggingCapturesResponse(t *testing.T) {
	var buf strings.Builder
	logger := logging.NewWithWriter(logging.Config{Level: logging.LevelInfo, Format: logging.FormatJSON}, &buf)

	h := RequestID()(Logging(logger)(okHandler))
	serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/ports", nil))

	out := buf.String()
	assert.Contains(t, out, `"msg":"HTTP request completed"`)
	assert.Contains(t, out, `"status_code":200`)
	assert.Contains(t, out, `"response_size":2`)
	assert.Contains(t, out, `"request_id":"req_`)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.8"}, "10.0.0.1:1234", "203.0.113.8"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.2", "192.0.2.2"},
		{"nothing", nil, "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestResponseWriterHijackUnsupported(t *testing.T) {
	rw := wrap(httptest.NewRecorder())
	_, _, err := rw.Hijack()
	assert.Error(t, err)
}

func TestWriteJSONErrorShape(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), RequestIDKey, "req_test"))

	rr := httptest.NewRecorder()
	writeJSONError(rr, req, http.StatusUnauthorized, "Authentication required", "detail")

	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Authentication required", body["error"])
	assert.Equal(t, "detail", body["message"])
	assert.Equal(t, "req_test", body["request_id"])
}
