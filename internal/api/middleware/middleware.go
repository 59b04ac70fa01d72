// Package middleware provides HTTP middleware functions for the ragescanner API server.
// This package implements logging, metrics, authentication, rate limiting, and other
// cross-cutting concerns for API requests.
package middleware

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/anstrom/ragescanner/internal/auth"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/metrics"
)

// HTTP method constants
const (
	methodPOST    = "POST"
	methodPUT     = "PUT"
	methodOPTIONS = "OPTIONS"
)

// ContextKey represents a context key type.
type ContextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey ContextKey = "request_id"
	// StartTimeKey is the context key for request start time.
	StartTimeKey ContextKey = "start_time"

	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"
	// APIKeyHeader carries the API key.
	APIKeyHeader = "X-API-Key"
	// APIKeyQueryParam carries the API key for clients that cannot set headers (browsers opening websockets).
	APIKeyQueryParam = "api_key"

	// limiterCacheSize bounds the number of tracked clients.
	limiterCacheSize = 4096
)

// RequestID assigns each request an ID, honouring one supplied by the client.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > 64 {
				requestID = "req_" + uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, StartTimeKey, time.Now())
			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logging creates a logging middleware that logs HTTP requests and responses.
func Logging(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			logger.Debug("HTTP request started",
				"request_id", GetRequestID(r),
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", getClientIP(r),
				"user_agent", r.UserAgent())

			next.ServeHTTP(wrapped, r)

			logger.Info("HTTP request completed",
				"request_id", GetRequestID(r),
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", wrapped.statusCode,
				"response_size", wrapped.size,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", getClientIP(r))
		})
	}
}

// Metrics creates a metrics middleware that collects HTTP request metrics.
// Paths are recorded by route template to keep label cardinality bounded.
func Metrics(recorder metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}

			recorder.IncrementHTTPRequests(r.Method, path, strconv.Itoa(wrapped.statusCode))
			recorder.RecordHTTPDuration(r.Method, path, time.Since(start))
		})
	}
}

// Recovery creates a recovery middleware that catches panics.
func Recovery(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID := GetRequestID(r)

					logger.Error("HTTP request panic recovered",
						"request_id", requestID,
						"method", r.Method,
						"path", r.URL.Path,
						"panic", err,
						"stack", string(debug.Stack()),
						"remote_addr", getClientIP(r))

					writeJSONError(w, r, http.StatusInternalServerError, "Internal server error", "")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Authentication rejects requests that do not present a key accepted by keys.
// Health checks are always allowed. A store with no keys disables the check.
func Authentication(keys *auth.KeyStore, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys == nil || !keys.Enabled() || r.URL.Path == "/api/v1/health" || r.Method == methodOPTIONS {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := extractAPIKey(r)
			if apiKey == "" {
				logger.Warn("API request without authentication",
					"request_id", GetRequestID(r),
					"path", r.URL.Path,
					"remote_addr", getClientIP(r))

				writeJSONError(w, r, http.StatusUnauthorized, "Authentication required",
					"Provide API key in X-API-Key header or Authorization: Bearer <key>")
				return
			}

			if !keys.Authenticate(apiKey) {
				logger.Warn("API request with invalid key",
					"request_id", GetRequestID(r),
					"path", r.URL.Path,
					"remote_addr", getClientIP(r))

				writeJSONError(w, r, http.StatusUnauthorized, "Authentication failed: Invalid API key", "")
				return
			}

			logger.Debug("API request authenticated",
				"request_id", GetRequestID(r),
				"key", auth.CreateDisplayPrefix(apiKey))

			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return bearer
	}
	return r.URL.Query().Get(APIKeyQueryParam)
}

// RateLimit creates a per-client token bucket rate limiting middleware.
func RateLimit(requestsPerSecond float64, burst int, logger *logging.Logger) func(http.Handler) http.Handler {
	limiters, _ := lru.New[string, *rate.Limiter](limiterCacheSize)
	if burst <= 0 {
		burst = 1
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			limiter, ok := limiters.Get(clientIP)
			if !ok {
				limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
				if prev, loaded, _ := limiters.PeekOrAdd(clientIP, limiter); loaded {
					limiter = prev
				}
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(requestsPerSecond, 'f', -1, 64))
			if !limiter.Allow() {
				logger.Warn("Rate limit exceeded",
					"request_id", GetRequestID(r),
					"client_ip", clientIP,
					"path", r.URL.Path)

				w.Header().Set("Retry-After", "1")
				writeJSONError(w, r, http.StatusTooManyRequests, "Rate limit exceeded",
					fmt.Sprintf("Maximum %g requests per second", requestsPerSecond))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ContentType creates a content type middleware that validates request content types.
func ContentType() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == methodPOST || r.Method == methodPUT {
				contentType := r.Header.Get("Content-Type")
				if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
					writeJSONError(w, r, http.StatusUnsupportedMediaType, "Unsupported media type",
						"Content-Type must be application/json")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestTimeout creates a request timeout middleware.
func RequestTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SecurityHeaders adds common security headers.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture response information.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func wrap(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size.
func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Hijack lets websocket upgrades pass through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Flush implements http.Flusher.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// GetRequestID extracts the request ID from context.
func GetRequestID(r *http.Request) string {
	if requestID, ok := r.Context().Value(RequestIDKey).(string); ok {
		return requestID
	}
	return "unknown"
}

// getClientIP extracts the real client IP address from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, msg, detail string) {
	response := map[string]interface{}{
		"error":      msg,
		"request_id": GetRequestID(r),
		"timestamp":  time.Now().UTC(),
	}
	if detail != "" {
		response["message"] = detail
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
