package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/ragescanner/internal/auth"
	"github.com/anstrom/ragescanner/internal/bridge"
	"github.com/anstrom/ragescanner/internal/config"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/metrics"
	"github.com/anstrom/ragescanner/internal/probe"
	"github.com/anstrom/ragescanner/internal/workers"
)

const testAPIKey = "rs_abcdefghijklmnopqrstuvwxyz234567"

func createTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Workers = workers.Config{Size: 8, QueueSize: 32, ShutdownTimeout: 5 * time.Second}
	cfg.API.RateLimit.Enabled = false
	return cfg
}

type testServer struct {
	*httptest.Server
	bridge  *bridge.Bridge
	metrics *metrics.PrometheusMetrics
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	b := bridge.New(probe.NewSimulatedLAN(), cfg.Bridge(), bridge.WithLogger(logging.Discard()))
	pm := metrics.NewPrometheusMetrics()

	server, err := New(cfg, b, WithLogger(logging.Discard()), WithMetrics(pm), WithVersion("test"))
	require.NoError(t, err)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		_ = b.Close()
		srv.Close()
	})
	return &testServer{Server: srv, bridge: b, metrics: pm}
}

func (s *testServer) do(t *testing.T, method, path, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestNewRejectsPlaintextKeys(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.APIKeys = []string{testAPIKey}

	_, err := New(cfg, nil, WithLogger(logging.Discard()))
	assert.Error(t, err)
}

func TestServerAddress(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.ListenAddr = "0.0.0.0"
	cfg.API.Port = 9191

	server, err := New(cfg, nil, WithLogger(logging.Discard()))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9191", server.GetAddress())
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, createTestConfig())

	resp, body := srv.do(t, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "test", health["version"])

	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestScanLifecycle(t *testing.T) {
	srv := newTestServer(t, createTestConfig())

	resp, body := srv.do(t, http.MethodPost, "/api/v1/scans", `{"range": "192.168.1.1-3"}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var status bridge.Status
	require.Eventually(t, func() bool {
		_, body := srv.do(t, http.MethodGet, "/api/v1/scans/current", "", nil)
		if err := json.Unmarshal(body, &status); err != nil {
			return false
		}
		return status.Outcome != ""
	}, 10*time.Second, 20*time.Millisecond)

	assert.False(t, status.Active)
	assert.Equal(t, "192.168.1.1-192.168.1.3", status.Range)
	assert.Equal(t, 3, status.Results)
	assert.Equal(t, uint8(100), status.Progress)
	assert.EqualValues(t, "scan_complete", status.Outcome)

	// Nothing left to stop
	resp, _ = srv.do(t, http.MethodDelete, "/api/v1/scans/current", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidScanRequests(t *testing.T) {
	srv := newTestServer(t, createTestConfig())

	resp, body := srv.do(t, http.MethodPost, "/api/v1/scans", `{"range": "10.0.0.9-1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "INVALID_RANGE")

	resp, _ = srv.do(t, http.MethodPost, "/api/v1/scans", `range=10.0.0.1`,
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPut, "/api/v1/scans", `{"range": "10.0.0.1"}`, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPortsEndpoint(t *testing.T) {
	srv := newTestServer(t, createTestConfig())

	resp, body := srv.do(t, http.MethodGet, "/api/v1/ports", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ports []map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &ports))
	assert.Len(t, ports, 16)
}

func TestAuthenticationRequired(t *testing.T) {
	hash, err := auth.HashAPIKey(testAPIKey)
	require.NoError(t, err)

	cfg := createTestConfig()
	cfg.API.APIKeys = []string{hash}
	srv := newTestServer(t, cfg)

	resp, _ := srv.do(t, http.MethodGet, "/api/v1/ports", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/ports", "", map[string]string{"X-API-Key": testAPIKey})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/ports", "", map[string]string{"Authorization": "Bearer " + testAPIKey})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimiting(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.RateLimit.Enabled = true
	cfg.API.RateLimit.RequestsPerSecond = 0.5
	cfg.API.RateLimit.Burst = 2
	srv := newTestServer(t, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, _ := srv.do(t, http.MethodGet, "/api/v1/ports", "", nil)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, createTestConfig())

	resp, _ := srv.do(t, http.MethodOptions, "/api/v1/scans", "", map[string]string{
		"Origin":                         "http://example.com",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "Content-Type",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, createTestConfig())

	srv.do(t, http.MethodGet, "/api/v1/ports", "", nil)

	resp, body := srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ragescanner_api_requests_total{method="GET",path="/api/v1/ports",status="200"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := createTestConfig()
	cfg.Metrics.Enabled = false
	srv := newTestServer(t, cfg)

	resp, _ := srv.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventStreamThroughMiddleware(t *testing.T) {
	hash, err := auth.HashAPIKey(testAPIKey)
	require.NoError(t, err)

	cfg := createTestConfig()
	cfg.API.APIKeys = []string{hash}
	srv := newTestServer(t, cfg)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events?api_key=" + testAPIKey
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	resp, body := srv.do(t, http.MethodPost, "/api/v1/scans", `{"start": "192.168.1.1", "end": "192.168.1.2"}`,
		map[string]string{"X-API-Key": testAPIKey})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var types []string
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		types = append(types, msg.Type)
		if msg.Type == "scan_complete" {
			break
		}
	}

	updates := 0
	for _, typ := range types {
		if typ == "scan_update" {
			updates++
		}
	}
	assert.Equal(t, 2, updates)
}

func TestEventStreamRequiresKey(t *testing.T) {
	hash, err := auth.HashAPIKey(testAPIKey)
	require.NoError(t, err)

	cfg := createTestConfig()
	cfg.API.APIKeys = []string{hash}
	srv := newTestServer(t, cfg)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
