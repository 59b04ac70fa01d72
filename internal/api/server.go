// Package api provides the HTTP REST and WebSocket API for the ragescanner
// network scanner. It exposes scan control, live event streaming, health and
// Prometheus metrics on top of a running bridge.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihandlers "github.com/anstrom/ragescanner/internal/api/handlers"
	"github.com/anstrom/ragescanner/internal/api/middleware"
	"github.com/anstrom/ragescanner/internal/auth"
	"github.com/anstrom/ragescanner/internal/bridge"
	"github.com/anstrom/ragescanner/internal/config"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/metrics"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
	readHeaderTimeout     = 10 * time.Second
	idleTimeout           = 60 * time.Second
	maxHeaderBytes        = 1 << 20 // 1 MB
)

// Scanner is the bridge surface the API drives.
type Scanner interface {
	apihandlers.ScanController
	apihandlers.EventSource
}

var _ Scanner = (*bridge.Bridge)(nil)

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	scanner    Scanner
	keys       *auth.KeyStore
	logger     *logging.Logger
	metrics    *metrics.PrometheusMetrics
	version    string
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records HTTP metrics into pm and serves its registry on the
// configured metrics path.
func WithMetrics(pm *metrics.PrometheusMetrics) Option {
	return func(s *Server) { s.metrics = pm }
}

// WithLogger sets the server logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a new API server instance.
func New(cfg *config.Config, scanner Scanner, opts ...Option) (*Server, error) {
	keys, err := auth.NewKeyStore(cfg.API.APIKeys)
	if err != nil {
		return nil, fmt.Errorf("invalid API key configuration: %w", err)
	}

	server := &Server{
		router:  mux.NewRouter(),
		config:  cfg,
		scanner: scanner,
		keys:    keys,
		logger:  logging.Default(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(server)
	}
	server.logger = server.logger.WithComponent("api")

	server.setupRoutes()

	var handler http.Handler = server.router
	if cfg.API.CORS.Enabled {
		handler = handlers.CORS(
			handlers.AllowedOrigins(cfg.API.CORS.AllowedOrigins),
			handlers.AllowedMethods(cfg.API.CORS.AllowedMethods),
			handlers.AllowedHeaders(cfg.API.CORS.AllowedHeaders),
			handlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
		)(handler)
	}

	server.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.API.ListenAddr, strconv.Itoa(cfg.API.Port)),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	return server, nil
}

// setupRoutes configures all API routes and their middleware chains.
func (s *Server) setupRoutes() {
	s.router.Use(
		middleware.RequestID(),
		middleware.Recovery(s.logger),
		middleware.Logging(s.logger),
		middleware.SecurityHeaders(),
	)
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}

	if s.config.Metrics.Enabled && s.metrics != nil {
		s.router.Handle(s.config.Metrics.Path,
			promhttp.HandlerFor(s.metrics.GetRegistry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	health := apihandlers.NewHealthHandler(s.scanner, s.version)
	scans := apihandlers.NewScanHandler(s.scanner, s.logger)
	events := apihandlers.NewWebSocketHandler(s.scanner, s.logger)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Authentication(s.keys, s.logger))
	if rl := s.config.API.RateLimit; rl.Enabled {
		api.Use(middleware.RateLimit(rl.RequestsPerSecond, rl.Burst, s.logger))
	}

	api.HandleFunc("/health", health.Health).Methods(http.MethodGet)

	// Long-lived streams sit outside the request timeout
	api.HandleFunc("/events", events.Events).Methods(http.MethodGet)

	rest := api.NewRoute().Subrouter()
	rest.Use(
		middleware.RequestTimeout(s.config.API.RequestTimeout),
		middleware.ContentType(),
		maxBodySize(s.config.API.MaxRequestSize),
	)
	rest.HandleFunc("/scans", scans.StartScan).Methods(http.MethodPost)
	rest.HandleFunc("/scans/current", scans.GetStatus).Methods(http.MethodGet)
	rest.HandleFunc("/scans/current", scans.StopScan).Methods(http.MethodDelete)
	rest.HandleFunc("/ports", scans.ListPorts).Methods(http.MethodGet)
}

func maxBodySize(limit int64) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// Handler returns the root HTTP handler, including CORS.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GetAddress returns the server listen address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server",
		"address", s.httpServer.Addr,
		"tls", s.config.API.TLS.Enabled,
		"auth", s.keys.Enabled())

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.config.API.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(s.config.API.TLS.CertFile, s.config.API.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}
