package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/ragescanner/internal/api"
	"github.com/anstrom/ragescanner/internal/bridge"
	"github.com/anstrom/ragescanner/internal/config"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/metrics"
	"github.com/anstrom/ragescanner/internal/scanning"
	"github.com/anstrom/ragescanner/internal/scheduler"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	Long: `Run the API server in the foreground.

Scans are started and stopped over HTTP, their events are streamed to
WebSocket clients on /api/v1/events, and any schedules from the
configuration file are started. Prometheus metrics are served on the
configured metrics path.`,
	Example: `  ragescanner serve
  ragescanner serve --host 0.0.0.0 --port 9090
  RAGESCANNER_API_PORT=9090 ragescanner serve --config /etc/ragescanner/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Override listen address")
	serveCmd.Flags().Int("port", 0, "Override listen port")

	if err := viper.BindPFlag("api.listen_addr", serveCmd.Flags().Lookup("host")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind host flag: %v\n", err)
	}
	if err := viper.BindPFlag("api.port", serveCmd.Flags().Lookup("port")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind port flag: %v\n", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.IsAPIEnabled() {
		return fmt.Errorf("API server is disabled in configuration")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logging.Default())
}

// serve runs the bridge, the API server and the scheduler until ctx is done.
func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	prober, err := buildProber(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize probes: %w", err)
	}

	pm := metrics.NewPrometheusMetrics()
	if cfg.Metrics.Enabled {
		go pm.StartPeriodicUpdates(ctx, cfg.Metrics.UpdateInterval)
	}

	b := bridge.New(prober, cfg.Bridge(), bridge.WithLogger(logger), bridge.WithMetrics(pm))
	defer func() { _ = b.Close() }()

	go logEvents(b.Events(), logger.WithComponent("events"))

	server, err := api.New(cfg, b,
		api.WithLogger(logger),
		api.WithMetrics(pm),
		api.WithVersion(version))
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	sched := scheduler.NewScheduler(b, scheduler.WithLogger(logger))
	if err := sched.AddJobs(cfg.Schedules); err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	logger.Info("RageScanner server ready",
		"address", server.GetAddress(),
		"version", version,
		"schedules", len(cfg.Schedules))

	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("Shutting down")
	return nil
}

// logEvents drains the bridge's default stream, logging scan milestones.
// It returns when the bridge closes the stream.
func logEvents(events <-chan scanning.Event, logger *logging.Logger) {
	for ev := range events {
		switch ev.Type {
		case scanning.EventScanUpdate:
			if ev.Result.State == scanning.StateOnline {
				logger.Debug("Host online",
					"scan_id", ev.ScanID,
					"ip", ev.Result.IP.String(),
					"hostname", ev.Result.Hostname,
					"open_ports", len(ev.Result.OpenPorts))
			}
		case scanning.EventScanComplete:
			logger.Info("Scan complete", "scan_id", ev.ScanID)
		case scanning.EventScanCancelled:
			logger.Info("Scan cancelled", "scan_id", ev.ScanID)
		case scanning.EventError:
			logger.Error("Scan failed", "scan_id", ev.ScanID, "error", ev.Err)
		}
	}
}
