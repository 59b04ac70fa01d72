// Package cli provides the command-line interface for ragescanner.
// It implements the Cobra-based command tree: a headless terminal scanner,
// the HTTP/WebSocket API server, and small helper commands.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/ragescanner/internal/config"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/probe"
)

const envPrefix = "RAGESCANNER"

var (
	cfgFile  string
	verbose  bool
	simulate bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ragescanner",
	Short: "Fast IPv4 range scanner",
	Long: `RageScanner sweeps an IPv4 range and reports, for every address, whether
the host is online, its hostname, MAC address, hardware vendor and which
well-known TCP ports are open.

Scans run from the terminal with "scan", or are driven over HTTP and
streamed over WebSocket with "serve".`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "probe a simulated network instead of the real one")
	_ = rootCmd.PersistentFlags().MarkHidden("simulate")

	// Bind flags to viper
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
	if err := viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind log-level flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// RAGESCANNER_API_PORT overrides api.port, and so on
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	// Initialize structured logging after config is loaded
	initLogging()
}

// loadConfig loads the configuration file found by viper, applies
// environment and flag overrides and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		return nil, err
	}

	applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies the keys that may come from the environment or
// from flags on top of the file configuration.
func applyOverrides(cfg *config.Config) {
	if viper.IsSet("logging.level") && viper.GetString("logging.level") != "" {
		cfg.Logging.Level = logging.LogLevel(viper.GetString("logging.level"))
	}
	if viper.IsSet("logging.format") {
		cfg.Logging.Format = logging.LogFormat(viper.GetString("logging.format"))
	}
	if viper.IsSet("api.listen_addr") && viper.GetString("api.listen_addr") != "" {
		cfg.API.ListenAddr = viper.GetString("api.listen_addr")
	}
	if viper.IsSet("api.port") && viper.GetInt("api.port") != 0 {
		cfg.API.Port = viper.GetInt("api.port")
	}
	if viper.IsSet("probes.reachability") {
		cfg.Probes.Reachability = viper.GetString("probes.reachability")
	}
	if viper.IsSet("scanning.concurrency") && viper.GetInt("scanning.concurrency") > 0 {
		cfg.Scanning.Concurrency = viper.GetInt("scanning.concurrency")
	}
	if viper.IsSet("scanning.port_timeout") {
		cfg.Scanning.PortTimeout = viper.GetDuration("scanning.port_timeout")
	}
	if verbose {
		cfg.Logging.Level = logging.LevelDebug
	}
}

// buildProber returns the probe backend selected by configuration.
func buildProber(cfg *config.Config, logger *logging.Logger) (probe.Prober, error) {
	if simulate {
		logger.Warn("Using simulated network")
		return probe.NewSimulatedLAN(), nil
	}
	return probe.NewNative(cfg.Probes, logger)
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	// Try to load full config for logging settings
	cfg, err := loadConfig()
	if err != nil {
		// If config loading fails, use default logging
		logger := logging.NewDefault()
		logging.SetDefault(logger)
		return
	}

	logConfig := cfg.Logging
	logConfig.AddSource = cfg.Logging.Level == logging.LevelDebug

	// Create logger
	logger, err := logging.New(logConfig)
	if err != nil {
		// Fall back to default if creation fails
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	// Set as default logger
	logging.SetDefault(logger)

	// Log initialization if verbose
	if verbose {
		logging.Info("Structured logging initialized", "level", logConfig.Level, "format", logConfig.Format)
	}
}
