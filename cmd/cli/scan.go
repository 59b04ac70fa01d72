package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/ragescanner/internal/bridge"
	"github.com/anstrom/ragescanner/internal/errors"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/scanning"
)

// sendTimeout bounds how long the start command may wait on the intake.
const sendTimeout = 5 * time.Second

var (
	scanStart      string
	scanEnd        string
	scanOutput     string
	scanOnlineOnly bool
	scanNoProgress bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [RANGE]",
	Short: "Scan an IPv4 range from the terminal",
	Long: `Scan every address of an IPv4 range and print what was found.

The range is either a positional argument or a --start/--end pair. A
progress bar is drawn on stderr while the scan runs. Press Ctrl-C once
to stop the scan and print the hosts found so far, twice to quit
immediately.`,
	Example: `  ragescanner scan 192.168.1.1-254
  ragescanner scan 10.0.0.1-254 --online-only
  ragescanner scan 10.0.0.5-10.0.1.20 --output json
  ragescanner scan --start 172.16.0.1 --end 172.16.0.50`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanStart, "start", "", "First address of the range")
	scanCmd.Flags().StringVar(&scanEnd, "end", "", "Last address of the range")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", outputTable, "Output format: table or json")
	scanCmd.Flags().BoolVar(&scanOnlineOnly, "online-only", false, "Only print hosts that are online")
	scanCmd.Flags().BoolVar(&scanNoProgress, "no-progress", false, "Do not draw the progress bar")
	scanCmd.Flags().Int("concurrency", 0, "Number of targets probed at the same time")
	scanCmd.Flags().Duration("port-timeout", 0, "Timeout for each port check")

	scanCmd.MarkFlagsRequiredTogether("start", "end")

	if err := viper.BindPFlag("scanning.concurrency", scanCmd.Flags().Lookup("concurrency")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind concurrency flag: %v\n", err)
	}
	if err := viper.BindPFlag("scanning.port_timeout", scanCmd.Flags().Lookup("port-timeout")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind port-timeout flag: %v\n", err)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	start, err := scanCommand(args, scanStart, scanEnd)
	if err != nil {
		return err
	}
	if err := validateOutput(scanOutput); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Default()

	prober, err := buildProber(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize probes: %w", err)
	}

	b := bridge.New(prober, cfg.Bridge(), bridge.WithLogger(logger))
	defer func() { _ = b.Close() }()

	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	bar := newProgressBar(cmd.ErrOrStderr(), !scanNoProgress && isTerminal(cmd.ErrOrStderr()))

	report, err := runHeadless(cmd.Context(), b, start, interrupts, bar)
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), scanOutput, report, scanOnlineOnly)
}

// scanCommand builds the start command from a positional range or a
// --start/--end pair and checks that it parses.
func scanCommand(args []string, start, end string) (bridge.Command, error) {
	var cmd bridge.Command
	switch {
	case len(args) == 1 && (start != "" || end != ""):
		return cmd, errors.NewInternalError(errors.CodeValidation, "give either a range argument or --start/--end, not both")
	case len(args) == 1:
		cmd = bridge.StartScan(args[0])
	case start != "" && end != "":
		cmd = bridge.StartScan(start + "-" + end)
	default:
		return cmd, errors.NewInternalError(errors.CodeValidation, "a range argument or --start and --end are required")
	}

	if _, err := cmd.Range(); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// scanReport is what a finished headless scan produced.
type scanReport struct {
	ScanID  string
	Range   string
	Outcome scanning.EventType
	Results []*scanning.Result
	Elapsed time.Duration
}

// scanner is the bridge surface the headless frontend drives.
type scanner interface {
	Send(ctx context.Context, cmd bridge.Command) error
	TrySend(cmd bridge.Command) error
	Events() <-chan scanning.Event
}

// runHeadless starts a scan and collects its events until the terminal one.
// The first interrupt stops the scan; the second abandons it.
func runHeadless(ctx context.Context, s scanner, start bridge.Command, interrupts <-chan os.Signal, bar *progressBar) (*scanReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rng, err := start.Range()
	if err != nil {
		return nil, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	err = s.Send(sendCtx, start)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to start scan: %w", err)
	}

	report := &scanReport{Range: rng.String()}
	began := time.Now()
	stopping := false

	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return nil, errors.NewInternalError(errors.CodeServiceUnavailable, "event stream closed before the scan finished")
			}
			if report.ScanID == "" {
				report.ScanID = ev.ScanID
			}

			switch ev.Type {
			case scanning.EventScanUpdate:
				report.Results = append(report.Results, ev.Result)
			case scanning.EventProgress:
				bar.Set(ev.Progress)
			case scanning.EventScanComplete, scanning.EventScanCancelled:
				bar.Finish()
				report.Outcome = ev.Type
				report.Elapsed = time.Since(began)
				return report, nil
			case scanning.EventError:
				bar.Finish()
				return nil, ev.Err
			}

		case <-interrupts:
			if stopping {
				bar.Finish()
				return nil, errors.NewInternalError(errors.CodeCanceled, "scan abandoned")
			}
			stopping = true
			bar.Note("Stopping scan, press Ctrl-C again to quit")
			if err := s.TrySend(bridge.StopScan()); err != nil {
				logging.Warn("Failed to queue stop command", "error", err)
			}

		case <-ctx.Done():
			bar.Finish()
			return nil, ctx.Err()
		}
	}
}
