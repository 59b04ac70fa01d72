package scanning

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/anstrom/ragescanner/internal/errors"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/metrics"
	"github.com/anstrom/ragescanner/internal/probe"
	"github.com/anstrom/ragescanner/internal/workers"
)

const (
	// DefaultPortTimeout bounds a single port liveness check.
	DefaultPortTimeout = 500 * time.Millisecond

	outcomeComplete  = "complete"
	outcomeCancelled = "cancelled"
	outcomeError     = "error"
)

// Config holds engine settings.
type Config struct {
	// Concurrency is the number of targets probed at the same time.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// PortTimeout bounds each port liveness check.
	PortTimeout time.Duration `yaml:"port_timeout" json:"port_timeout"`

	// RateLimit paces target admission.
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig holds admission pacing settings.
type RateLimitConfig struct {
	// Enable rate limiting
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Targets admitted per second
	TargetsPerSecond float64 `yaml:"targets_per_second" json:"targets_per_second"`

	// Burst size
	Burst int `yaml:"burst" json:"burst"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: DefaultConcurrency,
		PortTimeout: DefaultPortTimeout,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.PortTimeout <= 0 {
		return fmt.Errorf("port timeout must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.TargetsPerSecond <= 0 {
		return fmt.Errorf("rate limit requires a positive targets_per_second")
	}
	return nil
}

// CancelToken is a stop request shared between a scan and its controller.
// The engine only consults it when admitting targets.
type CancelToken struct {
	flag atomic.Bool
}

// NewCancelToken returns an unset token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel sets the token. It is safe to call more than once.
func (t *CancelToken) Cancel() {
	t.flag.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	return t.flag.Load()
}

// Engine scans address ranges. A single Engine may serve any number of
// sequential or concurrent Run calls; each call owns its admission gate.
type Engine struct {
	prober  probe.Prober
	pool    *workers.Pool
	config  Config
	ports   []PortService
	metrics metrics.Recorder
	logger  *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records scan measurements on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = r
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine that runs blocking probe calls on pool.
func NewEngine(prober probe.Prober, pool *workers.Pool, cfg Config, opts ...Option) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.PortTimeout <= 0 {
		cfg.PortTimeout = DefaultPortTimeout
	}

	e := &Engine{
		prober:  prober,
		pool:    pool,
		config:  cfg,
		ports:   WellKnownPorts(),
		metrics: metrics.Nop{},
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("engine")
	return e
}

// Run scans req.Range and reports on events: one ScanUpdate per admitted
// target, Progress as targets finish, then exactly one of ScanComplete,
// ScanCancelled or Error. Sends on events block, so a slow reader slows
// admission. Run returns after the terminal event has been sent or ctx is done.
func (e *Engine) Run(ctx context.Context, req Request, cancel *CancelToken, events chan<- Event) {
	started := time.Now()
	logger := e.logger.WithScanID(req.ID)
	if cancel == nil {
		cancel = NewCancelToken()
	}

	rng, err := NewRange(req.Range.Start, req.Range.End)
	if err != nil {
		logger.Warn("rejected scan range", "error", err)
		e.metrics.IncrementScansTotal(outcomeError)
		emit(ctx, events, NewError(req.ID, err))
		return
	}

	total := rng.Size()
	logger.Info("scan started", "range", rng.String(), "targets", total, "concurrency", e.config.Concurrency)

	gate := NewFixedGate(e.config.Concurrency)
	defer func() { _ = gate.Close() }()

	var limiter *rate.Limiter
	if rl := e.config.RateLimit; rl.Enabled && rl.TargetsPerSecond > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rl.TargetsPerSecond), burst)
	}

	completions := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		e.reportProgress(ctx, req.ID, total, completions, events)
	}()

	var (
		wg       sync.WaitGroup
		admitted uint64
		stopped  bool
	)
	rng.Each(func(ip netip.Addr) bool {
		if cancel.Cancelled() || ctx.Err() != nil {
			stopped = true
			return false
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				stopped = true
				return false
			}
		}

		key := ip.String()
		if err := gate.Acquire(ctx, key); err != nil {
			stopped = true
			return false
		}
		if cancel.Cancelled() {
			gate.Release(key)
			stopped = true
			return false
		}

		admitted++
		wg.Add(1)
		e.metrics.SetTargetsInFlight(gate.InFlight())

		go func() {
			defer wg.Done()
			defer func() {
				gate.Release(key)
				e.metrics.SetTargetsInFlight(gate.InFlight())
			}()

			res := e.probeTarget(ctx, ip)
			e.recordResult(res)
			emit(ctx, events, NewScanUpdate(req.ID, res))

			select {
			case completions <- struct{}{}:
			case <-ctx.Done():
			}
		}()
		return true
	})

	wg.Wait()
	close(completions)
	<-progressDone

	outcome := outcomeComplete
	terminal := NewScanComplete(req.ID)
	if stopped || cancel.Cancelled() {
		outcome = outcomeCancelled
		terminal = NewScanCancelled(req.ID)
	}

	e.metrics.IncrementScansTotal(outcome)
	e.metrics.RecordScanDuration(time.Since(started))
	logger.Info("scan finished",
		"outcome", outcome,
		"admitted", admitted,
		"targets", total,
		"duration", time.Since(started))

	emit(ctx, events, terminal)
}

// reportProgress turns completions into Progress events. Percentages are
// floored and only sent when they change, so the sequence is strictly
// increasing and reaches 100 exactly when the last target finishes.
func (e *Engine) reportProgress(ctx context.Context, scanID string, total uint64, completions <-chan struct{}, events chan<- Event) {
	var completed uint64
	last := -1
	for range completions {
		completed++
		pct := int(completed * 100 / total)
		if pct == last {
			continue
		}
		last = pct
		emit(ctx, events, NewProgress(scanID, uint8(pct)))
	}
}

func (e *Engine) recordResult(res *Result) {
	e.metrics.IncrementHostsScanned(string(res.State))
	e.metrics.RecordHostDuration(res.Duration)
	for _, p := range res.OpenPorts {
		e.metrics.IncrementOpenPorts(ServiceName(p), 1)
	}
}

// probeTarget runs the per-target pipeline. Any fault, including a panic in
// a probe, ends in the error state; it never escapes to the caller.
func (e *Engine) probeTarget(ctx context.Context, ip netip.Addr) (res *Result) {
	started := time.Now()
	res = NewResult(ip)

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorScan("probe pipeline panicked", ip.String(), fmt.Errorf("%v", r))
			res.Fail(errors.ErrTaskFailed(r))
		}
		res.Duration = time.Since(started)
	}()

	d, err := e.discover(ctx, ip)
	if err != nil {
		e.logger.Debug("target failed", "target", ip.String(), "error", err)
		res.Fail(err)
		return res
	}

	res.MAC = d.mac
	res.Hostname = d.hostname
	res.Vendor = d.vendor
	if !d.online {
		res.State = StateOffline
		return res
	}

	res.State = StateOnline
	ports, err := e.scanPorts(ctx, ip)
	if err != nil {
		res.Fail(err)
		return res
	}
	res.OpenPorts = ports
	return res
}

type discovery struct {
	online   bool
	mac      string
	hostname string
	vendor   string
}

// discover runs reachability and link-layer resolution, with the name and
// vendor lookups that depend on them, on the blocking pool. A resolved
// link-layer address overrides an unanswered ping.
func (e *Engine) discover(ctx context.Context, ip netip.Addr) (discovery, error) {
	var d discovery
	target := ip.String()

	// The job always runs to completion once queued so d is never shared
	// with a job still in flight.
	err := e.pool.Run(context.WithoutCancel(ctx), "discover", target, func(jobCtx context.Context) error {
		reachable, err := e.prober.Ping(jobCtx, ip)
		if err != nil {
			e.metrics.IncrementProbeErrors(probe.NamePing)
			return err
		}
		e.logger.DebugProbe(probe.NamePing, target, "reachable", reachable)

		mac, err := e.prober.ResolveMAC(jobCtx, ip)
		if err != nil {
			e.metrics.IncrementProbeErrors(probe.NameMAC)
			return err
		}

		if len(mac) > 0 {
			reachable = true
			d.mac = probe.FormatMAC(mac)
			d.vendor = e.lookupVendor(jobCtx, target, mac)
		}
		d.hostname = e.lookupHostname(jobCtx, ip)
		d.online = reachable
		return nil
	})
	return d, err
}

func (e *Engine) lookupHostname(ctx context.Context, ip netip.Addr) string {
	name, err := e.prober.ResolveHostname(ctx, ip)
	if err != nil {
		e.metrics.IncrementProbeErrors(probe.NameHostname)
		e.logger.DebugProbe(probe.NameHostname, ip.String(), "error", err)
		return ""
	}
	return name
}

func (e *Engine) lookupVendor(ctx context.Context, target string, mac []byte) string {
	vendor, err := e.prober.ResolveVendor(ctx, mac)
	if err != nil {
		e.metrics.IncrementProbeErrors(probe.NameVendor)
		e.logger.DebugProbe(probe.NameVendor, target, "error", err)
		return ""
	}
	return vendor
}

// scanPorts checks every well-known port concurrently and returns the open
// ones in table order. Probe errors count as closed; a panicking check
// fails the whole phase.
func (e *Engine) scanPorts(ctx context.Context, ip netip.Addr) ([]uint16, error) {
	open := make([]bool, len(e.ports))

	g, gctx := errgroup.WithContext(ctx)
	for i, svc := range e.ports {
		i, svc := i, svc
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.ErrTaskFailed(r)
				}
			}()

			ok, perr := e.prober.PortOpen(gctx, ip, svc.Port, e.config.PortTimeout)
			if perr != nil {
				e.metrics.IncrementProbeErrors(probe.NamePort)
				e.logger.DebugProbe(probe.NamePort, ip.String(), "port", svc.Port, "error", perr)
				return nil
			}
			open[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ports := make([]uint16, 0, len(e.ports))
	for i, svc := range e.ports {
		if open[i] {
			ports = append(ports, svc.Port)
		}
	}
	return ports, nil
}

// emit sends ev unless ctx is done first.
func emit(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
