// Package bridge connects frontends to the scan engine. It accepts commands
// on a bounded intake, runs at most one scan at a time on a background
// worker pool it owns, and relays every engine event to its subscribers.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/ragescanner/internal/errors"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/metrics"
	"github.com/anstrom/ragescanner/internal/probe"
	"github.com/anstrom/ragescanner/internal/scanning"
	"github.com/anstrom/ragescanner/internal/workers"
)

const (
	// DefaultCommandBuffer is the capacity of the command intake.
	DefaultCommandBuffer = 32
	// DefaultEventBuffer is the capacity of the engine-to-relay channel.
	DefaultEventBuffer = 100
	// DefaultShutdownTimeout bounds how long Close waits for an active scan.
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds bridge settings.
type Config struct {
	Scanning        scanning.Config `yaml:"scanning"`
	Workers         workers.Config  `yaml:"workers"`
	CommandBuffer   int             `yaml:"command_buffer"`
	EventBuffer     int             `yaml:"event_buffer"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	return Config{
		Scanning:        scanning.DefaultConfig(),
		Workers:         workers.DefaultConfig(),
		CommandBuffer:   DefaultCommandBuffer,
		EventBuffer:     DefaultEventBuffer,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Status is a snapshot of the bridge's scan state. After a scan ends it
// keeps describing that scan with Active false.
type Status struct {
	Active    bool               `json:"active"`
	ScanID    string             `json:"scan_id,omitempty"`
	Range     string             `json:"range,omitempty"`
	Progress  uint8              `json:"progress"`
	Results   int                `json:"results"`
	StartedAt time.Time          `json:"started_at,omitempty"`
	Outcome   scanning.EventType `json:"outcome,omitempty"`
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics records bridge, engine and pool measurements on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(b *Bridge) {
		b.metrics = r
	}
}

// WithLogger sets the logger used by the bridge and its engine.
func WithLogger(l *logging.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// Bridge runs scans on behalf of frontends.
type Bridge struct {
	config   Config
	engine   *scanning.Engine
	pool     *workers.Pool
	commands chan Command
	metrics  metrics.Recorder
	logger   *logging.Logger

	mu      sync.RWMutex
	subs    map[string]*Subscription
	events  *Subscription
	status  Status
	token   *scanning.CancelToken
	closing bool
	scanWG  sync.WaitGroup

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a bridge over prober and starts its background loop. The
// default subscription returned by Events exists from this point on, so no
// event is missed by a caller that reads it.
func New(prober probe.Prober, cfg Config, opts ...Option) *Bridge {
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = DefaultCommandBuffer
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		config:   cfg,
		commands: make(chan Command, cfg.CommandBuffer),
		metrics:  metrics.Nop{},
		logger:   logging.Default(),
		subs:     make(map[string]*Subscription),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.pool = workers.New(cfg.Workers, workers.WithMetrics(b.metrics))
	b.engine = scanning.NewEngine(prober, b.pool, cfg.Scanning,
		scanning.WithMetrics(b.metrics),
		scanning.WithLogger(b.logger))
	b.logger = b.logger.WithComponent("bridge")
	b.events = b.Subscribe()

	go b.run()
	return b
}

// Events returns the default event stream.
func (b *Bridge) Events() <-chan scanning.Event {
	return b.events.C()
}

// Subscribe attaches a new reader to the event broadcast. It only sees
// events published after it was created.
func (b *Bridge) Subscribe() *Subscription {
	sub := newSubscription(uuid.NewString(), b.unsubscribe)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closing {
		sub.finish()
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

func (b *Bridge) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Send queues cmd, blocking while the intake is full.
func (b *Bridge) Send(ctx context.Context, cmd Command) error {
	select {
	case <-b.ctx.Done():
		return errors.NewInternalError(errors.CodeServiceUnavailable, "bridge is closed")
	default:
	}

	select {
	case b.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return errors.NewInternalError(errors.CodeServiceUnavailable, "bridge is closed")
	}
}

// TrySend queues cmd without blocking.
func (b *Bridge) TrySend(cmd Command) error {
	select {
	case <-b.ctx.Done():
		return errors.NewInternalError(errors.CodeServiceUnavailable, "bridge is closed")
	default:
	}

	select {
	case b.commands <- cmd:
		return nil
	default:
		return errors.NewInternalError(errors.CodeRateLimited, "command queue is full")
	}
}

// Status returns the current scan state.
func (b *Bridge) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Close stops the active scan, waits up to the shutdown timeout for it to
// report its terminal event, then stops the worker pool and closes every
// subscription once its queue has drained.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closing = true
		token := b.token
		b.mu.Unlock()

		if token != nil {
			token.Cancel()
		}

		idle := make(chan struct{})
		go func() {
			b.scanWG.Wait()
			close(idle)
		}()
		select {
		case <-idle:
		case <-time.After(b.config.ShutdownTimeout):
			b.logger.Warn("Active scan did not stop in time")
		}

		b.cancel()
		<-b.done
	})
	return nil
}

func (b *Bridge) run() {
	defer close(b.done)
	defer b.finishSubscriptions()

	if err := b.pool.Start(); err != nil {
		b.logger.Error("Failed to start scan engine", "error", err)
		b.publish(scanning.NewError("", errors.ErrEngineInit(err)))
		b.drain()
		return
	}
	defer func() {
		if err := b.pool.Shutdown(); err != nil {
			b.logger.Warn("Worker pool shutdown failed", "error", err)
		}
	}()

	b.logger.Info("Bridge started")
	for {
		select {
		case cmd := <-b.commands:
			b.handle(cmd)
		case <-b.ctx.Done():
			b.scanWG.Wait()
			b.logger.Info("Bridge stopped")
			return
		}
	}
}

// drain consumes commands without acting on them. It keeps the intake open
// after the engine failed to start.
func (b *Bridge) drain() {
	for {
		select {
		case cmd := <-b.commands:
			b.logger.Warn("Ignoring command, scan engine is not running", "command", cmd.String())
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Bridge) handle(cmd Command) {
	logger := b.logger.WithFields("command", cmd.String())

	switch cmd.Type {
	case CommandStartScan, CommandStartScanRange:
		b.start(cmd)

	case CommandStopScan:
		b.mu.RLock()
		token, id := b.token, b.status.ScanID
		b.mu.RUnlock()
		if token == nil {
			logger.Debug("No active scan to stop")
			return
		}
		logger.Info("Stop requested", "scan_id", id)
		token.Cancel()

	default:
		logger.Warn("Unknown command")
	}
}

func (b *Bridge) start(cmd Command) {
	id := uuid.NewString()

	rng, err := cmd.Range()
	if err != nil {
		b.logger.Warn("Rejected scan request", "command", cmd.String(), "error", err)
		b.publish(scanning.NewError(id, err))
		return
	}

	b.mu.Lock()
	if b.status.Active {
		active := b.status.ScanID
		b.mu.Unlock()
		b.logger.Warn("Rejected scan request, scan already running", "active_scan_id", active)
		b.publish(scanning.NewError(id, errors.ErrScanInProgress(active)))
		return
	}
	if b.closing {
		b.mu.Unlock()
		return
	}

	token := scanning.NewCancelToken()
	b.token = token
	b.status = Status{
		Active:    true,
		ScanID:    id,
		Range:     rng.String(),
		StartedAt: time.Now(),
	}
	b.scanWG.Add(1)
	b.mu.Unlock()

	b.metrics.SetActiveScans(1)
	b.logger.WithScanID(id).Info("Scan accepted", "range", rng.String())

	events := make(chan scanning.Event, b.config.EventBuffer)
	go func() {
		defer close(events)
		b.engine.Run(b.ctx, scanning.Request{ID: id, Range: rng}, token, events)
	}()
	go b.relay(id, events)
}

// relay republishes one scan's events. The active slot is released before
// the terminal event goes out, so a reader reacting to it can start the
// next scan straight away.
func (b *Bridge) relay(id string, events <-chan scanning.Event) {
	defer b.scanWG.Done()

	finished := false
	for ev := range events {
		b.track(ev)
		if ev.IsTerminal() {
			finished = true
		}
		b.publish(ev)
	}

	if !finished {
		ev := scanning.NewScanCancelled(id)
		b.track(ev)
		b.publish(ev)
	}
}

func (b *Bridge) track(ev scanning.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.ScanID != b.status.ScanID {
		return
	}
	switch ev.Type {
	case scanning.EventProgress:
		b.status.Progress = ev.Progress
	case scanning.EventScanUpdate:
		b.status.Results++
	case scanning.EventScanComplete, scanning.EventScanCancelled, scanning.EventError:
		b.status.Active = false
		b.status.Outcome = ev.Type
		b.token = nil
		b.metrics.SetActiveScans(0)
	}
}

func (b *Bridge) publish(ev scanning.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		sub.push(ev)
	}
}

func (b *Bridge) finishSubscriptions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closing = true
	for _, sub := range b.subs {
		sub.finish()
	}
}
