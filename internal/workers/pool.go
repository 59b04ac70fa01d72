// Package workers provides a fixed pool of goroutines for blocking operations
// in ragescanner. Probe calls that sit in the operating system (ICMP reads,
// neighbour table queries, resolver lookups) run here so the number of
// goroutines parked in syscalls stays bounded independently of the number of
// targets admitted by the scan engine.
package workers

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anstrom/ragescanner/internal/errors"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/metrics"
)

// Job represents a unit of work to be executed by a worker.
type Job interface {
	// Execute performs the job and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns an identifier for the job, used in logs.
	ID() string
	// Type returns the job type for metrics and logging.
	Type() string
}

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int `yaml:"size" json:"size"`
	// QueueSize is the number of jobs that may wait for a worker.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
	// ShutdownTimeout is the maximum time to wait for workers to finish.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:            64,
		QueueSize:       256,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Size   int `json:"size"`
	Busy   int `json:"busy"`
	Queued int `json:"queued"`
}

type envelope struct {
	job  Job
	done chan error
}

// Pool manages a pool of worker goroutines for blocking job execution.
type Pool struct {
	config     Config
	jobs       chan envelope
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	metrics    metrics.Recorder
	startOnce  sync.Once
	startErr   error
	busy       atomic.Int32
	shutdown32 int32 // atomic shutdown flag
}

// Option configures a Pool.
type Option func(*Pool)

// WithMetrics records task outcomes on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(p *Pool) {
		p.metrics = r
	}
}

// New creates a new worker pool with the given configuration.
func New(config Config, opts ...Option) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	queueSize := config.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}

	pool := &Pool{
		config:  config,
		jobs:    make(chan envelope, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// Start launches the workers. It fails when the pool has no workers or has
// already been shut down.
func (p *Pool) Start() error {
	p.startOnce.Do(func() {
		if atomic.LoadInt32(&p.shutdown32) == 1 {
			p.startErr = fmt.Errorf("worker pool is shut down")
			return
		}
		if p.config.Size <= 0 {
			p.startErr = fmt.Errorf("worker pool size must be positive, got %d", p.config.Size)
			return
		}

		logging.Info("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize)

		for i := 0; i < p.config.Size; i++ {
			p.wg.Add(1)
			go p.run(i)
		}
	})
	return p.startErr
}

// Do queues job and waits for it to finish. ctx bounds the wait only; a job
// that has started runs to completion.
func (p *Pool) Do(ctx context.Context, job Job) error {
	if atomic.LoadInt32(&p.shutdown32) == 1 {
		return fmt.Errorf("worker pool is shut down")
	}

	env := envelope{job: job, done: make(chan error, 1)}
	select {
	case p.jobs <- env:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}

	select {
	case err := <-env.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is Do for a plain function.
func (p *Pool) Run(ctx context.Context, jobType, id string, fn func(ctx context.Context) error) error {
	return p.Do(ctx, FuncJob{JobID: id, JobType: jobType, Fn: fn})
}

// Stats returns the current pool occupancy.
func (p *Pool) Stats() Stats {
	return Stats{
		Size:   p.config.Size,
		Busy:   int(p.busy.Load()),
		Queued: len(p.jobs),
	}
}

// Shutdown stops accepting jobs and waits for running ones to finish.
func (p *Pool) Shutdown() error {
	if !atomic.CompareAndSwapInt32(&p.shutdown32, 0, 1) {
		return nil
	}

	logging.Info("Shutting down worker pool")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("Worker pool shutdown completed")
		return nil
	case <-time.After(p.config.ShutdownTimeout):
		logging.Warn("Worker pool shutdown timeout, abandoning running jobs")
		return fmt.Errorf("worker pool shutdown timed out after %s", p.config.ShutdownTimeout)
	}
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	logging.Debug("Worker started", "worker_id", id)
	defer logging.Debug("Worker stopped", "worker_id", id)

	for {
		select {
		case env := <-p.jobs:
			env.done <- p.execute(id, env.job)
		case <-p.ctx.Done():
			p.drain()
			return
		}
	}
}

// drain fails jobs that were queued but never picked up.
func (p *Pool) drain() {
	for {
		select {
		case env := <-p.jobs:
			env.done <- fmt.Errorf("worker pool is shutting down")
		default:
			return
		}
	}
}

func (p *Pool) execute(workerID int, job Job) (err error) {
	p.busy.Add(1)
	start := time.Now()

	defer func() {
		p.busy.Add(-1)
		status := "success"
		if r := recover(); r != nil {
			status = "panic"
			err = errors.ErrTaskFailed(r)
			logging.Error("Job panicked",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"worker_id", workerID,
				"panic", r,
				"stack", string(debug.Stack()))
		} else if err != nil {
			status = "error"
		}
		p.metrics.IncrementBlockingTasks(status)

		logging.Debug("Job finished",
			"job_id", job.ID(),
			"job_type", job.Type(),
			"duration", time.Since(start),
			"worker_id", workerID,
			"status", status)
	}()

	return job.Execute(p.ctx)
}

// FuncJob adapts a function to the Job interface.
type FuncJob struct {
	JobID   string
	JobType string
	Fn      func(ctx context.Context) error
}

// Execute implements the Job interface.
func (j FuncJob) Execute(ctx context.Context) error {
	return j.Fn(ctx)
}

// ID implements the Job interface.
func (j FuncJob) ID() string {
	return j.JobID
}

// Type implements the Job interface.
func (j FuncJob) Type() string {
	return j.JobType
}
