// Package scheduler runs recurring scans for ragescanner.
// Each job pairs a cron expression with a target range and, when it fires,
// queues a start command on the bridge unless a scan is already running.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anstrom/ragescanner/internal/bridge"
	"github.com/anstrom/ragescanner/internal/config"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/scanning"
)

// Job outcomes recorded after each firing.
const (
	OutcomeQueued  = "queued"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// CommandSender is the bridge surface the scheduler needs.
type CommandSender interface {
	TrySend(cmd bridge.Command) error
	Status() bridge.Status
}

// Scheduler manages scheduled scan jobs.
type Scheduler struct {
	sender  CommandSender
	cron    *cron.Cron
	logger  *logging.Logger
	jobs    map[string]*ScheduledJob
	mu      sync.RWMutex
	running bool
}

// ScheduledJob represents a scheduled scan.
type ScheduledJob struct {
	Name     string
	CronExpr string
	Range    scanning.Range
	CronID   cron.EntryID
	Enabled  bool

	LastRun     time.Time
	LastOutcome string
	LastError   string
	Runs        int
}

// JobInfo is a point-in-time copy of a job with its next firing time.
type JobInfo struct {
	Name        string    `json:"name"`
	Cron        string    `json:"cron"`
	Range       string    `json:"range"`
	Enabled     bool      `json:"enabled"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Runs        int       `json:"runs"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a new job scheduler that queues scans on sender.
func NewScheduler(sender CommandSender, opts ...Option) *Scheduler {
	s := &Scheduler{
		sender: sender,
		cron:   cron.New(),
		logger: logging.Default(),
		jobs:   make(map[string]*ScheduledJob),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scheduler")
	return s
}

// Start begins the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	// Start the cron scheduler
	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler and waits for a firing job to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	// Stop the cron scheduler
	<-s.cron.Stop().Done()

	s.logger.Info("Scheduler stopped")
}

// AddJobs registers every configured schedule.
func (s *Scheduler) AddJobs(schedules []config.ScheduleConfig) error {
	for _, sc := range schedules {
		if err := s.AddScanJob(sc.Name, sc.Cron, sc.Range); err != nil {
			return err
		}
	}
	return nil
}

// AddScanJob adds a new scheduled scan of rangeText.
func (s *Scheduler) AddScanJob(name, cronExpr, rangeText string) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}

	// Validate cron expression using standard 5-field format
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	rng, err := scanning.ParseRange(rangeText)
	if err != nil {
		return fmt.Errorf("job %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already exists", name)
	}

	cronID, err := s.cron.AddFunc(cronExpr, func() { s.execute(name) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.jobs[name] = &ScheduledJob{
		Name:     name,
		CronExpr: cronExpr,
		Range:    rng,
		CronID:   cronID,
		Enabled:  true,
	}

	s.logger.Info("Added scan job", "job", name, "schedule", cronExpr, "range", rng.String())
	return nil
}

// RemoveJob removes a scheduled job.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job not found")
	}

	s.cron.Remove(job.CronID)
	delete(s.jobs, name)

	s.logger.Info("Removed scheduled job", "job", name)
	return nil
}

// EnableJob enables a scheduled job.
func (s *Scheduler) EnableJob(name string) error {
	return s.setJobEnabled(name, true)
}

// DisableJob disables a scheduled job. Its cron entry stays registered.
func (s *Scheduler) DisableJob(name string) error {
	return s.setJobEnabled(name, false)
}

func (s *Scheduler) setJobEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job not found")
	}
	job.Enabled = enabled

	s.logger.Info("Scheduled job updated", "job", name, "enabled", enabled)
	return nil
}

// GetJobs returns every job, sorted by name.
func (s *Scheduler) GetJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, job := range s.jobs {
		info := JobInfo{
			Name:        job.Name,
			Cron:        job.CronExpr,
			Range:       job.Range.String(),
			Enabled:     job.Enabled,
			LastRun:     job.LastRun,
			LastOutcome: job.LastOutcome,
			LastError:   job.LastError,
			Runs:        job.Runs,
		}
		if schedule, err := cron.ParseStandard(job.CronExpr); err == nil {
			info.NextRun = schedule.Next(time.Now())
		}
		jobs = append(jobs, info)
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// execute fires a job: it queues a start command unless a scan is active.
func (s *Scheduler) execute(name string) {
	s.mu.RLock()
	job, exists := s.jobs[name]
	if !exists || !job.Enabled {
		s.mu.RUnlock()
		return
	}
	rng := job.Range
	s.mu.RUnlock()

	outcome, err := s.queue(rng)

	s.mu.Lock()
	if job, exists := s.jobs[name]; exists {
		job.LastRun = time.Now()
		job.LastOutcome = outcome
		job.LastError = ""
		if err != nil {
			job.LastError = err.Error()
		}
		job.Runs++
	}
	s.mu.Unlock()

	switch outcome {
	case OutcomeQueued:
		s.logger.Info("Scheduled scan queued", "job", name, "range", rng.String())
	case OutcomeSkipped:
		s.logger.Info("Scheduled scan skipped, scan in progress", "job", name, "active_scan", s.sender.Status().ScanID)
	default:
		s.logger.Error("Scheduled scan failed", "job", name, "error", err)
	}
}

func (s *Scheduler) queue(rng scanning.Range) (string, error) {
	if s.sender.Status().Active {
		return OutcomeSkipped, nil
	}
	if err := s.sender.TrySend(bridge.StartScanRange(rng.Start, rng.End)); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeQueued, nil
}

// RunNow fires a job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	_, exists := s.jobs[name]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("job not found")
	}

	s.execute(name)
	return nil
}
