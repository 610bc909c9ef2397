// Package jobs runs periodic work (reminders, campaign dispatch) on cron
// schedules.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gestly/gestly/internal/app/metrics"
	"github.com/gestly/gestly/pkg/logger"
)

// DefaultTimeout bounds a single run.
const DefaultTimeout = 2 * time.Minute

// Runner is one unit of periodic work. It returns how many items it handled.
type Runner func(ctx context.Context) (int, error)

// Job binds a runner to a schedule.
type Job struct {
	Name     string
	Schedule string
	Run      Runner
}

// Scheduler is a system.Service wrapping a cron instance.
type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	running map[string]bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler. A non-positive timeout uses DefaultTimeout.
func NewScheduler(timeout time.Duration, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("jobs")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scheduler{
		cron:    cron.New(),
		timeout: timeout,
		log:     log,
		running: map[string]bool{},
	}
}

// Add registers a job. Schedules use the standard five-field cron syntax or
// descriptors such as "@every 5m".
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job requires a name and a runner")
	}
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", job.Name, job.Schedule, err)
	}
	if _, err := s.cron.AddFunc(job.Schedule, func() { s.RunNow(job) }); err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Jobs lists registered jobs.
func (s *Scheduler) Jobs() []Job {
	return append([]Job(nil), s.jobs...)
}

// RunNow executes job immediately unless a previous run is still going.
func (s *Scheduler) RunNow(job Job) {
	s.mu.Lock()
	if s.running[job.Name] {
		s.mu.Unlock()
		s.log.WithField("job", job.Name).Debug("previous run still in progress, skipping")
		return
	}
	s.running[job.Name] = true
	parent := s.ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, job.Name)
		s.mu.Unlock()
	}()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := job.Run(ctx)
	metrics.RecordJobRun(job.Name, err == nil)
	entry := s.log.WithField("job", job.Name).
		WithField("handled", n).
		WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		entry.WithError(err).Error("job failed")
		return
	}
	if n > 0 {
		entry.Info("job finished")
	} else {
		entry.Debug("job finished")
	}
}

// Name implements system.Service.
func (s *Scheduler) Name() string { return "jobs" }

// Start implements system.Service.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()
	s.cron.Start()
	s.log.WithField("jobs", len(s.jobs)).Info("scheduler started")
	return nil
}

// Stop implements system.Service. It waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	select {
	case <-done.Done():
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		return ctx.Err()
	}
	if cancel != nil {
		cancel()
	}
	return nil
}
