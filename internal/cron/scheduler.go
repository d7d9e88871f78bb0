package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/utsuwa/internal/telemetry"
	"github.com/robfig/cron/v3"
)

// SchedulerService is the name under which the *Scheduler is registered.
const SchedulerService = "cron.scheduler"

// ErrJobBusy is returned by RunNow when the job is already running.
var ErrJobBusy = errors.New("cron: job already running")

// ErrUnknownJob is returned by RunNow for a name that was never registered.
var ErrUnknownJob = errors.New("cron: unknown job")

// scheduleParser reads five-field expressions and descriptors such as
// "@daily" or "@every 1h".
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a job schedule exactly as Start does.
func ParseSchedule(expr string) (cron.Schedule, error) {
	return scheduleParser.Parse(expr)
}

// Scheduler manages periodic job execution using cron expressions.
// Each job is protected by a per-job mutex so that a tick, or a manual
// RunNow, never overlaps a run of the same job still in progress.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    []Job
	byName  map[string]Job
	locks   map[string]*sync.Mutex
	logger  *slog.Logger
	metrics *telemetry.Metrics
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
// metrics may be nil.
func NewScheduler(logger *slog.Logger, metrics *telemetry.Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		byName:  make(map[string]Job),
		locks:   make(map[string]*sync.Mutex),
		logger:  logger,
		metrics: metrics,
	}
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.byName[name] = j
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Jobs returns the registered job names, in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name()
	}
	return names
}

// Start initializes the cron scheduler and begins executing registered jobs.
// Returns an error if any job has an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	c := cron.New(cron.WithParser(scheduleParser))

	for _, job := range s.jobs {
		sched, err := ParseSchedule(job.Schedule())
		if err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
		lock := s.locks[job.Name()]
		c.Schedule(sched, cron.FuncJob(func() {
			if !lock.TryLock() {
				s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
				return
			}
			defer lock.Unlock()
			_ = s.run(ctx, job)
		}))
	}

	s.cancel, s.cron = cancel, c
	c.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

// RunNow runs the named job immediately in the calling goroutine. It does
// not require Start. It returns ErrJobBusy instead of waiting when a run of
// the same job is in progress.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.byName[name]
	lock := s.locks[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	if !lock.TryLock() {
		return fmt.Errorf("%w: %q", ErrJobBusy, name)
	}
	defer lock.Unlock()
	return s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	start := time.Now()
	s.logger.Debug("cron: job started", "job", job.Name())

	err := job.Run(ctx)
	s.metrics.ObserveJob(job.Name(), err)
	if err != nil {
		s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
		return err
	}
	s.logger.Debug("cron: job completed", "job", job.Name(), "duration", time.Since(start))
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for in-flight jobs.
// Running jobs see their context canceled.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
