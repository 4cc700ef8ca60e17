// Package scheduler decides when the periodic maintenance jobs run. The
// jobs themselves live in the packages that own the data; this package
// only triggers them on cron specs and logs their outcome.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts standard five-field specs plus descriptors such as
// "@every 5m" and "@hourly".
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec parses.
func ValidateSpec(spec string) error {
	if _, err := Parser.Parse(spec); err != nil {
		return fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return nil
}

// Job is one named periodic task.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
	// RunAtStart also runs the job once when the scheduler starts.
	RunAtStart bool
}

type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    []Job
	running sync.WaitGroup
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// New builds a scheduler whose specs are evaluated in loc.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithParser(Parser), cron.WithLocation(loc)),
		logger: logger.With("component", "scheduler"),
	}
}

// Add registers a job. It must be called before Start.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cron.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
		return fmt.Errorf("add job %s: %w", job.Name, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start begins triggering jobs. Jobs marked RunAtStart run once right away
// in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	for _, job := range jobs {
		if job.RunAtStart && s.begin() {
			go func() {
				defer s.running.Done()
				s.exec(job)
			}()
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(jobs))
}

// Stop stops triggering and waits for running jobs to return. Jobs
// requested after Stop are refused.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.running.Wait()
	s.logger.Info("scheduler stopped")
}

// runNow runs the named job synchronously. It reports false for an
// unknown name or once the scheduler is stopped.
func (s *Scheduler) runNow(name string) bool {
	s.mu.Lock()
	var found *Job
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			found = &s.jobs[i]
			break
		}
	}
	s.mu.Unlock()
	if found == nil || !s.begin() {
		return false
	}
	defer s.running.Done()
	s.exec(*found)
	return true
}

func (s *Scheduler) run(job Job) {
	if !s.begin() {
		return
	}
	defer s.running.Done()
	s.exec(job)
}

// begin counts a job as running unless Stop has been called. The check
// and the Add share the lock so Stop's Wait never races an Add.
func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.running.Add(1)
	return true
}

func (s *Scheduler) exec(job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", job.Name, "panic", r)
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", "job", job.Name, "duration", time.Since(start), "error", err)
		return
	}
	s.logger.Debug("job finished", "job", job.Name, "duration", time.Since(start))
}
