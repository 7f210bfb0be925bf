// Package scheduler runs the reload and status jobs on cron schedules in
// serve mode.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler wraps a cron runner. Jobs are skipped while a previous run of
// the same job is still in progress and each run gets its own timeout.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	jobs map[string]JobFunc
}

// New creates a scheduler in UTC. ctx is the parent of every job run;
// timeout bounds each run (zero means no bound).
func New(ctx context.Context, timeout time.Duration, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:     ctx,
		timeout: timeout,
		logger:  logger,
		jobs:    make(map[string]JobFunc),
	}
}

// Add registers fn under name on a standard five-field cron spec or a
// descriptor such as @daily or @every 1h. An empty spec leaves the job
// callable through RunNow only.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	s.jobs[name] = fn
	s.mu.Unlock()
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.run(name, fn) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.logger.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.run(name, fn)
}

func (s *Scheduler) run(name string, fn JobFunc) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	s.logger.Info("job started", "job", name)
	if err := fn(ctx); err != nil {
		s.logger.Error("job failed", "job", name, "error", err, "duration", time.Since(start))
		return err
	}
	s.logger.Info("job finished", "job", name, "duration", time.Since(start))
	return nil
}

// Start begins firing scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
