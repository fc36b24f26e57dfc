package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

var jobRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reviewgo_job_runs_total",
		Help: "Background job runs by job and result.",
	},
	[]string{"job", "result"},
)

// Job is a periodic maintenance task. Run reports how many rows it touched.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int64, error)
}

// Scheduler runs jobs on cron schedules. A run that is still in progress
// when its next tick fires is skipped, and a panicking job is recovered.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add registers job. Runs use ctx, so cancelling it aborts in-flight work.
func (s *Scheduler) Add(ctx context.Context, job Job) error {
	if _, err := s.cron.AddFunc(job.Spec, func() { s.run(ctx, job) }); err != nil {
		return fmt.Errorf("schedule job %s %q: %w", job.Name, job.Spec, err)
	}
	s.logger.Info("job scheduled", slog.String("job", job.Name), slog.String("spec", job.Spec))
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	start := time.Now()
	n, err := job.Run(ctx)
	if err != nil {
		jobRunsTotal.WithLabelValues(job.Name, "error").Inc()
		s.logger.ErrorContext(ctx, "job failed",
			slog.String("job", job.Name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return
	}
	jobRunsTotal.WithLabelValues(job.Name, "ok").Inc()
	s.logger.InfoContext(ctx, "job completed",
		slog.String("job", job.Name),
		slog.Int64("affected", n),
		slog.Duration("duration", time.Since(start)),
	)
}

// Start begins firing scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

// cronLogger adapts slog to cron.Logger. Both take alternating key/value
// pairs, so arguments pass through unchanged.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
