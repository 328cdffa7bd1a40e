package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// RunCron runs job on the schedule spec until ctx is cancelled. spec is a
// standard five-field expression ("0 3 1 * *" runs at 03:00 on the 1st of
// every month) or a descriptor such as "@daily" or "@every 1h". Job errors
// are logged and do not stop the schedule.
func RunCron(ctx context.Context, name, spec string, job Job, logger *slog.Logger) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("pipeline: parse %s schedule %q: %w", name, spec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return RunSchedule(ctx, name, sched, job, logger.With(slog.String("schedule", spec)))
}

// RunSchedule is RunCron over an already parsed schedule.
func RunSchedule(ctx context.Context, name string, sched cron.Schedule, job Job, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "cron"), slog.String("job", name))
	logger.InfoContext(ctx, "cron started")

	for {
		next := sched.Next(time.Now())
		logger.DebugContext(ctx, "next run scheduled", slog.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		start := time.Now()
		if err := job(ctx); err != nil {
			logger.ErrorContext(ctx, "cron job failed",
				slog.Duration("duration", time.Since(start)),
				slog.String("error", err.Error()),
			)
			continue
		}
		logger.InfoContext(ctx, "cron job complete", slog.Duration("duration", time.Since(start)))
	}
}
