package rollup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fleetwatch/internal/domain"
)

// Scheduler runs the rollup job once a day for yesterday's date and accepts
// manual triggers for arbitrary dates. Manual and scheduled runs for the
// same date are not mutually excluded; the job's idempotence marker is the
// only guard.
type Scheduler struct {
	job    *Job
	hour   int
	minute int
	log    *zap.Logger
}

func NewScheduler(job *Job, hour, minute int, log *zap.Logger) *Scheduler {
	return &Scheduler{job: job, hour: hour, minute: minute, log: log}
}

// Run blocks until ctx is done, firing the job at the configured local time
// each day. A failed run is logged and the next one is still scheduled; the
// idempotence check makes re-runs safe.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := nextRun(time.Now(), s.hour, s.minute)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case now := <-timer.C:
			date := domain.Day(now.AddDate(0, 0, -1))
			s.log.Info("starting scheduled daily aggregation", zap.Time("date", date))
			start := time.Now()
			if err := s.job.Aggregate(ctx, date); err != nil {
				s.log.Error("daily aggregation failed", zap.Time("date", date), zap.Error(err))
				continue
			}
			s.log.Info("daily aggregation run finished",
				zap.Time("date", date),
				zap.Duration("took", time.Since(start)))
		}
	}
}

// Trigger runs the job on demand for a specific date, for backfills and
// re-running failed days.
func (s *Scheduler) Trigger(ctx context.Context, date time.Time) error {
	s.log.Info("manual aggregation triggered", zap.Time("date", domain.Day(date)))
	return s.job.Aggregate(ctx, date)
}

func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
