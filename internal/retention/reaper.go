// Package retention purges task ledger rows once their results have expired from
// the result store.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger deletes ledger rows created before cutoff and reports how many went.
type Purger interface {
	PurgeTasksBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Reaper runs a Purger on a cron schedule.
type Reaper struct {
	purger    Purger
	spec      string
	schedule  cron.Schedule
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewReaper validates spec (standard five-field cron or a descriptor such as @hourly)
// and returns a Reaper that deletes rows older than retention.
func NewReaper(p Purger, spec string, retention time.Duration, logger *slog.Logger) (*Reaper, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", spec, err)
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		purger:    p,
		spec:      spec,
		schedule:  schedule,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Next returns the first run after from.
func (r *Reaper) Next(from time.Time) time.Time {
	return r.schedule.Next(from)
}

// RunOnce purges everything older than the retention window.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().Add(-r.retention)
	n, err := r.purger.PurgeTasksBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging tasks before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		r.logger.Info("purged expired tasks", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Run schedules RunOnce until ctx is cancelled, then waits for a running purge to finish.
func (r *Reaper) Run(ctx context.Context) error {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(r.logger.Handler(), slog.LevelWarn))
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	c.Schedule(r.schedule, cron.FuncJob(func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("retention run failed", "error", err)
		}
	}))

	r.logger.Info("retention reaper started", "schedule", r.spec, "retention", r.retention)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("retention reaper stopped")
	return nil
}
