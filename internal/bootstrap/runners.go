package bootstrap

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/robfig/cron/v3"

	"riskgate/internal/core"
	"riskgate/internal/position"
	"riskgate/internal/risk"
)

// snapshotRunner periodically persists the tracker snapshot. Transient store
// failures are retried with backoff; a save that keeps failing is logged and
// retried on the next interval rather than taking the process down.
type snapshotRunner struct {
	tracker  *position.Tracker
	store    core.ISnapshotStore
	interval time.Duration
	logger   core.ILogger
	pipeline failsafe.Executor[any]
}

func newSnapshotRunner(tracker *position.Tracker, store core.ISnapshotStore, interval time.Duration, logger core.ILogger) *snapshotRunner {
	retryPolicy := retrypolicy.NewBuilder[any]().
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithMaxRetries(3).
		Build()

	return &snapshotRunner{
		tracker:  tracker,
		store:    store,
		interval: interval,
		logger:   logger.WithField("component", "snapshot_runner"),
		pipeline: failsafe.With[any](retryPolicy),
	}
}

func (r *snapshotRunner) Run(ctx context.Context) error {
	r.logger.Info("Snapshot runner started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Snapshot runner stopped")
			return nil
		case <-ticker.C:
			r.save(ctx)
		}
	}
}

func (r *snapshotRunner) save(ctx context.Context) {
	snap := r.tracker.Snapshot()
	err := r.pipeline.Run(func() error {
		return r.store.SaveSnapshot(ctx, snap)
	})
	if err != nil {
		r.logger.Error("Snapshot save failed after retries", "error", err)
		return
	}
	r.logger.Debug("Snapshot saved", "positions", len(snap.Positions))
}

// dailyResetRunner rebaselines the daily loss tracking on a cron schedule,
// carrying the last observed equity forward as the new day's starting equity.
type dailyResetRunner struct {
	cron   *cron.Cron
	logger core.ILogger
}

// newDailyResetRunner returns nil when no schedule is configured
func newDailyResetRunner(spec string, manager *risk.Manager, logger core.ILogger) (*dailyResetRunner, error) {
	if spec == "" {
		return nil, nil
	}

	log := logger.WithField("component", "daily_reset")
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		equity := manager.LastEquity()
		manager.ResetDaily(equity)
		log.Info("Daily risk counters reset", "starting_equity", equity.String())
	}); err != nil {
		return nil, err
	}

	return &dailyResetRunner{cron: c, logger: log}, nil
}

func (r *dailyResetRunner) Run(ctx context.Context) error {
	r.logger.Info("Daily reset scheduler started")
	r.cron.Start()
	<-ctx.Done()
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.logger.Info("Daily reset scheduler stopped")
	return nil
}
