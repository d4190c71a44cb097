// Package bootstrap assembles the application from configuration and runs it
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"riskgate/internal/alert"
	"riskgate/internal/config"
	"riskgate/internal/core"
	"riskgate/internal/exit"
	"riskgate/internal/position"
	"riskgate/internal/risk"
	"riskgate/internal/store"
	"riskgate/pkg/concurrency"
	"riskgate/pkg/logging"
	"riskgate/pkg/telemetry"
)

// App holds the wired application components
type App struct {
	Cfg       *config.Config
	Logger    core.ILogger
	Telemetry *telemetry.Telemetry
	Store     core.ISnapshotStore
	Tracker   *position.Tracker
	Risk      *risk.Manager
	Evaluator *exit.Evaluator

	pool    *concurrency.WorkerPool
	runners []core.IRunner
}

// NewApp loads configuration and constructs every component. The returned
// app has restored any persisted position snapshot but started nothing yet.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	zapLogger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logger := zapLogger.WithField("component", "app")

	tel, err := telemetry.Setup("riskgate")
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	snapStore, err := store.New(cfg.Persistence)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	tracker := position.NewTracker(zapLogger, tel.Metrics)
	if err := restoreSnapshot(snapStore, tracker, logger); err != nil {
		return nil, err
	}

	limits := risk.LimitsFromConfig(cfg.RiskLimits)
	manager := risk.NewManager(limits, tracker, zapLogger, tel.Metrics)

	zones, err := exit.ZonesFromConfig(cfg.ExitZones)
	if err != nil {
		return nil, fmt.Errorf("exit zones: %w", err)
	}

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "exit-signals",
		MaxWorkers:  cfg.Evaluation.SignalPoolSize,
		MaxCapacity: cfg.Evaluation.SignalPoolBuffer,
	}, zapLogger)

	evaluator := exit.NewEvaluator(
		tracker,
		exit.NewZoneSet(zones),
		time.Duration(cfg.Evaluation.TickIntervalMs)*time.Millisecond,
		pool,
		zapLogger,
		tel.Metrics,
	)

	notifier := buildNotifier(cfg.Alerts, zapLogger)
	manager.OnKillSwitch(notifier.KillSwitch)
	manager.OnRejection(notifier.OrderRejected)
	evaluator.Subscribe(func(sig exit.Signal) {
		if sig.ExitEligible {
			notifier.ExitEligible(sig)
		}
	})

	app := &App{
		Cfg:       cfg,
		Logger:    logger,
		Telemetry: tel,
		Store:     snapStore,
		Tracker:   tracker,
		Risk:      manager,
		Evaluator: evaluator,
		pool:      pool,
	}

	app.runners = append(app.runners, evaluator)
	app.runners = append(app.runners, newSnapshotRunner(
		tracker, snapStore,
		time.Duration(cfg.Persistence.SnapshotIntervalSec)*time.Second,
		zapLogger,
	))
	resetRunner, err := newDailyResetRunner(cfg.Schedule.DailyResetCron, manager, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	if resetRunner != nil {
		app.runners = append(app.runners, resetRunner)
	}
	if cfg.Telemetry.EnableMetrics {
		app.runners = append(app.runners, telemetry.NewServer(cfg.Telemetry.MetricsPort, zapLogger))
	}

	return app, nil
}

// buildNotifier returns nil when no alert channel is configured; the
// notifier's methods tolerate a nil receiver.
func buildNotifier(cfg config.AlertsConfig, logger core.ILogger) *alert.Notifier {
	hasSlack := cfg.SlackWebhookURL != ""
	hasTelegram := cfg.TelegramBotToken != "" && cfg.TelegramChatID != ""
	if !hasSlack && !hasTelegram {
		return nil
	}

	manager := alert.NewManager(logger)
	if hasSlack {
		manager.AddChannel(alert.NewSlackChannel(cfg.SlackWebhookURL))
	}
	if hasTelegram {
		manager.AddChannel(alert.NewTelegramChannel(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	return alert.NewNotifier(manager)
}

func restoreSnapshot(snapStore core.ISnapshotStore, tracker *position.Tracker, logger core.ILogger) error {
	snap, err := snapStore.LoadSnapshot(context.Background())
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}
	if err := tracker.Restore(snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	logger.Info("Restored position snapshot",
		"positions", len(snap.Positions),
		"taken_at", time.Unix(0, snap.TakenAt).Format(time.RFC3339))
	return nil
}

// Run starts every runner and blocks until a termination signal arrives or
// one of them fails. Shutdown drains the signal pool and takes a final
// snapshot before closing the store.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	a.Logger.Info("Starting application")
	for _, runner := range a.runners {
		r := runner
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	err := g.Wait()

	a.pool.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if saveErr := a.Store.SaveSnapshot(shutdownCtx, a.Tracker.Snapshot()); saveErr != nil {
		a.Logger.Error("Final snapshot failed", "error", saveErr)
	}
	if closeErr := a.Store.Close(); closeErr != nil {
		a.Logger.Error("Store close failed", "error", closeErr)
	}
	if telErr := a.Telemetry.Shutdown(shutdownCtx); telErr != nil {
		a.Logger.Error("Telemetry shutdown failed", "error", telErr)
	}

	if err != nil && err != context.Canceled {
		a.Logger.Error("Application stopped with error", "error", err)
		return err
	}

	a.Logger.Info("Application shut down gracefully")
	return nil
}
