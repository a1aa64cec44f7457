package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/heartmarshall/questline-reconciler/internal/clock"
	"github.com/heartmarshall/questline-reconciler/internal/config"
	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
	"github.com/heartmarshall/questline-reconciler/internal/reconcile"
	"github.com/heartmarshall/questline-reconciler/internal/reconcile/quest"
	"github.com/heartmarshall/questline-reconciler/internal/reconcile/streak"
	"github.com/heartmarshall/questline-reconciler/internal/report"
)

// Exit codes of the job commands.
const (
	ExitOK    = 0
	ExitError = 1
)

// reportTimeout bounds publishing the summary after the run.
const reportTimeout = 15 * time.Second

// RunJob is the entry point of the job commands: it loads configuration,
// runs one reconciliation pass of kind and publishes the summary. It returns
// the process exit code.
func RunJob(ctx context.Context, kind domain.JobKind) int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("load config: %v", err)
		return ExitError
	}

	appName := "questline-" + kind.String()
	logger := NewLogger(cfg.Log, appName)

	logger.Info("starting job",
		slog.String("job", kind.String()),
		slog.String("build", BuildVersion()),
		slog.String("store", cfg.Store.Driver),
		slog.Bool("dry_run", cfg.Reconcile.DryRun),
	)

	store, closeStore, err := OpenStore(ctx, cfg, appName, logger)
	if err != nil {
		logger.Error("open document store", slog.String("error", err.Error()))
		return ExitError
	}
	defer closeStore()

	reporter, closeReporters := BuildReporters(ctx, cfg.Report, appName, logger)
	defer closeReporters()

	summary, runErr := Execute(ctx, logger, store, reporter, clock.System{}, cfg, kind)
	return ExitCode(summary, runErr, cfg.Reconcile.FailOnEntityErrors)
}

// Execute runs one pass of kind against store and hands the summary to
// reporter. Reporter errors are logged, never returned.
func Execute(
	ctx context.Context,
	logger *slog.Logger,
	store docstore.Store,
	reporter report.Reporter,
	clk clock.Clock,
	cfg *config.Config,
	kind domain.JobKind,
) (domain.RunSummary, error) {
	job, err := NewJob(kind, cfg, logger, store)
	if err != nil {
		return domain.RunSummary{}, err
	}

	driver := reconcile.NewDriver(logger, store, clk, DriverOptions(cfg.Reconcile))
	summary, runErr := driver.Run(ctx, job, clk.Now())

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	if err := reporter.Report(reportCtx, summary); err != nil {
		logger.Warn("report run summary", slog.String("error", err.Error()))
	}

	return summary, runErr
}

// NewJob builds the job of kind.
func NewJob(kind domain.JobKind, cfg *config.Config, logger *slog.Logger, store docstore.Store) (reconcile.Job, error) {
	switch kind {
	case domain.JobKindStreak:
		return streak.New(logger, store, streak.Config{
			Location:        cfg.Streak.Location,
			GraceCutoff:     cfg.Streak.GraceCutoff,
			PerUserTimezone: cfg.Streak.PerUserTimezone,
		}), nil
	case domain.JobKindQuest:
		return quest.New(logger, store), nil
	default:
		return nil, fmt.Errorf("unknown job %q: %w", kind, domain.ErrValidation)
	}
}

// DriverOptions maps configuration onto driver options.
func DriverOptions(cfg config.ReconcileConfig) reconcile.Options {
	return reconcile.Options{
		Concurrency:    cfg.Concurrency,
		PageSize:       cfg.PageSize,
		MaxAttempts:    cfg.MaxAttempts,
		MaxDuration:    cfg.MaxDuration,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		DryRun:         cfg.DryRun,
	}
}

// ExitCode maps a run outcome onto the scheduler contract: fatal errors and
// failed scans exit 1, an expired budget exits 0 so the next invocation
// picks up the rest, and per-entity failures exit 1 only when configured.
func ExitCode(summary domain.RunSummary, runErr error, failOnEntityErrors bool) int {
	switch {
	case runErr != nil:
		return ExitError
	case failOnEntityErrors && summary.Failed() > 0:
		return ExitError
	default:
		return ExitOK
	}
}
