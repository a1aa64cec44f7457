package report

import (
	"context"
	"log/slog"

	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// maxLoggedFailures caps the per-entity failures written to the log.
const maxLoggedFailures = 20

// LogReporter writes the summary as structured log records.
type LogReporter struct {
	log *slog.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(log *slog.Logger) *LogReporter {
	return &LogReporter{log: log.With("component", "report")}
}

// Report implements Reporter.
func (r *LogReporter) Report(ctx context.Context, s domain.RunSummary) error {
	level := slog.LevelInfo
	if !s.Complete() || s.Failed() > 0 {
		level = slog.LevelWarn
	}

	r.log.Log(ctx, level, "run summary",
		slog.String("job", s.Job.String()),
		slog.String("run_id", s.RunID.String()),
		slog.Time("now", s.Now),
		slog.Bool("dry_run", s.DryRun),
		slog.Int("scanned", s.Scanned),
		slog.Int("mutated", s.Mutated),
		slog.Int("unchanged", s.Unchanged()),
		slog.Int("skipped", s.Skipped),
		slog.Int("failed", s.Failed()),
		slog.Bool("partial", s.Partial),
		slog.String("aborted", s.Aborted),
		slog.Duration("duration", s.Duration()),
	)

	for i, f := range s.Failures {
		if i == maxLoggedFailures {
			r.log.WarnContext(ctx, "more failures omitted",
				slog.String("run_id", s.RunID.String()),
				slog.Int("omitted", len(s.Failures)-maxLoggedFailures),
			)
			break
		}
		r.log.WarnContext(ctx, "entity failure",
			slog.String("run_id", s.RunID.String()),
			slog.String("id", f.ID),
			slog.Int("attempts", f.Attempts),
			slog.String("error", f.Error),
		)
	}
	return nil
}
