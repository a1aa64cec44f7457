package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/questline-reconciler/internal/clock"
	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
	"github.com/heartmarshall/questline-reconciler/pkg/ctxutil"
)

// Driver pages through a job's target collection and reconciles every entity
// through a bounded worker pool. Per-entity failures are recorded in the run
// summary and never abort sibling work; only fatal store errors abort a run.
type Driver struct {
	store docstore.Store
	opts  Options
	clock clock.Clock
	log   *slog.Logger
}

// NewDriver creates a Driver. A nil clock falls back to the system clock;
// the clock only stamps run start and finish, predicates get now from Run.
func NewDriver(log *slog.Logger, store docstore.Store, clk clock.Clock, opts Options) *Driver {
	if clk == nil {
		clk = clock.System{}
	}
	return &Driver{
		store: store,
		opts:  opts.withDefaults(),
		clock: clk,
		log:   log.With("component", "reconcile"),
	}
}

// Options returns the effective options after defaults.
func (d *Driver) Options() Options { return d.opts }

// Run executes one pass of job at instant now.
//
// The returned summary is always populated, even together with an error.
// An expired duration budget is not an error: the summary is marked partial
// and the next scheduled invocation picks up the remaining entities.
// Errors are returned for fatal store errors, for page queries that keep
// failing, and for cancellation of ctx.
func (d *Driver) Run(ctx context.Context, job Job, now time.Time) (domain.RunSummary, error) {
	runID := uuid.New()
	ctx = ctxutil.WithRunID(ctx, runID)
	ctx = ctxutil.WithJob(ctx, job.Kind().String())

	// job and run_id reach log records through the context; see app.NewLogger.
	log := d.log

	t := &tally{summary: domain.RunSummary{
		RunID:     runID,
		Job:       job.Kind(),
		StartedAt: d.clock.Now(),
		Now:       now,
		DryRun:    d.opts.DryRun,
	}}

	log.InfoContext(ctx, "reconciliation started",
		slog.Time("now", now),
		slog.Int("concurrency", d.opts.Concurrency),
		slog.Int("page_size", d.opts.PageSize),
		slog.Bool("dry_run", d.opts.DryRun),
	)

	// dispatchCtx carries the duration budget and only gates new work;
	// workCtx is what in-flight entities run on, cancelled only by the
	// parent or by a fatal error.
	dispatchCtx, cancelDispatch := ctx, context.CancelFunc(func() {})
	if d.opts.MaxDuration > 0 {
		dispatchCtx, cancelDispatch = context.WithTimeout(ctx, d.opts.MaxDuration)
	}
	defer cancelDispatch()

	workCtx, cancelWork := context.WithCancelCause(ctx)
	defer cancelWork(nil)

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)

	scanErr := d.scan(dispatchCtx, workCtx, cancelWork, &g, job, now, t, log)
	_ = g.Wait()

	summary := t.finish(d.clock.Now())

	var runErr error
	switch {
	case t.fatal != nil:
		runErr = fmt.Errorf("%s: run aborted: %w", job.Kind(), t.fatal)
	case scanErr != nil:
		runErr = fmt.Errorf("%s: %w", job.Kind(), scanErr)
	case ctx.Err() != nil:
		runErr = fmt.Errorf("%s: run interrupted: %w", job.Kind(), ctx.Err())
	}
	if runErr != nil && summary.Aborted == "" {
		summary.Aborted = runErr.Error()
	}

	attrs := []any{
		slog.Int("scanned", summary.Scanned),
		slog.Int("mutated", summary.Mutated),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed()),
		slog.Bool("partial", summary.Partial),
		slog.Duration("duration", summary.Duration()),
	}
	switch {
	case runErr != nil:
		log.ErrorContext(ctx, "reconciliation aborted", append(attrs, slog.String("error", runErr.Error()))...)
	case summary.Failed() > 0 || summary.Partial:
		log.WarnContext(ctx, "reconciliation finished with gaps", attrs...)
	default:
		log.InfoContext(ctx, "reconciliation completed", attrs...)
	}

	return summary, runErr
}

// scan pages through the collection and dispatches entities until the
// collection is exhausted, the budget expires or the run is aborted.
func (d *Driver) scan(
	dispatchCtx, workCtx context.Context,
	abort context.CancelCauseFunc,
	g *errgroup.Group,
	job Job,
	now time.Time,
	t *tally,
	log *slog.Logger,
) error {
	q := job.Query(now)
	q.PageSize = d.opts.PageSize
	q.Cursor = ""

	for {
		if d.stopDispatch(dispatchCtx, workCtx, t) {
			return nil
		}

		var page docstore.Page
		_, err := d.retry(workCtx, func() error {
			var qErr error
			page, qErr = d.store.Query(workCtx, q)
			return qErr
		})
		if err != nil {
			if docstore.IsFatal(err) {
				t.abort(err)
				abort(err)
				return nil
			}
			if workCtx.Err() != nil {
				t.markPartial()
				return nil
			}
			return fmt.Errorf("query page of %s: %w", q.Collection, err)
		}

		log.DebugContext(workCtx, "page fetched",
			slog.Int("documents", len(page.Documents)),
			slog.Bool("last", page.NextCursor == ""),
		)

		for _, doc := range page.Documents {
			if d.stopDispatch(dispatchCtx, workCtx, t) {
				return nil
			}

			// g.Go blocks while the pool is full; the budget may expire or
			// an abort land meanwhile.
			g.Go(func() error {
				if d.stopDispatch(dispatchCtx, workCtx, t) {
					return nil
				}
				t.scanned()
				d.reconcileEntity(workCtx, abort, job, doc, now, t, log)
				return nil
			})
		}

		if page.NextCursor == "" {
			return nil
		}
		q.Cursor = page.NextCursor
	}
}

// stopDispatch reports whether no more entities may be dispatched, marking
// the summary partial when the scan is cut short.
func (d *Driver) stopDispatch(dispatchCtx, workCtx context.Context, t *tally) bool {
	if workCtx.Err() != nil || dispatchCtx.Err() != nil {
		t.markPartial()
		return true
	}
	return false
}

func (d *Driver) reconcileEntity(
	ctx context.Context,
	abort context.CancelCauseFunc,
	job Job,
	doc docstore.Document,
	now time.Time,
	t *tally,
	log *slog.Logger,
) {
	var act bool
	attempts, err := d.retry(ctx, func() error {
		var pErr error
		act, pErr = job.ShouldAct(ctx, doc, now)
		return pErr
	})
	if err != nil {
		d.settle(ctx, abort, doc.ID, attempts, err, t, log)
		return
	}
	if !act {
		t.record(domain.OutcomeUnchanged)
		return
	}

	if d.opts.DryRun {
		log.InfoContext(ctx, "dry run: would reconcile", slog.String("id", doc.ID))
		t.record(domain.OutcomeMutated)
		return
	}

	attempts, err = d.retry(ctx, func() error {
		return job.Act(ctx, doc, now)
	})
	if err != nil {
		d.settle(ctx, abort, doc.ID, attempts, err, t, log)
		return
	}

	log.DebugContext(ctx, "entity reconciled", slog.String("id", doc.ID))
	t.record(domain.OutcomeMutated)
}

// settle classifies a failed per-entity step.
func (d *Driver) settle(
	ctx context.Context,
	abort context.CancelCauseFunc,
	id string,
	attempts int,
	err error,
	t *tally,
	log *slog.Logger,
) {
	switch {
	case errors.Is(err, docstore.ErrPreconditionFailed):
		log.DebugContext(ctx, "concurrent write won, skipping", slog.String("id", id))
		t.record(domain.OutcomeSkipped)
	case errors.Is(err, domain.ErrNotFound):
		log.DebugContext(ctx, "entity gone, skipping", slog.String("id", id))
		t.record(domain.OutcomeSkipped)
	case docstore.IsFatal(err):
		t.abort(err)
		abort(err)
		t.fail(id, attempts, err)
	default:
		log.WarnContext(ctx, "entity reconciliation failed",
			slog.String("id", id),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		t.fail(id, attempts, err)
	}
}

// retry runs op until it succeeds, returns a non-transient error, or
// MaxAttempts is reached. It returns the number of attempts made.
func (d *Driver) retry(ctx context.Context, op func() error) (int, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.opts.InitialBackoff
	eb.MaxInterval = d.opts.MaxBackoff
	eb.MaxElapsedTime = 0
	eb.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(d.opts.MaxAttempts-1)), ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if docstore.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	return attempts, err
}

// tally aggregates outcomes from concurrent workers.
type tally struct {
	mu      sync.Mutex
	summary domain.RunSummary
	fatal   error
}

func (t *tally) scanned() {
	t.mu.Lock()
	t.summary.Scanned++
	t.mu.Unlock()
}

func (t *tally) record(o domain.EntityOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch o {
	case domain.OutcomeMutated:
		t.summary.Mutated++
	case domain.OutcomeSkipped:
		t.summary.Skipped++
	}
}

func (t *tally) fail(id string, attempts int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Failures = append(t.summary.Failures, domain.EntityFailure{
		ID:       id,
		Error:    err.Error(),
		Attempts: attempts,
	})
}

func (t *tally) markPartial() {
	t.mu.Lock()
	t.summary.Partial = true
	t.mu.Unlock()
}

func (t *tally) abort(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fatal == nil {
		t.fatal = err
		t.summary.Aborted = err.Error()
	}
}

func (t *tally) finish(at time.Time) domain.RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.FinishedAt = at
	out := t.summary
	out.Failures = append([]domain.EntityFailure(nil), t.summary.Failures...)
	return out
}
