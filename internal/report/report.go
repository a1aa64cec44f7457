// Package report publishes reconciliation run summaries to monitoring sinks.
// The reconciler never persists summaries itself; every sink here is optional
// and a failing sink never changes the outcome of a run.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// Reporter publishes a finished run summary.
type Reporter interface {
	Report(ctx context.Context, summary domain.RunSummary) error
}

// Multi fans a summary out to every reporter, collecting all errors.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(ctx context.Context, summary domain.RunSummary) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", r, err))
		}
	}
	return errors.Join(errs...)
}
