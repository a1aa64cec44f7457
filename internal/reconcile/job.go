// Package reconcile runs idempotent batch jobs that scan a document
// collection, evaluate a predicate per entity and apply conditional writes.
package reconcile

import (
	"context"
	"time"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// Job is one reconciliation job executed by the Driver.
//
// ShouldAct and Act must only depend on the entity's own data and now, and
// Act must be a conditional write so that overlapping runs cannot clobber
// each other or concurrent collaborators.
type Job interface {
	Kind() domain.JobKind
	// Query returns the scan over the target collection. The Driver sets
	// the cursor and page size.
	Query(now time.Time) docstore.Query
	ShouldAct(ctx context.Context, doc docstore.Document, now time.Time) (bool, error)
	Act(ctx context.Context, doc docstore.Document, now time.Time) error
}
