package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityFailure records an entity whose reconciliation did not complete.
type EntityFailure struct {
	ID       string `json:"id"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// RunSummary is the in-memory record of one reconciliation run.
// It is never persisted by the reconciler itself; reporters may publish it.
type RunSummary struct {
	RunID      uuid.UUID       `json:"run_id"`
	Job        JobKind         `json:"job"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Now        time.Time       `json:"now"`
	DryRun     bool            `json:"dry_run"`
	Scanned    int             `json:"scanned"`
	Mutated    int             `json:"mutated"`
	Skipped    int             `json:"skipped"`
	Failures   []EntityFailure `json:"failures,omitempty"`
	// Partial is set when the duration budget expired before the scan finished.
	Partial bool `json:"partial"`
	// Aborted holds the fatal error message that stopped the run, if any.
	Aborted string `json:"aborted,omitempty"`
}

// Duration returns the wall-clock time the run took.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Failed returns the number of entities that ended in failure.
func (s RunSummary) Failed() int { return len(s.Failures) }

// Unchanged returns the number of scanned entities that needed no write.
func (s RunSummary) Unchanged() int {
	n := s.Scanned - s.Mutated - s.Skipped - len(s.Failures)
	if n < 0 {
		return 0
	}
	return n
}

// Complete reports whether every entity of the target collection was visited
// and the run was not aborted.
func (s RunSummary) Complete() bool {
	return !s.Partial && s.Aborted == ""
}
