package domain

import (
	"testing"
	"time"
)

func TestRunSummary_Counters(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	s := RunSummary{
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Scanned:    10,
		Mutated:    4,
		Skipped:    1,
		Failures:   []EntityFailure{{ID: "u1", Error: "boom", Attempts: 3}},
	}

	if got := s.Duration(); got != 1500*time.Millisecond {
		t.Errorf("Duration() = %v, want 1.5s", got)
	}
	if got := s.Failed(); got != 1 {
		t.Errorf("Failed() = %d, want 1", got)
	}
	if got := s.Unchanged(); got != 4 {
		t.Errorf("Unchanged() = %d, want 4", got)
	}
	if !s.Complete() {
		t.Error("Complete() = false, want true")
	}
}

func TestRunSummary_NotComplete(t *testing.T) {
	t.Parallel()

	if (RunSummary{Partial: true}).Complete() {
		t.Error("partial run reported complete")
	}
	if (RunSummary{Aborted: "permission denied"}).Complete() {
		t.Error("aborted run reported complete")
	}
	if got := (RunSummary{StartedAt: time.Now()}).Duration(); got != 0 {
		t.Errorf("unfinished Duration() = %v, want 0", got)
	}
}
