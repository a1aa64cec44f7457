package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

func TestMapError_Nil(t *testing.T) {
	t.Parallel()

	if got := mapError(nil, "users", "u1"); got != nil {
		t.Errorf("mapError(nil) = %v, want nil", got)
	}
}

func TestMapError_NoDocuments(t *testing.T) {
	t.Parallel()

	got := mapError(fmt.Errorf("find one: %w", mongo.ErrNoDocuments), "users", "u1")

	if !errors.Is(got, domain.ErrNotFound) {
		t.Errorf("mapError(ErrNoDocuments) does not wrap domain.ErrNotFound: %v", got)
	}
	if want := "users u1: not found"; got.Error() != want {
		t.Errorf("mapError(ErrNoDocuments).Error() = %q, want %q", got.Error(), want)
	}
}

func TestMapError_ServerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		transient bool
		fatal     bool
	}{
		{name: "unauthorized", err: mongo.CommandError{Code: 13, Message: "not authorized"}, fatal: true},
		{name: "auth failed", err: mongo.CommandError{Code: 18, Message: "authentication failed"}, fatal: true},
		{name: "stepdown", err: mongo.CommandError{Code: 189, Message: "primary stepped down"}, transient: true},
		{name: "not primary", err: mongo.CommandError{Code: 10107, Message: "not primary"}, transient: true},
		{name: "retryable label", err: mongo.CommandError{Code: 1, Labels: []string{"RetryableWriteError"}}, transient: true},
		{name: "network label", err: mongo.CommandError{Labels: []string{"NetworkError"}}, transient: true},
		{name: "duplicate key", err: mongo.CommandError{Code: 11000, Message: "duplicate key"}},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := mapError(tt.err, "quests", "q1")

			if docstore.IsTransient(got) != tt.transient {
				t.Errorf("IsTransient = %v, want %v (%v)", docstore.IsTransient(got), tt.transient, got)
			}
			if docstore.IsFatal(got) != tt.fatal {
				t.Errorf("IsFatal = %v, want %v (%v)", docstore.IsFatal(got), tt.fatal, got)
			}
			if !strings.Contains(got.Error(), tt.err.Error()) {
				t.Errorf("mapError lost the original message: %v", got)
			}
		})
	}
}

func TestMapError_ContextPassesThrough(t *testing.T) {
	t.Parallel()

	got := mapError(context.Canceled, "users", "")

	if !errors.Is(got, context.Canceled) {
		t.Errorf("mapError(context.Canceled) = %v, want context.Canceled", got)
	}
	if docstore.IsTransient(got) {
		t.Errorf("cancellation must not be retried: %v", got)
	}
}

func TestMapError_NoLocation(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	if got := mapError(inner, "", ""); got != inner {
		t.Errorf("mapError without location = %v, want the error unchanged", got)
	}
}
