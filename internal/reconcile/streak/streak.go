// Package streak resets the streak counter of users whose daily streak has
// lapsed.
package streak

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
	"github.com/heartmarshall/questline-reconciler/internal/reconcile"
)

// Collection and field names of the user documents.
const (
	CollectionUsers         = "users"
	SubcollectionActivities = "completed_activities"

	FieldStreakCount = "streak_count"
	FieldTimezone    = "timezone"
	FieldCompletedAt = "completed_at"
)

// Config controls how calendar days are computed.
type Config struct {
	// Location is the canonical zone for day boundaries. Nil means UTC.
	Location *time.Location
	// GraceCutoff is the time of day until which a completion yesterday
	// still keeps the streak alive.
	GraceCutoff time.Duration
	// PerUserTimezone evaluates each user in the zone stored on the user
	// document, falling back to Location.
	PerUserTimezone bool
}

// Reconciler is the streak reconciliation job.
type Reconciler struct {
	store docstore.Store
	cfg   Config
	log   *slog.Logger
}

var _ reconcile.Job = (*Reconciler)(nil)

// New creates a streak Reconciler.
func New(log *slog.Logger, store docstore.Store, cfg Config) *Reconciler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Reconciler{
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

func (r *Reconciler) Kind() domain.JobKind { return domain.JobKindStreak }

// Query selects users with a running streak. Users at zero never need a write.
func (r *Reconciler) Query(time.Time) docstore.Query {
	return docstore.Query{
		Collection: CollectionUsers,
		Filter:     []docstore.Condition{docstore.Where(FieldStreakCount, docstore.OpGt, 0)},
		OrderBy:    docstore.ByID(),
	}
}

// ShouldAct reports whether the user's streak has lapsed at now.
func (r *Reconciler) ShouldAct(ctx context.Context, doc docstore.Document, now time.Time) (bool, error) {
	user, err := DecodeUser(doc)
	if err != nil {
		return false, err
	}
	if user.StreakCount == 0 {
		return false, nil
	}

	last, err := r.lastActivity(ctx, user.ID)
	if err != nil {
		return false, err
	}

	return Lapsed(last, now, r.location(user), r.cfg.GraceCutoff), nil
}

// Act resets the streak, provided neither the document version nor the
// counter moved since it was read.
func (r *Reconciler) Act(ctx context.Context, doc docstore.Document, _ time.Time) error {
	user, err := DecodeUser(doc)
	if err != nil {
		return err
	}

	expect := docstore.ExpectVersion(user.Version)
	expect.Fields = map[string]any{FieldStreakCount: user.StreakCount}

	err = r.store.ConditionalUpdate(ctx, CollectionUsers, user.ID, expect, map[string]any{
		FieldStreakCount: 0,
	})
	if err != nil {
		return fmt.Errorf("reset streak of user %s: %w", user.ID, err)
	}

	r.log.InfoContext(ctx, "streak reset",
		slog.String("user_id", user.ID),
		slog.Int64("previous_streak", user.StreakCount),
	)
	return nil
}

// lastActivity returns the completion instant of the most recent activity,
// or nil when the user has none.
func (r *Reconciler) lastActivity(ctx context.Context, userID string) (*time.Time, error) {
	docs, err := r.store.Subcollection(ctx,
		docstore.Ref{Collection: CollectionUsers, ID: userID},
		SubcollectionActivities,
		docstore.OrderBy{Field: FieldCompletedAt, Desc: true, Type: docstore.KindTime},
		1,
	)
	if err != nil {
		return nil, fmt.Errorf("latest activity of user %s: %w", userID, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	activity, err := DecodeActivity(docs[0])
	if err != nil {
		return nil, fmt.Errorf("latest activity of user %s: %w", userID, err)
	}
	return &activity.CompletedAt, nil
}

func (r *Reconciler) location(u domain.User) *time.Location {
	if !r.cfg.PerUserTimezone {
		return r.cfg.Location
	}
	return ParseTimezone(u.Timezone, r.cfg.Location)
}
