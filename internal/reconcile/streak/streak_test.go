package streak

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/questline-reconciler/internal/adapter/memory"
	"github.com/heartmarshall/questline-reconciler/internal/clock"
	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
	"github.com/heartmarshall/questline-reconciler/internal/reconcile"
)

var (
	today     = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	lateToday = today.Add(23 * time.Hour)
)

func userRef(id string) docstore.Ref {
	return docstore.Ref{Collection: CollectionUsers, ID: id}
}

func putUser(s *memory.Store, id string, streak int, activities ...time.Time) {
	s.Put(CollectionUsers, id, map[string]any{FieldStreakCount: streak})
	for i, completedAt := range activities {
		s.PutSub(userRef(id), SubcollectionActivities, id+"-a"+string(rune('0'+i)), map[string]any{
			FieldCompletedAt: completedAt,
		})
	}
}

func streakOf(t *testing.T, s docstore.Store, id string) int64 {
	t.Helper()
	doc, err := s.Get(context.Background(), CollectionUsers, id)
	require.NoError(t, err)
	n, ok := doc.Int(FieldStreakCount)
	require.True(t, ok)
	return n
}

func newRun(t *testing.T, s docstore.Store, cfg Config, opts reconcile.Options) func(now time.Time) domain.RunSummary {
	t.Helper()
	opts.InitialBackoff = time.Millisecond
	d := reconcile.NewDriver(slog.Default(), s, clock.Fixed(lateToday), opts)
	job := New(slog.Default(), s, cfg)
	return func(now time.Time) domain.RunSummary {
		summary, err := d.Run(context.Background(), job, now)
		require.NoError(t, err)
		return summary
	}
}

func defaultConfig() Config {
	return Config{Location: time.UTC, GraceCutoff: 12 * time.Hour}
}

func TestReconciler_LapsedStreakIsReset(t *testing.T) {
	t.Parallel()

	s := memory.New()
	// Last completion yesterday, nothing today.
	putUser(s, "a", 5, today.Add(-24*time.Hour+10*time.Hour))

	summary := newRun(t, s, defaultConfig(), reconcile.Options{})(lateToday)

	assert.EqualValues(t, 0, streakOf(t, s, "a"))
	assert.Equal(t, 1, summary.Mutated)
}

func TestReconciler_ActiveTodayIsUnchanged(t *testing.T) {
	t.Parallel()

	s := memory.New()
	putUser(s, "b", 5, today.Add(-30*time.Hour), today.Add(9*time.Hour))

	summary := newRun(t, s, defaultConfig(), reconcile.Options{})(lateToday)

	assert.EqualValues(t, 5, streakOf(t, s, "b"))
	assert.Equal(t, 1, summary.Scanned)
	assert.Equal(t, 1, summary.Unchanged())
}

func TestReconciler_Population(t *testing.T) {
	t.Parallel()

	s := memory.New()
	putUser(s, "no-activity", 3)
	putUser(s, "today", 7, today.Add(time.Hour))
	putUser(s, "yesterday", 2, today.Add(-time.Hour))
	putUser(s, "stale", 9, today.Add(-72*time.Hour))
	putUser(s, "zero", 0)
	putUser(s, "zero-stale", 0, today.Add(-72*time.Hour))

	early := today.Add(8 * time.Hour)
	run := newRun(t, s, defaultConfig(), reconcile.Options{PageSize: 2, Concurrency: 3})

	summary := run(early)
	assert.Equal(t, 4, summary.Scanned, "users at zero are not scanned")
	assert.Equal(t, 2, summary.Mutated)
	assert.EqualValues(t, 0, streakOf(t, s, "no-activity"))
	assert.EqualValues(t, 7, streakOf(t, s, "today"))
	assert.EqualValues(t, 2, streakOf(t, s, "yesterday"), "yesterday's completion is kept before the cutoff")
	assert.EqualValues(t, 0, streakOf(t, s, "stale"))

	summary = run(lateToday)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 1, summary.Mutated)
	assert.EqualValues(t, 0, streakOf(t, s, "yesterday"))
	assert.EqualValues(t, 7, streakOf(t, s, "today"))
}

func TestReconciler_Idempotent(t *testing.T) {
	t.Parallel()

	seed := func() *memory.Store {
		s := memory.New()
		putUser(s, "u1", 4)
		putUser(s, "u2", 6, today.Add(2*time.Hour))
		putUser(s, "u3", 1, today.Add(-5*time.Hour))
		putUser(s, "u4", 8, today.Add(-50*time.Hour))
		return s
	}

	twice := seed()
	run := newRun(t, twice, defaultConfig(), reconcile.Options{})
	run(today.Add(10 * time.Hour))
	run(lateToday)

	once := seed()
	newRun(t, once, defaultConfig(), reconcile.Options{})(lateToday)

	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		assert.Equal(t, streakOf(t, once, id), streakOf(t, twice, id), id)
	}

	again := newRun(t, twice, defaultConfig(), reconcile.Options{})(lateToday)
	assert.Zero(t, again.Mutated, "a repeated run finds nothing to do")
}

func TestReconciler_OverlappingRunsConverge(t *testing.T) {
	t.Parallel()

	s := memory.New()
	for i := 0; i < 40; i++ {
		id := string(rune('A'+i/10)) + string(rune('0'+i%10))
		switch i % 3 {
		case 0:
			putUser(s, id, i+1)
		case 1:
			putUser(s, id, i+1, today.Add(time.Hour))
		default:
			putUser(s, id, i+1, today.Add(-40*time.Hour))
		}
	}

	var g errgroup.Group
	summaries := make([]domain.RunSummary, 3)
	for i := range summaries {
		d := reconcile.NewDriver(slog.Default(), s, clock.System{}, reconcile.Options{
			Concurrency:    4,
			PageSize:       7,
			InitialBackoff: time.Millisecond,
		})
		job := New(slog.Default(), s, defaultConfig())
		g.Go(func() error {
			var err error
			summaries[i], err = d.Run(context.Background(), job, lateToday)
			return err
		})
	}
	require.NoError(t, g.Wait())

	for id, doc := range s.Snapshot(CollectionUsers) {
		n, _ := doc.Int(FieldStreakCount)
		acts, err := s.Subcollection(context.Background(), userRef(id), SubcollectionActivities,
			docstore.OrderBy{Field: FieldCompletedAt, Desc: true}, 1)
		require.NoError(t, err)
		if len(acts) == 1 && acts[0].Fields[FieldCompletedAt].(time.Time).Equal(today.Add(time.Hour)) {
			assert.Positive(t, n, id)
		} else {
			assert.Zero(t, n, id)
		}
		// Each reset bumps the version once; no run applied it twice.
		if n == 0 {
			assert.EqualValues(t, 2, doc.Version, id)
		}
	}

	var mutated int
	for _, sm := range summaries {
		mutated += sm.Mutated
		assert.Empty(t, sm.Failures)
	}
	assert.Equal(t, 27, mutated, "every lapsed streak is reset by exactly one run")
}

// racingStore bumps a user's streak between the predicate read and the
// conditional write, the way a collaborator recording a completion would.
type racingStore struct {
	*memory.Store
	once sync.Once
}

func (r *racingStore) Subcollection(ctx context.Context, parent docstore.Ref, name string, order docstore.OrderBy, limit int) ([]docstore.Document, error) {
	docs, err := r.Store.Subcollection(ctx, parent, name, order, limit)
	r.once.Do(func() {
		r.Store.PutSub(parent, name, "fresh", map[string]any{FieldCompletedAt: lateToday})
		r.Store.Put(CollectionUsers, parent.ID, map[string]any{FieldStreakCount: 6})
	})
	return docs, err
}

func TestReconciler_ConcurrentCompletionWins(t *testing.T) {
	t.Parallel()

	s := &racingStore{Store: memory.New()}
	putUser(s.Store, "a", 5, today.Add(-30*time.Hour))

	summary := newRun(t, s, defaultConfig(), reconcile.Options{})(lateToday)

	assert.EqualValues(t, 6, streakOf(t, s, "a"))
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Mutated)
}

func TestReconciler_PerUserTimezone(t *testing.T) {
	t.Parallel()

	if _, err := time.LoadLocation("Asia/Tokyo"); err != nil {
		t.Skip("tzdata not available")
	}

	s := memory.New()
	// 10:00 UTC on the 10th; at 16:00 UTC it is already the 11th in Tokyo.
	s.Put(CollectionUsers, "tokyo", map[string]any{FieldStreakCount: 3, FieldTimezone: "Asia/Tokyo"})
	s.PutSub(userRef("tokyo"), SubcollectionActivities, "a1", map[string]any{FieldCompletedAt: today.Add(10 * time.Hour)})
	s.Put(CollectionUsers, "plain", map[string]any{FieldStreakCount: 3})
	s.PutSub(userRef("plain"), SubcollectionActivities, "a1", map[string]any{FieldCompletedAt: today.Add(10 * time.Hour)})

	now := today.Add(16 * time.Hour)
	cfg := Config{Location: time.UTC, GraceCutoff: 0}

	newRun(t, s, cfg, reconcile.Options{})(now)
	assert.EqualValues(t, 3, streakOf(t, s, "tokyo"), "canonical zone ignores the user's zone")

	cfg.PerUserTimezone = true
	newRun(t, s, cfg, reconcile.Options{})(now)
	assert.EqualValues(t, 0, streakOf(t, s, "tokyo"))
	assert.EqualValues(t, 3, streakOf(t, s, "plain"), "users without a zone fall back to the canonical one")
}

func TestReconciler_ShouldAct(t *testing.T) {
	t.Parallel()

	s := memory.New()
	putUser(s, "a", 5)
	r := New(slog.Default(), s, Config{})

	act, err := r.ShouldAct(context.Background(), docstore.Document{ID: "z", Fields: map[string]any{FieldStreakCount: int64(0)}}, lateToday)
	require.NoError(t, err)
	assert.False(t, act, "a zero streak never acts")

	_, err = r.ShouldAct(context.Background(), docstore.Document{ID: "bad", Fields: map[string]any{FieldStreakCount: "five"}}, lateToday)
	assert.ErrorIs(t, err, domain.ErrValidation)

	doc, err := s.Get(context.Background(), CollectionUsers, "a")
	require.NoError(t, err)
	act, err = r.ShouldAct(context.Background(), doc, lateToday)
	require.NoError(t, err)
	assert.True(t, act)
}

func TestReconciler_ShouldAct_MalformedActivity(t *testing.T) {
	t.Parallel()

	s := memory.New()
	s.Put(CollectionUsers, "a", map[string]any{FieldStreakCount: 2})
	s.PutSub(userRef("a"), SubcollectionActivities, "x", map[string]any{FieldCompletedAt: "not a time"})

	summary := newRun(t, s, defaultConfig(), reconcile.Options{})(lateToday)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "a", summary.Failures[0].ID)
	assert.EqualValues(t, 2, streakOf(t, s, "a"))
}

func TestReconciler_Act_StaleDocument(t *testing.T) {
	t.Parallel()

	s := memory.New()
	stale := s.Put(CollectionUsers, "a", map[string]any{FieldStreakCount: 5})
	s.Put(CollectionUsers, "a", map[string]any{FieldStreakCount: 5})

	err := New(slog.Default(), s, Config{}).Act(context.Background(), stale, lateToday)
	assert.True(t, errors.Is(err, docstore.ErrPreconditionFailed))
	assert.EqualValues(t, 5, streakOf(t, s, "a"))
}

func TestReconciler_Query(t *testing.T) {
	t.Parallel()

	q := New(slog.Default(), memory.New(), Config{}).Query(lateToday)
	assert.Equal(t, CollectionUsers, q.Collection)
	require.Len(t, q.Filter, 1)
	assert.Equal(t, docstore.OpGt, q.Filter[0].Op)
	assert.Empty(t, q.OrderBy.Field)
}

func TestDecodeUser(t *testing.T) {
	t.Parallel()

	u, err := DecodeUser(docstore.Document{ID: "u", Version: 3, Fields: map[string]any{
		FieldStreakCount: float64(4),
		FieldTimezone:    "Europe/Berlin",
	}})
	require.NoError(t, err)
	assert.Equal(t, domain.User{ID: "u", StreakCount: 4, Timezone: "Europe/Berlin", Version: 3}, u)

	u, err = DecodeUser(docstore.Document{ID: "empty"})
	require.NoError(t, err)
	assert.Zero(t, u.StreakCount)

	_, err = DecodeUser(docstore.Document{ID: "neg", Fields: map[string]any{FieldStreakCount: -1}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = DecodeUser(docstore.Document{ID: "tz", Fields: map[string]any{FieldTimezone: 5}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
