package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

func seedQuests(s *Store, n int, now time.Time) {
	for i := 0; i < n; i++ {
		s.Put("quests", fmt.Sprintf("q%03d", i), map[string]any{
			"status":   "active",
			"end_date": now.Add(time.Duration(i-n/2) * time.Hour),
		})
	}
}

func collectIDs(t *testing.T, s *Store, q docstore.Query, between func(page int)) []string {
	t.Helper()
	ctx := context.Background()

	var ids []string
	for page := 0; ; page++ {
		p, err := s.Query(ctx, q)
		require.NoError(t, err)
		for _, d := range p.Documents {
			ids = append(ids, d.ID)
		}
		if p.NextCursor == "" {
			return ids
		}
		if between != nil {
			between(page)
		}
		q.Cursor = p.NextCursor
	}
}

func TestStore_Query_PaginatesByID(t *testing.T) {
	t.Parallel()

	s := New()
	now := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	seedQuests(s, 25, now)

	ids := collectIDs(t, s, docstore.Query{Collection: "quests", PageSize: 10}, nil)
	require.Len(t, ids, 25)
	assert.Equal(t, "q000", ids[0])
	assert.Equal(t, "q024", ids[24])
}

func TestStore_Query_FilterAndOrder(t *testing.T) {
	t.Parallel()

	s := New()
	now := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	seedQuests(s, 10, now)
	s.Put("quests", "q100", map[string]any{"status": "completed", "end_date": now.Add(-48 * time.Hour)})

	ids := collectIDs(t, s, docstore.Query{
		Collection: "quests",
		Filter: []docstore.Condition{
			docstore.Where("status", docstore.OpEq, "active"),
			docstore.Where("end_date", docstore.OpLt, now),
		},
		OrderBy:  docstore.OrderBy{Field: "end_date", Desc: true, Type: docstore.KindTime},
		PageSize: 2,
	}, nil)

	assert.Equal(t, []string{"q004", "q003", "q002", "q001", "q000"}, ids)
}

func TestStore_Query_StableUnderConcurrentMutation(t *testing.T) {
	t.Parallel()

	s := New()
	now := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	seedQuests(s, 30, now)

	ids := collectIDs(t, s, docstore.Query{Collection: "quests", PageSize: 10}, func(page int) {
		// Remove an already-visited document and insert one before the cursor;
		// neither may shift the remaining pages.
		s.Delete("quests", fmt.Sprintf("q%03d", page))
		s.Put("quests", fmt.Sprintf("q%03d-a", page), map[string]any{"status": "active"})
	})

	seen := make(map[string]int)
	for _, id := range ids {
		seen[id]++
	}
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("q%03d", i)
		assert.Equal(t, 1, seen[id], "document %s visited %d times", id, seen[id])
	}
}

func TestStore_Query_InvalidCursor(t *testing.T) {
	t.Parallel()

	_, err := New().Query(context.Background(), docstore.Query{Collection: "quests", Cursor: "%%%"})
	assert.True(t, errors.Is(err, docstore.ErrInvalidCursor))
}

func TestStore_Query_Validation(t *testing.T) {
	t.Parallel()

	_, err := New().Query(context.Background(), docstore.Query{})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestStore_Get(t *testing.T) {
	t.Parallel()

	s := New()
	s.Put("users", "u1", map[string]any{"streak_count": 3})

	doc, err := s.Get(context.Background(), "users", "u1")
	require.NoError(t, err)
	n, ok := doc.Int("streak_count")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(1), doc.Version)

	_, err = s.Get(context.Background(), "users", "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_Subcollection_LatestFirst(t *testing.T) {
	t.Parallel()

	s := New()
	parent := docstore.Ref{Collection: "users", ID: "u1"}
	base := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.PutSub(parent, "completed_activities", fmt.Sprintf("a%d", i), map[string]any{
			"completed_at": base.Add(time.Duration(i) * time.Hour),
		})
	}
	s.PutSub(parent, "completed_activities", "undated", map[string]any{"kind": "legacy"})
	s.PutSub(docstore.Ref{Collection: "users", ID: "u2"}, "completed_activities", "other", map[string]any{
		"completed_at": base.Add(100 * time.Hour),
	})

	docs, err := s.Subcollection(context.Background(), parent, "completed_activities",
		docstore.OrderBy{Field: "completed_at", Desc: true, Type: docstore.KindTime}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a4", docs[0].ID)

	docs, err = s.Subcollection(context.Background(), docstore.Ref{Collection: "users", ID: "u3"}, "completed_activities", docstore.ByID(), 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStore_ConditionalUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	s.Put("quests", "q1", map[string]any{"status": "active"})

	err := s.ConditionalUpdate(ctx, "quests", "q1",
		docstore.Expect{Fields: map[string]any{"status": "active"}},
		map[string]any{"status": "expired"})
	require.NoError(t, err)

	doc, err := s.Get(ctx, "quests", "q1")
	require.NoError(t, err)
	assert.Equal(t, "expired", doc.Fields["status"])
	assert.Equal(t, int64(2), doc.Version)

	err = s.ConditionalUpdate(ctx, "quests", "q1",
		docstore.Expect{Fields: map[string]any{"status": "active"}},
		map[string]any{"status": "expired"})
	assert.True(t, errors.Is(err, docstore.ErrPreconditionFailed))

	err = s.ConditionalUpdate(ctx, "quests", "q1", docstore.ExpectVersion(1), map[string]any{"status": "active"})
	assert.True(t, errors.Is(err, docstore.ErrPreconditionFailed))

	err = s.ConditionalUpdate(ctx, "quests", "missing", docstore.Expect{}, map[string]any{"status": "expired"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Get(ctx, "users", "u1")
	assert.True(t, errors.Is(err, context.Canceled))
}
