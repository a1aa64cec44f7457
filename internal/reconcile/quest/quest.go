// Package quest expires active quests whose end date has passed.
package quest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
	"github.com/heartmarshall/questline-reconciler/internal/reconcile"
)

const (
	CollectionQuests = "quests"

	FieldStatus    = "status"
	FieldEndDate   = "end_date"
	FieldExpiredAt = "expired_at"
)

// Expirer is the quest expiry job.
type Expirer struct {
	store docstore.Store
	log   *slog.Logger
}

var _ reconcile.Job = (*Expirer)(nil)

// New creates a quest Expirer.
func New(log *slog.Logger, store docstore.Store) *Expirer {
	return &Expirer{
		store: store,
		log:   log,
	}
}

func (e *Expirer) Kind() domain.JobKind { return domain.JobKindQuest }

// Query selects active quests that ended before now.
func (e *Expirer) Query(now time.Time) docstore.Query {
	return docstore.Query{
		Collection: CollectionQuests,
		Filter: []docstore.Condition{
			docstore.Where(FieldStatus, docstore.OpEq, string(domain.QuestStatusActive)),
			docstore.Where(FieldEndDate, docstore.OpLt, now),
		},
		OrderBy: docstore.ByID(),
	}
}

// ShouldAct re-checks the query predicate on the fetched document.
func (e *Expirer) ShouldAct(_ context.Context, doc docstore.Document, now time.Time) (bool, error) {
	q, err := DecodeQuest(doc)
	if err != nil {
		return false, err
	}
	return q.IsOverdue(now), nil
}

// Act moves the quest to expired unless a collaborator already moved it out
// of active.
func (e *Expirer) Act(ctx context.Context, doc docstore.Document, now time.Time) error {
	expect := docstore.Expect{Fields: map[string]any{FieldStatus: string(domain.QuestStatusActive)}}

	err := e.store.ConditionalUpdate(ctx, CollectionQuests, doc.ID, expect, map[string]any{
		FieldStatus:    string(domain.QuestStatusExpired),
		FieldExpiredAt: now,
	})
	if err != nil {
		return fmt.Errorf("expire quest %s: %w", doc.ID, err)
	}

	e.log.InfoContext(ctx, "quest expired", slog.String("quest_id", doc.ID))
	return nil
}

// DecodeQuest maps a quest document to domain.Quest.
func DecodeQuest(doc docstore.Document) (domain.Quest, error) {
	status, ok := doc.String(FieldStatus)
	if !ok || status == "" {
		return domain.Quest{}, domain.NewValidationError(FieldStatus, "required")
	}
	end, ok := doc.Time(FieldEndDate)
	if !ok {
		return domain.Quest{}, domain.NewValidationError(FieldEndDate, "must be a timestamp")
	}
	return domain.Quest{
		ID:      doc.ID,
		EndDate: end,
		Status:  domain.QuestStatus(status),
		Version: doc.Version,
	}, nil
}
