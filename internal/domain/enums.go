package domain

// QuestStatus represents the lifecycle state of a quest.
// Only active -> expired is driven by the reconciler; every other
// transition belongs to collaborators.
type QuestStatus string

const (
	QuestStatusActive    QuestStatus = "active"
	QuestStatusExpired   QuestStatus = "expired"
	QuestStatusCompleted QuestStatus = "completed"
)

func (s QuestStatus) String() string { return string(s) }

// IsTerminal reports whether the status is a sink for the reconciler.
// Unknown non-empty statuses are collaborator-owned and count as terminal.
func (s QuestStatus) IsTerminal() bool {
	return s != "" && s != QuestStatusActive
}

// JobKind identifies a reconciliation job.
type JobKind string

const (
	JobKindStreak JobKind = "streak_reconciler"
	JobKindQuest  JobKind = "quest_expirer"
)

func (k JobKind) String() string { return string(k) }

func (k JobKind) IsValid() bool {
	switch k {
	case JobKindStreak, JobKindQuest:
		return true
	}
	return false
}

// EntityOutcome is the result of processing a single entity in a run.
type EntityOutcome string

const (
	OutcomeUnchanged EntityOutcome = "unchanged"
	OutcomeMutated   EntityOutcome = "mutated"
	OutcomeSkipped   EntityOutcome = "skipped"
	OutcomeFailed    EntityOutcome = "failed"
)

func (o EntityOutcome) String() string { return string(o) }
