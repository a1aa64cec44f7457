package domain

import "time"

// Quest is a time-bounded task with a lifecycle status.
type Quest struct {
	ID      string
	EndDate time.Time
	Status  QuestStatus
	Version int64
}

// IsOverdue reports whether the quest is still active past its end date.
func (q Quest) IsOverdue(now time.Time) bool {
	return q.Status == QuestStatusActive && q.EndDate.Before(now)
}
