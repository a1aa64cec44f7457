package domain

import "time"

// User is the slice of a user document the streak reconciler reads.
type User struct {
	ID          string
	StreakCount int64
	Timezone    string
	Version     int64
}

// CompletedActivity is one entry of a user's activity history.
type CompletedActivity struct {
	ID          string
	CompletedAt time.Time
}
