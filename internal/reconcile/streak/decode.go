package streak

import (
	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// DecodeUser maps a user document to domain.User. A missing streak counter
// reads as zero; a malformed one is a validation error.
func DecodeUser(doc docstore.Document) (domain.User, error) {
	u := domain.User{ID: doc.ID, Version: doc.Version}

	if _, present := doc.Value(FieldStreakCount); present {
		n, ok := doc.Int(FieldStreakCount)
		if !ok {
			return domain.User{}, domain.NewValidationError(FieldStreakCount, "must be an integer")
		}
		if n < 0 {
			return domain.User{}, domain.NewValidationError(FieldStreakCount, "must not be negative")
		}
		u.StreakCount = n
	}

	if tz, present := doc.Value(FieldTimezone); present {
		s, ok := tz.(string)
		if !ok {
			return domain.User{}, domain.NewValidationError(FieldTimezone, "must be a string")
		}
		u.Timezone = s
	}

	return u, nil
}

// DecodeActivity maps a completed activity document.
func DecodeActivity(doc docstore.Document) (domain.CompletedActivity, error) {
	at, ok := doc.Time(FieldCompletedAt)
	if !ok {
		return domain.CompletedActivity{}, domain.NewValidationError(FieldCompletedAt, "must be a timestamp")
	}
	return domain.CompletedActivity{ID: doc.ID, CompletedAt: at}, nil
}
