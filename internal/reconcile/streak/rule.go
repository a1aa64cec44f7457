package streak

import "time"

// Lapsed decides whether a streak must be reset at now, given the instant of
// the most recent completed activity (nil when there is none).
//
// Calendar days are taken in loc. A completion today (or later, under clock
// skew) keeps the streak. A completion yesterday keeps it only while now is
// earlier on the local clock than graceCutoff; after the cutoff the day
// counts as missed. Anything older lapses.
func Lapsed(last *time.Time, now time.Time, loc *time.Location, graceCutoff time.Duration) bool {
	if last == nil {
		return true
	}

	switch days := DaysBetween(*last, now, loc); {
	case days <= 0:
		return false
	case days == 1:
		return clockTime(now, loc) >= graceCutoff
	default:
		return true
	}
}

// clockTime is the wall-clock time of day at t in loc. It differs from the
// time elapsed since midnight on days with a DST transition.
func clockTime(t time.Time, loc *time.Location) time.Duration {
	local := t.In(loc)
	h, m, sec := local.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(local.Nanosecond())
}
