// Package clock supplies the current instant to the reconciliation jobs.
// Jobs never read wall-clock time themselves; entry points take one reading
// and pass it down.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Sequence returns its instants in order and then keeps returning the last one.
type Sequence struct {
	mu    sync.Mutex
	times []time.Time
	next  int
}

// NewSequence creates a Sequence. It panics when no instants are given.
func NewSequence(times ...time.Time) *Sequence {
	if len(times) == 0 {
		panic("clock: empty sequence")
	}
	return &Sequence{times: times}
}

func (s *Sequence) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.times[s.next]
	if s.next < len(s.times)-1 {
		s.next++
	}
	return t
}
