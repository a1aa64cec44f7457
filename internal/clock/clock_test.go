package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	c := Fixed(now)
	if !c.Now().Equal(now) || !c.Now().Equal(now) {
		t.Fatalf("Fixed clock moved: %v", c.Now())
	}
}

func TestSequence(t *testing.T) {
	t.Parallel()

	a := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)
	s := NewSequence(a, b)

	if got := s.Now(); !got.Equal(a) {
		t.Errorf("first = %v, want %v", got, a)
	}
	if got := s.Now(); !got.Equal(b) {
		t.Errorf("second = %v, want %v", got, b)
	}
	if got := s.Now(); !got.Equal(b) {
		t.Errorf("after exhaustion = %v, want %v", got, b)
	}
}

func TestSystem_IsUTC(t *testing.T) {
	t.Parallel()

	if loc := (System{}).Now().Location(); loc != time.UTC {
		t.Errorf("location = %v, want UTC", loc)
	}
}

func TestNewSequence_PanicsWhenEmpty(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewSequence()
}
