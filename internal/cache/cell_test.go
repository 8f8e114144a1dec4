package cache

import (
	"testing"
	"time"
)

// fakeClock is a settable millisecond clock.
type fakeClock struct{ ms uint64 }

func (c *fakeClock) Now() uint64             { return c.ms }
func (c *fakeClock) Advance(d time.Duration) { c.ms += uint64(d.Milliseconds()) }

func TestCellNeedsFetch(t *testing.T) {
	clock := &fakeClock{ms: 1_000_000}
	cell := NewCell[string](5*time.Second, clock.Now)

	if !cell.NeedsFetch() {
		t.Error("NeedsFetch() on a new cell = false, want true")
	}

	cell.Cache("up")
	if cell.NeedsFetch() {
		t.Error("NeedsFetch() right after Cache = true, want false")
	}

	clock.Advance(5 * time.Second)
	if cell.NeedsFetch() {
		t.Error("NeedsFetch() exactly at the TTL = true, want false")
	}

	clock.Advance(time.Millisecond)
	if !cell.NeedsFetch() {
		t.Error("NeedsFetch() past the TTL = false, want true")
	}
}

func TestCellFreshWithEarlyClock(t *testing.T) {
	// A clock still inside the first TTL window must not hide an empty cell.
	clock := &fakeClock{ms: 10}
	cell := NewCell[int](time.Minute, clock.Now)
	if !cell.NeedsFetch() {
		t.Error("NeedsFetch() on a new cell = false, want true")
	}
}

func TestCellGetAndTiming(t *testing.T) {
	clock := &fakeClock{ms: 42_000}
	cell := NewCell[[]string](time.Second, clock.Now)

	if got := cell.Get(); got != nil {
		t.Errorf("Get() before Cache = %v, want nil", got)
	}
	if got := cell.GetTiming(); got != 0 {
		t.Errorf("GetTiming() before Cache = %d, want 0", got)
	}
	if got := cell.Age(); got != 0 {
		t.Errorf("Age() before Cache = %v, want 0", got)
	}

	cell.Cache([]string{"10.0.0.2"})
	clock.Advance(300 * time.Millisecond)

	if got := cell.Get(); len(got) != 1 || got[0] != "10.0.0.2" {
		t.Errorf("Get() = %v, want [10.0.0.2]", got)
	}
	if got := cell.GetTiming(); got != 42_000 {
		t.Errorf("GetTiming() = %d, want 42000", got)
	}
	if got := cell.Age(); got != 300*time.Millisecond {
		t.Errorf("Age() = %v, want 300ms", got)
	}
	if got := cell.TTL(); got != time.Second {
		t.Errorf("TTL() = %v, want 1s", got)
	}
}

func TestCellGetIgnoresStaleness(t *testing.T) {
	clock := &fakeClock{ms: 1}
	cell := NewCell[int](time.Millisecond, clock.Now)
	cell.Cache(7)
	clock.Advance(time.Hour)

	if !cell.NeedsFetch() {
		t.Fatal("NeedsFetch() = false, want true")
	}
	if got := cell.Get(); got != 7 {
		t.Errorf("Get() on a stale cell = %d, want 7", got)
	}
}
