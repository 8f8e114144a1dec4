// Package cache holds single values that go stale after a fixed time-to-live.
//
// Cells never refresh themselves. A consumer asks NeedsFetch, does the
// expensive work on a miss and stores the result with Cache. Cells are not
// synchronized; the owner serializes access.
package cache

import "time"

// Clock returns the current time in milliseconds since the Unix epoch.
type Clock func() uint64

// SystemClock reads the wall clock.
func SystemClock() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Cell stores one value of type T and the time it was last stored.
type Cell[T any] struct {
	value         T
	lastFetchedMS uint64
	ttlMS         uint64
	now           Clock
}

// NewCell creates an empty cell with the given time-to-live.
func NewCell[T any](ttl time.Duration, now Clock) *Cell[T] {
	if now == nil {
		now = SystemClock
	}
	return &Cell[T]{ttlMS: uint64(ttl.Milliseconds()), now: now}
}

// NeedsFetch reports whether the stored value is older than the TTL. A cell
// that has never been filled always needs a fetch.
func (c *Cell[T]) NeedsFetch() bool {
	if c.lastFetchedMS == 0 {
		return true
	}
	return c.now()-c.lastFetchedMS > c.ttlMS
}

// Cache stores v and stamps the fetch time.
func (c *Cell[T]) Cache(v T) T {
	c.value = v
	c.lastFetchedMS = c.now()
	return v
}

// Get returns the stored value, or the zero value before the first Cache.
func (c *Cell[T]) Get() T {
	return c.value
}

// GetTiming returns the millisecond timestamp of the last Cache call, or 0.
func (c *Cell[T]) GetTiming() uint64 {
	return c.lastFetchedMS
}

// TTL returns the cell's time-to-live.
func (c *Cell[T]) TTL() time.Duration {
	return time.Duration(c.ttlMS) * time.Millisecond
}

// Age returns how long ago the value was stored. It is zero for an empty cell.
func (c *Cell[T]) Age() time.Duration {
	if c.lastFetchedMS == 0 {
		return 0
	}
	now := c.now()
	if now < c.lastFetchedMS {
		return 0
	}
	return time.Duration(now-c.lastFetchedMS) * time.Millisecond
}
