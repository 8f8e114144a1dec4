package cache

import (
	"fmt"
	"time"
)

// Entry is the type-independent view of a Cell.
type Entry interface {
	NeedsFetch() bool
	GetTiming() uint64
	TTL() time.Duration
	Age() time.Duration
}

// Info describes one registered cell.
type Info struct {
	Name          string `json:"name"`
	TTLMS         int64  `json:"ttl"`
	LastFetchedMS uint64 `json:"lastFetch"`
	AgeMS         int64  `json:"age"`
	Stale         bool   `json:"stale"`
}

// Registry is the set of named cells owned by one service. Cells share the
// registry's clock.
type Registry struct {
	now   Clock
	names []string
	cells map[string]Entry
}

// NewRegistry creates an empty registry. A nil clock uses SystemClock.
func NewRegistry(now Clock) *Registry {
	if now == nil {
		now = SystemClock
	}
	return &Registry{now: now, cells: make(map[string]Entry)}
}

// Register creates a cell under name. Registering the same name twice with
// the same type returns the existing cell; a different type panics.
func Register[T any](r *Registry, name string, ttl time.Duration) *Cell[T] {
	if existing, ok := r.cells[name]; ok {
		cell, ok := existing.(*Cell[T])
		if !ok {
			panic(fmt.Sprintf("cache: %q already registered with type %T", name, existing))
		}
		return cell
	}
	cell := NewCell[T](ttl, r.now)
	r.cells[name] = cell
	r.names = append(r.names, name)
	return cell
}

// Lookup returns the cell registered under name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.cells[name]
	return e, ok
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Describe reports the state of the cell registered under name.
func (r *Registry) Describe(name string) (Info, bool) {
	e, ok := r.cells[name]
	if !ok {
		return Info{}, false
	}
	return Info{
		Name:          name,
		TTLMS:         e.TTL().Milliseconds(),
		LastFetchedMS: e.GetTiming(),
		AgeMS:         e.Age().Milliseconds(),
		Stale:         e.NeedsFetch(),
	}, true
}

// Snapshot describes every cell in registration order.
func (r *Registry) Snapshot() []Info {
	infos := make([]Info, 0, len(r.names))
	for _, name := range r.names {
		info, _ := r.Describe(name)
		infos = append(infos, info)
	}
	return infos
}
