// Package views holds the state behind each screen: what was fetched, whether
// it is still loading, and the mutations a screen may trigger. Every view
// owns its own copy of fetched data and its own mutation coordinator.
package views

import (
	"context"
	"errors"
	"sync"

	"whispr/internal/notify"
)

// Status is the load state of a view.
type Status int

const (
	// Loading is the initial state until the first fetch settles.
	Loading Status = iota
	// Ready means the view shows its last good items, possibly none.
	Ready
)

func (s Status) String() string {
	if s == Ready {
		return "ready"
	}
	return "loading"
}

// ErrStale is returned by Load when a newer load, or Close, superseded it.
var ErrStale = errors.New("views: result superseded")

// ListView is an ordered collection fetched as a whole.
type ListView[T any] struct {
	fetch    func(context.Context) ([]T, error)
	id       func(T) string
	notifier notify.Notifier
	failure  notify.Toast

	mu         sync.Mutex
	status     Status
	items      []T
	refreshing bool
	gen        uint64
	closed     bool
}

// NewListView returns a view that loads with fetch and identifies items
// with id. failure is shown when a fetch fails.
func NewListView[T any](fetch func(context.Context) ([]T, error), id func(T) string, notifier notify.Notifier, failure notify.Toast) *ListView[T] {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &ListView[T]{fetch: fetch, id: id, notifier: notifier, failure: failure}
}

// Load fetches the collection. On failure the last good items are kept,
// the failure toast is shown and the view still becomes Ready.
func (v *ListView[T]) Load(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrStale
	}
	v.gen++
	gen := v.gen
	v.mu.Unlock()

	items, err := v.fetch(ctx)

	v.mu.Lock()
	if v.closed || gen != v.gen {
		v.mu.Unlock()
		return ErrStale
	}
	v.status = Ready
	if err == nil {
		if items == nil {
			items = []T{}
		}
		v.items = items
	}
	v.mu.Unlock()

	if err != nil {
		v.notifier.Notify(v.failure)
		return err
	}
	return nil
}

// Refresh reloads while Refreshing reports true.
func (v *ListView[T]) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.refreshing = true
	v.mu.Unlock()
	defer func() {
		v.mu.Lock()
		v.refreshing = false
		v.mu.Unlock()
	}()
	return v.Load(ctx)
}

// Remove drops the item with id without refetching. It reports whether
// anything was removed.
func (v *ListView[T]) Remove(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	kept := make([]T, 0, len(v.items))
	for _, item := range v.items {
		if v.id(item) != id {
			kept = append(kept, item)
		}
	}
	removed := len(kept) != len(v.items)
	if removed {
		v.items = kept
	}
	return removed
}

// Find returns the item with id.
func (v *ListView[T]) Find(id string) (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, item := range v.items {
		if v.id(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Items returns a copy of the current items.
func (v *ListView[T]) Items() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]T, len(v.items))
	copy(out, v.items)
	return out
}

// Len returns the number of items.
func (v *ListView[T]) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.items)
}

// Status returns the load state.
func (v *ListView[T]) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Loaded reports whether the first fetch has settled.
func (v *ListView[T]) Loaded() bool { return v.Status() == Ready }

// Refreshing reports whether a Refresh is running.
func (v *ListView[T]) Refreshing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refreshing
}

// Close discards results of pending and future loads.
func (v *ListView[T]) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}
