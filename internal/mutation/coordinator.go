// Package mutation coordinates like and follow toggles. Each entity has
// at most one toggle in flight; a second attempt while one is pending is
// rejected, not queued. In-flight calls run under contexts the
// coordinator owns, so a view that goes away can cancel them.
package mutation

import (
	"context"
	"errors"
	"sync"

	"whispr/internal/notify"
	"whispr/internal/observability"
)

// Kind names a mutation family.
type Kind string

const (
	Like   Kind = "like"
	Follow Kind = "follow"
)

// Key identifies one guarded entity.
type Key struct {
	Kind     Kind
	EntityID string
}

// Precondition failures. Callers treat these as silent no-ops.
var (
	ErrInFlight         = errors.New("mutation: already in flight")
	ErrClosed           = errors.New("mutation: coordinator closed")
	ErrCancelled        = errors.New("mutation: cancelled")
	ErrNotAuthenticated = errors.New("mutation: not authenticated")
	ErrSelf             = errors.New("mutation: cannot target yourself")
	ErrNoTarget         = errors.New("mutation: no target")
	ErrNotOwner         = errors.New("mutation: not the owner")
)

// IsSkip reports whether err is a precondition skip rather than a failure.
func IsSkip(err error) bool {
	for _, skip := range []error{ErrInFlight, ErrClosed, ErrCancelled, ErrNotAuthenticated, ErrSelf, ErrNoTarget, ErrNotOwner} {
		if errors.Is(err, skip) {
			return true
		}
	}
	return false
}

// Outcome labels for the mutations metric.
const (
	outcomeOK        = "ok"
	outcomeFailed    = "failed"
	outcomeRejected  = "rejected"
	outcomeCancelled = "cancelled"
)

type task struct {
	cancel context.CancelFunc
}

// Coordinator owns the in-flight guards of one view.
type Coordinator struct {
	mu       sync.Mutex
	tasks    map[Key]*task
	closed   bool
	notifier notify.Notifier
}

// New returns a coordinator reporting failures to notifier (may be nil).
func New(notifier notify.Notifier) *Coordinator {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Coordinator{tasks: make(map[Key]*task), notifier: notifier}
}

// Mutate runs call while holding the guard for key. When call succeeds and
// the task was neither cancelled nor outlived the coordinator, apply runs
// before the guard is released. apply must not call back into the
// coordinator.
func (c *Coordinator) Mutate(ctx context.Context, key Key, call func(context.Context) error, apply func()) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		observability.Mutations.WithLabelValues(string(key.Kind), outcomeRejected).Inc()
		return ErrClosed
	}
	if _, busy := c.tasks[key]; busy {
		c.mu.Unlock()
		observability.Mutations.WithLabelValues(string(key.Kind), outcomeRejected).Inc()
		return ErrInFlight
	}
	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel}
	c.tasks[key] = t
	c.mu.Unlock()

	inFlight := observability.MutationsInFlight.WithLabelValues(string(key.Kind))
	inFlight.Inc()
	fields := map[string]interface{}{"kind": string(key.Kind), "entity_id": key.EntityID}
	observability.LogAsyncOperationStart(ctx, "mutation", fields)

	err := call(taskCtx)

	c.mu.Lock()
	if c.tasks[key] == t {
		delete(c.tasks, key)
	}
	cancelled := taskCtx.Err() != nil || c.closed
	if err == nil && !cancelled && apply != nil {
		apply()
	}
	c.mu.Unlock()
	cancel()
	inFlight.Dec()

	switch {
	case cancelled:
		observability.Mutations.WithLabelValues(string(key.Kind), outcomeCancelled).Inc()
		observability.LogAsyncOperationEnd(ctx, "mutation", mergeFields(fields, "outcome", outcomeCancelled))
		return ErrCancelled
	case err != nil:
		observability.Mutations.WithLabelValues(string(key.Kind), outcomeFailed).Inc()
		observability.LogAsyncOperationError(ctx, "mutation", err, fields)
		return err
	default:
		observability.Mutations.WithLabelValues(string(key.Kind), outcomeOK).Inc()
		observability.LogAsyncOperationEnd(ctx, "mutation", mergeFields(fields, "outcome", outcomeOK))
		return nil
	}
}

// InFlight reports whether key has a pending task.
func (c *Coordinator) InFlight(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tasks[key]
	return ok
}

// Cancel cancels the pending task for key, if any. Its result is dropped.
func (c *Coordinator) Cancel(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[key]
	if ok {
		t.cancel()
	}
	return ok
}

// Close cancels every pending task and rejects new ones.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, t := range c.tasks {
		t.cancel()
	}
}

// Closed reports whether Close has been called.
func (c *Coordinator) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Coordinator) reject(kind Kind, err error) error {
	observability.Mutations.WithLabelValues(string(kind), outcomeRejected).Inc()
	return err
}

func mergeFields(fields map[string]interface{}, k string, v interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for key, val := range fields {
		out[key] = val
	}
	out[k] = v
	return out
}
