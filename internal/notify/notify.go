// Package notify delivers transient user-visible notifications (toasts).
package notify

import (
	"context"
	"log/slog"
	"sync"

	"whispr/internal/observability"
)

// Variant selects how a toast is styled.
type Variant string

const (
	Default     Variant = "default"
	Destructive Variant = "destructive"
)

// Toast is a short notification with an optional description.
type Toast struct {
	Title       string
	Description string
	Variant     Variant
}

// Notifier shows toasts. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(Toast)
}

// Success builds a default toast.
func Success(title, description string) Toast {
	return Toast{Title: title, Description: description, Variant: Default}
}

// Failure builds a destructive toast.
func Failure(title, description string) Toast {
	return Toast{Title: title, Description: description, Variant: Destructive}
}

// Func adapts a function to Notifier.
type Func func(Toast)

func (f Func) Notify(t Toast) { f(t) }

// Discard drops every toast.
var Discard Notifier = Func(func(Toast) {})

// LogNotifier writes toasts to a logger.
type LogNotifier struct {
	Logger *observability.Logger
}

func (n LogNotifier) Notify(t Toast) {
	level := slog.LevelInfo
	if t.Variant == Destructive {
		level = slog.LevelWarn
	}
	observability.OrGlobal(n.Logger).Log(context.Background(), level, t.Title,
		slog.String("description", t.Description),
		slog.String("variant", string(t.Variant)),
	)
}

// Recorder keeps every toast it receives.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Notify(t Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
}

// Toasts returns a copy of everything recorded so far.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Titles returns the recorded titles in order.
func (r *Recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.toasts))
	for i, t := range r.toasts {
		out[i] = t.Title
	}
	return out
}

// Multi fans a toast out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(t Toast) {
	for _, n := range m {
		n.Notify(t)
	}
}
