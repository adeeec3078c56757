// Package notify carries user-facing notifications from the caller-side
// components to whatever surface displays them.
package notify

import "sync"

type Level string

const (
	Success Level = "success"
	Error   Level = "error"
	Info    Level = "info"
)

// Notification is one message shown to the operator.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier displays notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Recorder keeps every notification in arrival order.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.all = append(r.all, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// Levels returns the level of each recorded notification.
func (r *Recorder) Levels() []Level {
	all := r.All()
	out := make([]Level, len(all))
	for i, n := range all {
		out[i] = n.Level
	}
	return out
}
