// Package notify delivers user-facing notifications raised by the request pipeline.
package notify

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Level is the severity of a notification.
type Level string

const (
	LevelError Level = "error"
	LevelInfo  Level = "info"
)

// Notification is a title plus description shown to the user.
type Notification struct {
	Level       Level
	Title       string
	Description string
}

// Notifier receives notifications. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(Notification) {}

// Writer prints "title: description" lines, e.g. to stderr.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (p *Writer) Notify(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n.Description == "" {
		fmt.Fprintln(p.w, n.Title)
		return
	}
	fmt.Fprintf(p.w, "%s: %s\n", n.Title, n.Description)
}

// Log records notifications in the structured log.
type Log struct{ log *zap.Logger }

// NewLog wraps a logger; nil means no-op.
func NewLog(log *zap.Logger) Log {
	if log == nil {
		log = zap.NewNop()
	}
	return Log{log: log}
}

func (l Log) Notify(n Notification) {
	fields := []zap.Field{zap.String("title", n.Title), zap.String("description", n.Description)}
	if n.Level == LevelError {
		l.log.Warn("notification", fields...)
		return
	}
	l.log.Info("notification", fields...)
}

// Multi fans a notification out to several notifiers.
func Multi(ns ...Notifier) Notifier {
	return Func(func(n Notification) {
		for _, x := range ns {
			if x != nil {
				x.Notify(n)
			}
		}
	})
}

// Recorder keeps every notification; used by tests and by callers that render later.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
