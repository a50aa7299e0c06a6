// Package notify surfaces non-blocking user notifications (the terminal
// equivalent of toasts).
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Level classifies a notification.
type Level int

const (
	Info Level = iota
	Success
	Error
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notification is one message shown to the user.
type Notification struct {
	Level   Level
	Message string
	At      time.Time
}

// Notifier surfaces notifications. Implementations must not block the caller.
type Notifier interface {
	Notify(n Notification)
}

// Infof builds and sends an Info notification.
func Infof(n Notifier, format string, args ...any) {
	send(n, Info, format, args...)
}

// Successf builds and sends a Success notification.
func Successf(n Notifier, format string, args ...any) {
	send(n, Success, format, args...)
}

// Errorf builds and sends an Error notification.
func Errorf(n Notifier, format string, args ...any) {
	send(n, Error, format, args...)
}

func send(n Notifier, level Level, format string, args ...any) {
	if n == nil {
		return
	}
	n.Notify(Notification{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		At:      time.Now(),
	})
}

// Func adapts a function to the Notifier interface.
type Func func(Notification)

// Notify calls f(n).
func (f Func) Notify(n Notification) { f(n) }

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Notify forwards n to every notifier.
func (m Multi) Notify(n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs n at a level matching its severity.
func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch n.Level {
	case Error:
		logger.Warn("Notification", "level", n.Level.String(), "message", n.Message)
	default:
		logger.Info("Notification", "level", n.Level.String(), "message", n.Message)
	}
}

// Writer prints notifications as single lines, one per call.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter creates a Writer notifier printing to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Notify prints n prefixed by a level marker.
func (w *Writer) Notify(n Notification) {
	marker := "·"
	switch n.Level {
	case Success:
		marker = "✓"
	case Error:
		marker = "✗"
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s %s\n", marker, n.Message)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify records n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns the recorded notifications in order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Reset drops every recorded notification.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
