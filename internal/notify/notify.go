// Package notify delivers human-readable outcomes of user-facing operations.
package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is the severity shown to the operator
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Notification is one message for the operator
type Notification struct {
	Level   Level     `json:"level"`
	Op      string    `json:"op"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notifications
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Multi fans a notification out to several notifiers
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}

// Success builds a success notification
func Success(op, message string) Notification {
	return Notification{Level: LevelSuccess, Op: op, Message: message, At: time.Now().UTC()}
}

// Failure builds an error notification from err
func Failure(op string, err error) Notification {
	return Notification{Level: LevelError, Op: op, Message: err.Error(), At: time.Now().UTC()}
}

// Log writes notifications to a logger
type Log struct {
	Entry *logrus.Entry
}

func (l Log) Notify(n Notification) {
	entry := l.Entry.WithField("op", n.Op)
	switch n.Level {
	case LevelError:
		entry.Error("🔔 " + n.Message)
	case LevelWarning:
		entry.Warn("🔔 " + n.Message)
	default:
		entry.Info("🔔 " + n.Message)
	}
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Count returns how many notifications of level were recorded
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, it := range r.items {
		if it.Level == level {
			n++
		}
	}
	return n
}

// Reset clears the recorder
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}
