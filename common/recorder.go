package common

import (
	"fmt"
	"sync"
)

// LogEntry is one human-readable line emitted by the core.
type LogEntry struct {
	Level   LogLevel
	Message string
}

// LogRecorder is a Logger that keeps every entry in memory so a front-end
// can replay the log stream of an operation. Entries are optionally
// forwarded to Next.
type LogRecorder struct {
	Next Logger

	mu      sync.Mutex
	entries []LogEntry
}

// NewLogRecorder returns a recorder forwarding to next (which may be nil).
func NewLogRecorder(next Logger) *LogRecorder {
	return &LogRecorder{Next: next}
}

func (r *LogRecorder) record(level LogLevel, msg string, args []interface{}) {
	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}
	r.mu.Lock()
	r.entries = append(r.entries, LogEntry{Level: level, Message: formatted})
	r.mu.Unlock()
}

func (r *LogRecorder) Debug(msg string, args ...interface{}) {
	r.record(LevelDebug, msg, args)
	if r.Next != nil {
		r.Next.Debug(msg, args...)
	}
}

func (r *LogRecorder) Info(msg string, args ...interface{}) {
	r.record(LevelInfo, msg, args)
	if r.Next != nil {
		r.Next.Info(msg, args...)
	}
}

func (r *LogRecorder) Warn(msg string, args ...interface{}) {
	r.record(LevelWarn, msg, args)
	if r.Next != nil {
		r.Next.Warn(msg, args...)
	}
}

func (r *LogRecorder) Error(msg string, args ...interface{}) {
	r.record(LevelError, msg, args)
	if r.Next != nil {
		r.Next.Error(msg, args...)
	}
}

// Entries returns a copy of the recorded entries.
func (r *LogRecorder) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Reset drops all recorded entries.
func (r *LogRecorder) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}
