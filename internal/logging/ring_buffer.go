package logging

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultBufferSize is the default capacity of the in-memory log buffer.
const DefaultBufferSize = 1000

// LogEntry is one captured log line, as surfaced by the `debug`
// subcommand's recent-entries view.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
	Fields    map[string]any
}

// RingBuffer keeps the last N log entries in memory. It implements
// logrus.Hook so it can tee off the process logger without a second
// output stream.
type RingBuffer struct {
	mu       sync.RWMutex
	entries  []LogEntry
	capacity int
	next     int
	count    int
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &RingBuffer{entries: make([]LogEntry, capacity), capacity: capacity}
}

func (rb *RingBuffer) Levels() []log.Level {
	return log.AllLevels
}

func (rb *RingBuffer) Fire(entry *log.Entry) error {
	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	fields := make(map[string]any, len(entry.Data))
	for k, v := range entry.Data {
		fields[k] = v
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.entries[rb.next] = LogEntry{
		Timestamp: entry.Time,
		Level:     level,
		Message:   entry.Message,
		Fields:    fields,
	}
	rb.next = (rb.next + 1) % rb.capacity
	if rb.count < rb.capacity {
		rb.count++
	}
	return nil
}

// Entries returns a copy of the buffered entries, oldest first.
func (rb *RingBuffer) Entries() []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	out := make([]LogEntry, 0, rb.count)
	start := 0
	if rb.count == rb.capacity {
		start = rb.next
	}
	for i := 0; i < rb.count; i++ {
		out = append(out, rb.entries[(start+i)%rb.capacity])
	}
	return out
}

// RecentEntries returns a copy of the n most recent entries, oldest first.
func (rb *RingBuffer) RecentEntries(n int) []LogEntry {
	entries := rb.Entries()
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}

func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// GlobalBuffer captures every log line the process emits; SetupBaseLogger
// attaches it as a logrus hook.
var GlobalBuffer = NewRingBuffer(DefaultBufferSize)

// GetRecentGlobalEntries returns the n most recent log entries from the
// global buffer.
func GetRecentGlobalEntries(n int) []LogEntry {
	return GlobalBuffer.RecentEntries(n)
}
