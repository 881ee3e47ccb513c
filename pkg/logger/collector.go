package logger

import (
	"sync"
	"time"
)

// Entry is one collected log record.
type Entry struct {
	Time   time.Time              `json:"time"`
	Level  string                 `json:"level"`
	Msg    string                 `json:"msg"`
	Fields map[string]interface{} `json:"fields,omitempty"`
	Caller string                 `json:"caller"`
}

// Collector keeps a bounded in-memory ring of recent error logs so they can
// be exposed on a diagnostics endpoint without tailing files.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	closed  bool
}

// NewCollector creates a collector holding at most max entries.
func NewCollector(max int) *Collector {
	if max <= 0 {
		max = 200
	}
	return &Collector{max: max}
}

func (c *Collector) Add(level, msg string, fields map[string]interface{}, caller string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.entries = append(c.entries, Entry{
		Time:   time.Now(),
		Level:  level,
		Msg:    msg,
		Fields: fields,
		Caller: caller,
	})
	if len(c.entries) > c.max {
		c.entries = c.entries[len(c.entries)-c.max:]
	}
}

// Recent returns up to n most recent entries, newest last.
func (c *Collector) Recent(n int) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n > len(c.entries) {
		n = len(c.entries)
	}
	out := make([]Entry, n)
	copy(out, c.entries[len(c.entries)-n:])
	return out
}

func (c *Collector) Close() {
	c.mu.Lock()
	c.closed = true
	c.entries = nil
	c.mu.Unlock()
}
