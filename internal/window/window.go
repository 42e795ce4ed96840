// Package window keeps a bounded in-memory buffer of recent events for
// the overlay API and the CLI.
package window

import (
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/lantern-live/lantern/internal/events"
)

// Entry is one recorded event with its arrival time.
type Entry struct {
	Time  time.Time    `json:"time"`
	Event events.Event `json:"event"`
}

// RecentWindow holds the most recent events up to a fixed capacity.
// When full, the oldest entry is evicted.
type RecentWindow struct {
	mu   sync.RWMutex
	buf  *queue.Queue
	size int
}

// New creates a window holding at most size entries. A size below 1 is
// clamped to 1.
func New(size int) *RecentWindow {
	if size < 1 {
		size = 1
	}
	return &RecentWindow{
		buf:  queue.New(),
		size: size,
	}
}

// Push records an event, evicting the oldest entry when the window is full.
func (w *RecentWindow) Push(ev events.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for w.buf.Length() >= w.size {
		w.buf.Remove()
	}
	w.buf.Add(Entry{Time: time.Now(), Event: ev})
}

// Snapshot returns the current entries, oldest first.
func (w *RecentWindow) Snapshot() []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Entry, 0, w.buf.Length())
	for i := 0; i < w.buf.Length(); i++ {
		out = append(out, w.buf.Get(i).(Entry))
	}
	return out
}

// Len returns the number of entries currently held.
func (w *RecentWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.buf.Length()
}

// Cap returns the window capacity.
func (w *RecentWindow) Cap() int {
	return w.size
}
