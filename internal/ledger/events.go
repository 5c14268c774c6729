package ledger

import (
	"sync"

	"github.com/realpay/supply-engine/internal/model"
)

// DefaultEventCap is the default capacity of the recent-events buffer.
const DefaultEventCap = 1000

// RecentEvents is a bounded FIFO buffer of checkpoint/receipt events.
// When full, the oldest entry is evicted first. Safe for concurrent use.
type RecentEvents struct {
	mu     sync.RWMutex
	events []model.RecentEvent
	cap    int
}

// NewRecentEvents creates a buffer holding at most capacity events.
// A capacity <= 0 falls back to DefaultEventCap.
func NewRecentEvents(capacity int) *RecentEvents {
	if capacity <= 0 {
		capacity = DefaultEventCap
	}
	return &RecentEvents{cap: capacity}
}

// Push appends an event, evicting the oldest entry if the buffer is full.
func (b *RecentEvents) Push(e model.RecentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, e)
	if len(b.events) > b.cap {
		b.events = b.events[len(b.events)-b.cap:]
	}
}

// Recent returns up to n events, newest first.
func (b *RecentEvents) Recent(n int) []model.RecentEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > len(b.events) {
		n = len(b.events)
	}
	out := make([]model.RecentEvent, 0, n)
	for i := len(b.events) - 1; i >= len(b.events)-n; i-- {
		out = append(out, b.events[i])
	}
	return out
}

// Len returns the number of buffered events.
func (b *RecentEvents) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
