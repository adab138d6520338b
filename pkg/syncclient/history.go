// ABOUTME: Bounded history of recent sync outcomes
// ABOUTME: Newest first, fixed capacity, oldest evicted on overflow
package syncclient

import "sync"

// HistoryCapacity is the default number of outcomes kept
const HistoryCapacity = 5

// History keeps the most recent outcomes, newest first.
// It never holds more than its capacity. Safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	entries  []Outcome
	capacity int
}

// NewHistory creates a history; a non-positive capacity means HistoryCapacity
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &History{
		entries:  make([]Outcome, 0, capacity),
		capacity: capacity,
	}
}

// Add inserts at the front and evicts from the back
func (h *History) Add(o Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) < h.capacity {
		h.entries = append(h.entries, Outcome{})
	}
	copy(h.entries[1:], h.entries[:len(h.entries)-1])
	h.entries[0] = o
}

// Entries returns a copy, newest first
func (h *History) Entries() []Outcome {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Outcome, len(h.entries))
	copy(out, h.entries)
	return out
}

// Latest returns the newest outcome, if any
func (h *History) Latest() (Outcome, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 {
		return Outcome{}, false
	}
	return h.entries[0], true
}

// Len returns the number of stored outcomes
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Cap returns the capacity
func (h *History) Cap() int {
	return h.capacity
}
