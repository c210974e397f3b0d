// ABOUTME: Bounded, insertion-ordered history of the unified message feed
// ABOUTME: Evicts oldest-first and indexes remote IDs for duplicate detection

package store

import (
	"container/list"
	"sync"
)

// DefaultHistorySize is the number of messages kept when no capacity is given.
const DefaultHistorySize = 100

// History is the single source of truth for what the relay has seen.
// It holds at most Capacity() messages, oldest at the front. A doubly-linked
// list keeps append and eviction O(1); remote IDs are indexed so Contains is
// O(1) as well.
type History struct {
	mu       sync.RWMutex
	order    *list.List     // Message values, oldest at front
	remote   map[string]int // remote ID -> number of resident copies
	capacity int
}

// NewHistory creates a history holding at most capacity messages.
// A non-positive capacity falls back to DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{
		order:    list.New(),
		remote:   make(map[string]int),
		capacity: capacity,
	}
}

// Append inserts msg at the tail, evicting from the head until the history
// is back within capacity.
func (h *History) Append(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.order.PushBack(msg)
	if msg.RemoteID != "" {
		h.remote[msg.RemoteID]++
	}

	for h.order.Len() > h.capacity {
		h.evictOldest()
	}
}

// evictOldest removes the head entry. Must be called with mu held.
func (h *History) evictOldest() {
	front := h.order.Front()
	if front == nil {
		return
	}
	msg, _ := h.order.Remove(front).(Message)
	if msg.RemoteID == "" {
		return
	}
	if h.remote[msg.RemoteID] <= 1 {
		delete(h.remote, msg.RemoteID)
	} else {
		h.remote[msg.RemoteID]--
	}
}

// Contains reports whether a message with exactly this remote ID is resident.
func (h *History) Contains(remoteID string) bool {
	if remoteID == "" {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.remote[remoteID] > 0
}

// Snapshot returns a copy of the history, oldest first. The returned slice
// is owned by the caller.
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Message, 0, h.order.Len())
	for e := h.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Message))
	}
	return out
}

// Len returns the number of resident messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.order.Len()
}

// Capacity returns the maximum number of resident messages.
func (h *History) Capacity() int {
	return h.capacity
}
