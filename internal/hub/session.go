// ABOUTME: A connected client's outbound event queue
// ABOUTME: Enqueue never blocks; a full queue tells the hub to evict the session

package hub

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultQueueSize is the per-session outbound buffer.
const DefaultQueueSize = 64

// Session is the hub's handle on one client connection. The transport drains
// Events until Done is closed.
type Session struct {
	id     string
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewSession creates a session with a fresh ID and an outbound queue of the
// given size (DefaultQueueSize when size < 2, since a join needs room for the
// snapshot and the count).
func NewSession(size int) *Session {
	if size < 2 {
		size = DefaultQueueSize
	}
	return &Session{
		id:     uuid.New().String(),
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Events yields queued events in delivery order. It is never closed; select
// on Done as well.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed once the session has been closed by either side.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close marks the session finished. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

// Send hands ev to the session without blocking. It returns false when the
// session is closed or its queue is full.
func (s *Session) Send(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}
