// ABOUTME: Broadcast hub fanning feed events out to connected sessions
// ABOUTME: Sends history on join, presence counts on join/leave, and new messages in order

package hub

import (
	"log/slog"
	"sync"

	"github.com/2389/chatrelay/internal/metrics"
	"github.com/2389/chatrelay/internal/store"
)

// Snapshotter supplies the history a joining session starts from.
type Snapshotter interface {
	Snapshot() []store.Message
}

// Hub tracks connected sessions and delivers events to them.
//
// Every delivery happens under one mutex, so all sessions observe events in
// the same global order. Delivery never blocks: a session whose queue is full
// is evicted and closed, and the remaining sessions get a fresh user_count.
// The evicted client reconnects and receives a new snapshot, so no connected
// session ever sees a gap in the feed.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	history Snapshotter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithMetrics records session gauges and evictions into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// New creates a hub. Pass nil logger for default.
func New(history Snapshotter, logger *slog.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		sessions: make(map[string]*Session),
		history:  history,
		logger:   logger.With("component", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join registers s, sends it the current history, and broadcasts the new
// user count to everyone including s. Joining a closed hub closes s.
func (h *Hub) Join(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		s.Close()
		return
	}
	if _, exists := h.sessions[s.ID()]; exists {
		return
	}

	h.sessions[s.ID()] = s
	h.metrics.SessionJoined()
	h.logger.Debug("session joined", "session_id", s.ID(), "sessions", len(h.sessions))

	if !s.Send(historyEvent(h.history.Snapshot())) {
		h.evictLocked(s)
	}
	h.broadcastLocked(countEvent(len(h.sessions)))
}

// Leave unregisters and closes s, then broadcasts the user count to the
// remaining sessions. Unknown sessions are ignored.
func (h *Hub) Leave(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.removeLocked(s) {
		return
	}
	h.logger.Debug("session left", "session_id", s.ID(), "sessions", len(h.sessions))
	h.broadcastLocked(countEvent(len(h.sessions)))
}

// Publish delivers msg as new_message to every registered session.
func (h *Hub) Publish(msg store.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcastLocked(messageEvent(msg))
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close closes every session and rejects later joins.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.sessions {
		h.removeLocked(s)
	}
	h.closed = true
	h.logger.Debug("hub closed")
}

// broadcastLocked enqueues ev on every session. Sessions that cannot take it
// are evicted, and the survivors are told the new count (which may in turn
// evict more). Must be called with mu held.
func (h *Hub) broadcastLocked(ev Event) {
	var slow []*Session
	for _, s := range h.sessions {
		if !s.Send(ev) {
			slow = append(slow, s)
		}
	}
	if len(slow) == 0 {
		return
	}

	for _, s := range slow {
		h.evictLocked(s)
	}
	h.broadcastLocked(countEvent(len(h.sessions)))
}

// evictLocked drops a session that fell behind. Must be called with mu held.
func (h *Hub) evictLocked(s *Session) {
	select {
	case <-s.Done():
		// Closed by its transport before Leave ran; not a slow reader.
		h.removeLocked(s)
		return
	default:
	}
	if h.removeLocked(s) {
		h.metrics.SessionEvicted()
		h.logger.Warn("evicted slow session", "session_id", s.ID())
	}
}

// removeLocked unregisters and closes s, reporting whether it was registered.
// Must be called with mu held.
func (h *Hub) removeLocked(s *Session) bool {
	if _, ok := h.sessions[s.ID()]; !ok {
		return false
	}
	delete(h.sessions, s.ID())
	s.Close()
	h.metrics.SessionLeft()
	return true
}
