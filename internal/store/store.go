// ABOUTME: Unified message record shared by the history, hub, and relay
// ABOUTME: Defines Message, Origin, and the process-local message ID generator

package store

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Origin tags where a message entered the unified feed.
type Origin string

const (
	OriginLocal  Origin = "local"  // Submitted by a connected client
	OriginRemote Origin = "remote" // Ingested from the external channel
)

// Message is one entry of the unified feed.
type Message struct {
	ID          string    `json:"id"`
	RemoteID    string    `json:"remote_id,omitempty"` // Only set for OriginRemote
	Content     string    `json:"content"`
	ContentHTML string    `json:"content_html,omitempty"`
	Author      string    `json:"author"`
	Timestamp   time.Time `json:"timestamp"`
	Origin      Origin    `json:"origin"`
	SessionID   string    `json:"session_id,omitempty"` // Submitting session, local messages only
}

// IsRemote reports whether the message came from the external channel.
func (m Message) IsRemote() bool {
	return m.Origin == OriginRemote
}

var idSeq atomic.Uint64

// NewID returns a local message ID of the form "<unix-millis>-<seq>".
// seq is process-wide, so IDs minted within the same millisecond stay unique
// and keep their generation order.
func NewID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + strconv.FormatUint(idSeq.Add(1), 10)
}
