// ABOUTME: Wire envelope for events exchanged with connected clients
// ABOUTME: Every frame is {"event": name, "data": payload} in both directions

package hub

import (
	"github.com/2389/chatrelay/internal/store"
)

// Server-to-client event names.
const (
	EventMessageHistory = "message_history"
	EventUserCount      = "user_count"
	EventNewMessage     = "new_message"
	EventError          = "error"
)

// EventSendMessage is the only client-to-server event.
const EventSendMessage = "send_message"

// Event is one frame on a client session.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// ErrorPayload is the data of an EventError frame.
type ErrorPayload struct {
	Error string `json:"error"`
}

func historyEvent(msgs []store.Message) Event {
	if msgs == nil {
		msgs = []store.Message{}
	}
	return Event{Name: EventMessageHistory, Data: msgs}
}

func countEvent(n int) Event {
	return Event{Name: EventUserCount, Data: n}
}

func messageEvent(msg store.Message) Event {
	return Event{Name: EventNewMessage, Data: msg}
}

// ErrorEvent builds a protocol error frame for a single session.
func ErrorEvent(msg string) Event {
	return Event{Name: EventError, Data: ErrorPayload{Error: msg}}
}
