// Package store holds the relay's in-memory message feed.
//
// # Data Model
//
// Message is the unified record for both origins:
//
//   - OriginLocal: submitted by a connected client, stamped at admission
//   - OriginRemote: ingested from the external channel, carries RemoteID
//
// IDs come from NewID and look like "1721401234567-42": the admission time in
// Unix milliseconds followed by a process-wide sequence number.
//
// # History
//
// History is a bounded FIFO buffer (100 messages by default):
//
//	h := store.NewHistory(100)
//	h.Append(msg)            // tail insert, evicts the head on overflow
//	h.Contains("1234567890") // remote ID lookup
//	snap := h.Snapshot()     // oldest-first copy
//
// Eviction forgets remote IDs too. A remote message that scrolled out of the
// window and is polled again will be accepted again.
//
// Nothing is persisted. A restart starts with an empty history.
package store
