// Package relay keeps the unified message feed in sync with the external
// channel.
//
// # Flow
//
//	client -> Submit -> Commit (history + hub) -> forward upstream (async)
//	ticker -> Reconciler -> Poll -> Filter -> dedupe -> Commit
//
// # Ordering
//
// Relay.mu is the single writer lock. Commit appends and publishes under it,
// and Connect joins under it, so:
//
//   - every session sees new messages in commit order
//   - a joining session's snapshot ends exactly where its new_message stream begins
//
// Polls and upstream sends run outside the lock.
//
// # Failure Handling
//
// A local message is committed before it is forwarded. A forward that fails
// is logged and counted, and the message stays in the feed. A failed poll
// skips one tick. Neither is ever fatal.
package relay
