// Package channel connects the relay to the external chat room it mirrors.
//
// A Channel can Poll recent messages and Send text. Two backends exist:
//
//   - Discord: REST calls through discordgo (no gateway websocket)
//   - Matrix: room /messages and SendText through mautrix
//
// New picks one from config.UpstreamConfig. Missing credentials produce a
// Disabled channel that returns ErrNotConfigured; startup never fails for it.
//
// Upstream HTTP failures surface as *StatusError so callers can report the
// status code without knowing the backend.
package channel
