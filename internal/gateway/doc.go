// Package gateway serves the relay over HTTP and WebSocket.
//
// # Overview
//
// The Gateway owns every long-lived component: the bounded history, the
// broadcast hub, the upstream channel, the relay engine, and the reconciler
// that polls the upstream on an interval. Run serves HTTP and runs the
// reconciler under one errgroup; cancelling the context shuts both down.
//
// # HTTP API
//
//	GET /                      service banner and endpoint list
//	GET /health                liveness, upstream kind, whether a token is set
//	GET /api/messages?limit=N  recent upstream messages (default 20, max 100)
//	GET /api/discord-messages  alias of /api/messages
//	GET /ws                    WebSocket feed
//	GET /chat, /static/*       static client, when server.static_dir is set
//	GET /metrics               Prometheus metrics, when enabled
//
// # WebSocket Protocol
//
// Every frame is a JSON envelope {"event": name, "data": payload}.
//
// Server to client:
//
//	message_history  []Message, sent once on connect
//	user_count       int, on every join and leave
//	new_message      Message, for every committed message
//	error            {"error": text}, for malformed client frames
//
// Client to server:
//
//	send_message     {"content": text, "author": name}
//
// Invalid submissions are dropped without a reply. A client that cannot keep
// up is disconnected and must reconnect for a fresh history snapshot.
//
// # Listeners
//
// Without Tailscale the gateway listens on server.http_addr. With
// tailscale.enabled it joins the tailnet through tsnet and serves on :80,
// on :443 with Tailscale certificates (tailscale.https), or publicly through
// Funnel (tailscale.funnel).
package gateway
