// ABOUTME: WebSocket transport binding a client connection to a hub session
// ABOUTME: One reader and one writer goroutine per connection, with ping/pong keepalive

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/chatrelay/internal/hub"
	"github.com/2389/chatrelay/internal/relay"
)

const (
	wsReadLimit    = 64 << 10
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// clientFrame is an inbound frame; Data is decoded per event.
type clientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// handleWebSocket upgrades the request and runs the session until either side
// closes it.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		g.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	s := hub.NewSession(g.config.Relay.SessionQueue)
	logger := g.logger.With("session_id", s.ID())
	logger.Info("client connected", "remote_addr", r.RemoteAddr)

	g.relay.Connect(s)

	go g.writePump(conn, s, logger)
	g.readPump(r, conn, s, logger)

	g.relay.Disconnect(s)
	logger.Info("client disconnected")
}

// readPump decodes client frames until the connection fails or closes.
func (g *Gateway) readPump(r *http.Request, conn *websocket.Conn, s *hub.Session, logger *slog.Logger) {
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrReadLimit) {
				logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.Send(hub.ErrorEvent("malformed frame"))
			continue
		}

		switch frame.Event {
		case hub.EventSendMessage:
			var sub relay.Submission
			if err := json.Unmarshal(frame.Data, &sub); err != nil {
				s.Send(hub.ErrorEvent("malformed send_message payload"))
				continue
			}
			g.relay.Submit(r.Context(), s.ID(), sub)
		default:
			logger.Debug("ignoring unknown client event", "event", frame.Event)
		}
	}
}

// writePump drains the session's queue onto the connection and keeps it alive
// with pings. It owns every write to conn and closes conn on exit.
func (g *Gateway) writePump(conn *websocket.Conn, s *hub.Session, logger *slog.Logger) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev := <-s.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}
