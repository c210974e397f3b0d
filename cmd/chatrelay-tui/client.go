// ABOUTME: WebSocket client for the relay feed
// ABOUTME: Decodes server envelopes into typed messages for the TUI

package main

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/chatrelay/internal/hub"
	"github.com/2389/chatrelay/internal/relay"
	"github.com/2389/chatrelay/internal/store"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Feed messages delivered to the model.
type (
	historyMsg []store.Message
	countMsg   int
	newMsg     store.Message
	serverErr  string
	// closedMsg reports the end of a connection; err is nil on a clean close.
	closedMsg struct{ err error }
)

// client owns one connection. Writes are serialized; reads happen on the
// goroutine started by listen.
type client struct {
	conn   *websocket.Conn
	wmu    sync.Mutex
	frames chan any
}

func dial(url string) (*client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	c := &client{conn: conn, frames: make(chan any, 64)}
	go c.listen()
	return c, nil
}

// listen decodes frames until the connection ends, then sends closedMsg and
// closes frames.
func (c *client) listen() {
	defer close(c.frames)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			c.frames <- closedMsg{err: err}
			return
		}
		msg, err := decodeFrame(data)
		if err != nil {
			c.frames <- serverErr(err.Error())
			continue
		}
		if msg != nil {
			c.frames <- msg
		}
	}
}

// decodeFrame maps one envelope to a feed message. Unknown events yield nil.
func decodeFrame(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch env.Event {
	case hub.EventMessageHistory:
		var msgs []store.Message
		if err := json.Unmarshal(env.Data, &msgs); err != nil {
			return nil, fmt.Errorf("decoding history: %w", err)
		}
		return historyMsg(msgs), nil
	case hub.EventUserCount:
		var n int
		if err := json.Unmarshal(env.Data, &n); err != nil {
			return nil, fmt.Errorf("decoding user count: %w", err)
		}
		return countMsg(n), nil
	case hub.EventNewMessage:
		var m store.Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decoding message: %w", err)
		}
		return newMsg(m), nil
	case hub.EventError:
		var p hub.ErrorPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decoding error: %w", err)
		}
		return serverErr(p.Error), nil
	default:
		return nil, nil
	}
}

func (c *client) send(content, author string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(map[string]any{
		"event": hub.EventSendMessage,
		"data":  relay.Submission{Content: content, Author: author},
	})
}

func (c *client) close() {
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wmu.Unlock()
	_ = c.conn.Close()
}
