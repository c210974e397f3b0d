// ABOUTME: Matrix channel backed by the mautrix client
// ABOUTME: Reads recent room text messages via /messages and posts with SendText

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/chatrelay/internal/config"
)

// Matrix mirrors a single room. Events sent by the relay's own user, or by
// users in the ignore list, are reported as bot messages. When no user id is
// configured it is looked up with whoami before the first poll, so the
// relay's own forwarded posts are never read back as new messages.
type Matrix struct {
	client  *mautrix.Client
	roomID  id.RoomID
	ignored map[id.UserID]bool
	logger  *slog.Logger

	mu   sync.Mutex
	self id.UserID
}

// NewMatrix creates a Matrix channel from the room configuration.
func NewMatrix(cfg config.MatrixConfig, logger *slog.Logger) (*Matrix, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	ignored := make(map[id.UserID]bool, len(cfg.IgnoreUsers))
	for _, u := range cfg.IgnoreUsers {
		ignored[id.UserID(u)] = true
	}

	return &Matrix{
		client:  client,
		roomID:  id.RoomID(cfg.RoomID),
		self:    id.UserID(cfg.UserID),
		ignored: ignored,
		logger:  logger.With("backend", "matrix"),
	}, nil
}

func (m *Matrix) Name() string     { return "matrix" }
func (m *Matrix) Configured() bool { return true }

// Poll reads up to limit of the most recent room events, newest first, and
// keeps only text messages.
func (m *Matrix) Poll(ctx context.Context, limit int) ([]RemoteMessage, error) {
	self, err := m.selfID(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Messages(ctx, m.roomID, "", "", mautrix.DirectionBackward, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching matrix messages: %w", translateMatrixError(err))
	}

	out := make([]RemoteMessage, 0, len(resp.Chunk))
	for _, evt := range resp.Chunk {
		if evt == nil || evt.Type.Type != event.EventMessage.Type {
			continue
		}
		if evt.Content.Parsed == nil {
			if err := evt.Content.ParseRaw(event.EventMessage); err != nil {
				m.logger.Debug("skipping unparseable event", "event_id", evt.ID.String(), "error", err)
				continue
			}
		}
		content := evt.Content.AsMessage()
		if content == nil || content.MsgType != event.MsgText {
			continue
		}

		out = append(out, RemoteMessage{
			ID:        evt.ID.String(),
			Content:   content.Body,
			Author:    displayName(evt.Sender),
			Bot:       evt.Sender == self || m.ignored[evt.Sender],
			Timestamp: timestampOrNow(time.UnixMilli(evt.Timestamp).UTC()),
		})
	}

	m.logger.Debug("polled matrix", "room", m.roomID.String(), "count", len(out))
	return out, nil
}

// selfID returns the relay's own user id, asking the homeserver once if it
// was not configured.
func (m *Matrix) selfID(ctx context.Context) (id.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.self != "" {
		return m.self, nil
	}
	resp, err := m.client.Whoami(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving matrix user id: %w", translateMatrixError(err))
	}
	m.self = resp.UserID
	m.client.UserID = resp.UserID
	m.logger.Info("resolved matrix user id", "user_id", m.self.String())
	return m.self, nil
}

// Send posts a plain text message to the room.
func (m *Matrix) Send(ctx context.Context, text string) error {
	if _, err := m.client.SendText(ctx, m.roomID, text); err != nil {
		return fmt.Errorf("sending matrix message: %w", translateMatrixError(err))
	}
	return nil
}

func displayName(u id.UserID) string {
	if local := u.Localpart(); local != "" {
		return local
	}
	return u.String()
}

func translateMatrixError(err error) error {
	var httpErr mautrix.HTTPError
	if errors.As(err, &httpErr) && httpErr.Response != nil {
		return &StatusError{Code: httpErr.Response.StatusCode, Body: httpErr.ResponseBody}
	}
	var httpErrPtr *mautrix.HTTPError
	if errors.As(err, &httpErrPtr) && httpErrPtr.Response != nil {
		return &StatusError{Code: httpErrPtr.Response.StatusCode, Body: httpErrPtr.ResponseBody}
	}
	return err
}
