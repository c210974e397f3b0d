// ABOUTME: External chat channel abstraction shared by the reconciler and ingress
// ABOUTME: Defines Channel, RemoteMessage, upstream errors, filtering, and backend selection

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/chatrelay/internal/config"
)

// ErrNotConfigured is returned by every operation of a channel that lacks
// credentials. Callers treat it as "skip", never as a failure.
var ErrNotConfigured = errors.New("upstream channel not configured")

// StatusError reports a non-success response from the upstream API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Body)
}

// StatusCode extracts the upstream HTTP status from err, or 0 when err does
// not carry one.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// RemoteMessage is a message as read from the external channel.
type RemoteMessage struct {
	ID        string
	Content   string
	Author    string
	Bot       bool
	Timestamp time.Time
}

// Channel is the external chat room the relay mirrors.
type Channel interface {
	// Name identifies the backend in logs and the health endpoint.
	Name() string
	// Configured reports whether credentials and a target are present.
	Configured() bool
	// Poll fetches up to limit of the most recent messages.
	Poll(ctx context.Context, limit int) ([]RemoteMessage, error)
	// Send posts text to the channel.
	Send(ctx context.Context, text string) error
}

// Filter drops bot-authored messages and messages whose content is empty
// after trimming. Order is preserved.
func Filter(msgs []RemoteMessage) []RemoteMessage {
	out := make([]RemoteMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Bot || strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Configured reports whether cfg carries every credential its kind needs.
// A Matrix user id is optional: it is resolved from the access token.
func Configured(cfg config.UpstreamConfig) bool {
	switch cfg.Kind {
	case config.KindDiscord, "":
		return cfg.Discord.BotToken != "" && cfg.Discord.ChannelID != ""
	case config.KindMatrix:
		m := cfg.Matrix
		return m.Homeserver != "" && m.AccessToken != "" && m.RoomID != ""
	default:
		return false
	}
}

// New builds the channel selected by cfg.Kind. Missing credentials never fail
// startup: the relay keeps serving local clients with a disabled channel.
func New(cfg config.UpstreamConfig, logger *slog.Logger) (Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "channel")

	switch cfg.Kind {
	case config.KindDiscord, "":
		d := cfg.Discord
		if !Configured(cfg) {
			logger.Warn("discord credentials missing, upstream disabled",
				"bot_token_set", d.BotToken != "",
				"channel_id_set", d.ChannelID != "",
			)
			return NewDisabled(config.KindDiscord), nil
		}
		ch, err := NewDiscord(d.BotToken, d.ChannelID, cfg.AuthorFallback, logger)
		if err != nil {
			return nil, fmt.Errorf("creating discord channel: %w", err)
		}
		return ch, nil

	case config.KindMatrix:
		m := cfg.Matrix
		if !Configured(cfg) {
			logger.Warn("matrix credentials missing, upstream disabled",
				"homeserver_set", m.Homeserver != "",
				"access_token_set", m.AccessToken != "",
				"room_id_set", m.RoomID != "",
			)
			return NewDisabled(config.KindMatrix), nil
		}
		ch, err := NewMatrix(m, logger)
		if err != nil {
			return nil, fmt.Errorf("creating matrix channel: %w", err)
		}
		return ch, nil

	case config.KindNone:
		return NewDisabled(config.KindNone), nil

	default:
		return nil, fmt.Errorf("unknown upstream kind %q", cfg.Kind)
	}
}

// Disabled is the channel used when no upstream is configured.
type Disabled struct {
	name string
}

// NewDisabled returns a channel whose operations all fail with ErrNotConfigured.
func NewDisabled(name string) *Disabled {
	return &Disabled{name: name}
}

func (d *Disabled) Name() string     { return d.name }
func (d *Disabled) Configured() bool { return false }

func (d *Disabled) Poll(context.Context, int) ([]RemoteMessage, error) {
	return nil, ErrNotConfigured
}

func (d *Disabled) Send(context.Context, string) error {
	return ErrNotConfigured
}
