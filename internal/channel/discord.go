// ABOUTME: Discord channel backed by the discordgo REST client
// ABOUTME: Polls recent channel messages and posts relayed text with mentions disabled

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord talks to one text channel over the REST API. No gateway websocket
// is opened; reads are driven by the reconciler's polling.
type Discord struct {
	session        *discordgo.Session
	channelID      string
	authorFallback string
	logger         *slog.Logger
}

// DiscordOption customizes a Discord channel.
type DiscordOption func(*Discord)

// WithHTTPClient replaces the HTTP client used for REST calls.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *Discord) {
		d.session.Client = c
	}
}

// NewDiscord creates a Discord channel for the given bot token and channel ID.
func NewDiscord(token, channelID, authorFallback string, logger *slog.Logger, opts ...DiscordOption) (*Discord, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if authorFallback == "" {
		authorFallback = "Discord User"
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	// discordgo honours 429 Retry-After itself; keep that and bound the retries.
	session.ShouldRetryOnRateLimit = true
	session.MaxRestRetries = 3

	d := &Discord{
		session:        session,
		channelID:      channelID,
		authorFallback: authorFallback,
		logger:         logger.With("backend", "discord"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Discord) Name() string     { return "discord" }
func (d *Discord) Configured() bool { return true }

// Poll fetches up to limit recent messages, newest first as Discord returns them.
func (d *Discord) Poll(ctx context.Context, limit int) ([]RemoteMessage, error) {
	msgs, err := d.session.ChannelMessages(d.channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching discord messages: %w", translateDiscordError(err))
	}

	out := make([]RemoteMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, RemoteMessage{
			ID:        m.ID,
			Content:   m.Content,
			Author:    d.authorName(m.Author),
			Bot:       m.Author != nil && m.Author.Bot,
			Timestamp: timestampOrNow(m.Timestamp),
		})
	}

	d.logger.Debug("polled discord", "channel_id", d.channelID, "count", len(out))
	return out, nil
}

// Send posts text to the channel. Mentions are not parsed so relayed text
// cannot ping @everyone or roles.
func (d *Discord) Send(ctx context.Context, text string) error {
	_, err := d.session.ChannelMessageSendComplex(d.channelID, &discordgo.MessageSend{
		Content: text,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("sending discord message: %w", translateDiscordError(err))
	}
	return nil
}

func (d *Discord) authorName(u *discordgo.User) string {
	if u == nil {
		return d.authorFallback
	}
	if u.Username != "" {
		return u.Username
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return d.authorFallback
}

// translateDiscordError turns REST failures into *StatusError so callers can
// report the upstream status without importing discordgo.
func translateDiscordError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return &StatusError{Code: restErr.Response.StatusCode, Body: string(restErr.ResponseBody)}
	}
	return err
}

func timestampOrNow(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts
}
