// ABOUTME: Ingress of client submissions into the unified feed
// ABOUTME: Validates, stamps, commits, then forwards upstream without blocking the client

package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/2389/chatrelay/internal/channel"
	"github.com/2389/chatrelay/internal/store"
)

// Submission is a send_message payload from a client.
type Submission struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// FormatOutbound renders a local message the way it appears in the external
// channel.
func FormatOutbound(author, label, content string) string {
	return fmt.Sprintf("**%s** (from %s): %s", author, label, content)
}

// Submit admits a client message. Whitespace-only or oversized content is
// dropped silently: nothing is stored, broadcast, or forwarded, and ok is
// false. Otherwise the message is committed and a forward to the external
// channel is started in the background. A failed forward is logged and the
// message stays in the feed.
func (r *Relay) Submit(ctx context.Context, sessionID string, in Submission) (msg store.Message, ok bool) {
	if strings.TrimSpace(in.Content) == "" {
		r.reject(sessionID, "empty")
		return store.Message{}, false
	}
	if utf8.RuneCountInString(in.Content) > r.cfg.MaxContentLength {
		r.reject(sessionID, "too_long")
		return store.Message{}, false
	}

	author := strings.TrimSpace(in.Author)
	if author == "" {
		author = r.cfg.DefaultAuthor
	}

	now := r.now().UTC()
	msg = store.Message{
		ID:          store.NewID(now),
		Content:     in.Content,
		ContentHTML: r.renderer.HTML(in.Content),
		Author:      author,
		Timestamp:   now,
		Origin:      store.OriginLocal,
		SessionID:   sessionID,
	}

	// Record first, then forward.
	r.Commit(msg)

	r.logger.Debug("message admitted", "id", msg.ID, "session_id", sessionID, "author", author)

	r.forward(ctx, msg)
	return msg, true
}

func (r *Relay) reject(sessionID, reason string) {
	r.metrics.IngressRejected(reason)
	r.logger.Debug("submission dropped", "session_id", sessionID, "reason", reason)
}

// forward sends msg upstream on its own goroutine. The send outlives the
// submitting connection but is bounded by the send timeout.
func (r *Relay) forward(ctx context.Context, msg store.Message) {
	if !r.channel.Configured() {
		r.logger.Debug("upstream not configured, not forwarding", "id", msg.ID)
		return
	}

	text := FormatOutbound(msg.Author, r.cfg.SourceLabel, msg.Content)
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.SendTimeout)

	r.forwards.Add(1)
	go func() {
		defer r.forwards.Done()
		defer cancel()

		if err := r.channel.Send(sendCtx, text); err != nil {
			if errors.Is(err, channel.ErrNotConfigured) {
				return
			}
			r.metrics.ForwardFailed()
			r.logger.Error("failed to forward message upstream",
				"id", msg.ID,
				"upstream", r.channel.Name(),
				"status", channel.StatusCode(err),
				"error", err,
			)
			return
		}
		r.logger.Debug("forwarded message upstream", "id", msg.ID, "upstream", r.channel.Name())
	}()
}
