// ABOUTME: Periodic reconciliation of the external channel into the feed
// ABOUTME: Polls, drops bot/empty/duplicate messages, and commits the rest in batch order

package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/2389/chatrelay/internal/channel"
	"github.com/2389/chatrelay/internal/store"
)

// Reconciler pulls new remote messages into the relay on a fixed interval.
type Reconciler struct {
	relay  *Relay
	logger *slog.Logger
}

// NewReconciler creates a reconciler driving r.
func NewReconciler(r *Relay) *Reconciler {
	return &Reconciler{
		relay:  r,
		logger: r.logger.With("component", "reconciler"),
	}
}

// Run reconciles once immediately and then every poll interval until ctx is
// cancelled. Passes never overlap: a slow poll delays the next tick.
func (rc *Reconciler) Run(ctx context.Context) error {
	interval := rc.relay.cfg.PollInterval
	rc.logger.Info("reconciler started", "interval", interval, "upstream", rc.relay.channel.Name())

	rc.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rc.logger.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			rc.runOnce(ctx)
		}
	}
}

func (rc *Reconciler) runOnce(ctx context.Context) {
	added, err := rc.ReconcileOnce(ctx)
	switch {
	case errors.Is(err, channel.ErrNotConfigured):
		rc.logger.Debug("upstream not configured, skipping poll")
	case ctx.Err() != nil:
		// Shutting down
	case err != nil:
		rc.logger.Warn("reconcile failed",
			"upstream", rc.relay.channel.Name(),
			"status", channel.StatusCode(err),
			"error", err,
		)
	case added > 0:
		rc.logger.Info("ingested remote messages", "count", added)
	}
}

// ReconcileOnce performs a single poll and commits every new remote message.
// It returns channel.ErrNotConfigured without touching the network when the
// channel has no credentials.
func (rc *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	r := rc.relay
	if !r.channel.Configured() {
		return 0, channel.ErrNotConfigured
	}

	r.metrics.ReconcileRun()

	pollCtx, cancel := context.WithTimeout(ctx, r.cfg.PollTimeout)
	defer cancel()

	batch, err := r.channel.Poll(pollCtx, r.cfg.PollLimit)
	if err != nil {
		r.metrics.ReconcileFailed(failureReason(err))
		return 0, err
	}

	added := r.ingest(channel.Filter(batch))
	r.metrics.ReconcileAdded(added)
	return added, nil
}

// ingest commits remote messages not already in history, in batch order.
// The membership check and the commit share the relay lock so concurrent
// passes cannot both admit the same remote ID.
func (r *Relay) ingest(batch []channel.RemoteMessage) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(batch))
	added := 0
	for _, rm := range batch {
		if rm.ID == "" || seen[rm.ID] || r.history.Contains(rm.ID) {
			continue
		}
		seen[rm.ID] = true

		author := rm.Author
		if author == "" {
			author = r.fallback
		}
		ts := rm.Timestamp
		if ts.IsZero() {
			ts = r.now().UTC()
		}

		r.commitLocked(store.Message{
			ID:          store.NewID(r.now()),
			RemoteID:    rm.ID,
			Content:     rm.Content,
			ContentHTML: r.renderer.HTML(rm.Content),
			Author:      author,
			Timestamp:   ts,
			Origin:      store.OriginRemote,
		})
		added++
	}
	return added
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case channel.StatusCode(err) != 0:
		return "status"
	default:
		return "transport"
	}
}
