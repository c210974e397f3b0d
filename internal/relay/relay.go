// ABOUTME: Relay engine tying history, hub, and the external channel together
// ABOUTME: Serializes commits and joins so snapshots and broadcasts never overlap

package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/2389/chatrelay/internal/channel"
	"github.com/2389/chatrelay/internal/config"
	"github.com/2389/chatrelay/internal/hub"
	"github.com/2389/chatrelay/internal/metrics"
	"github.com/2389/chatrelay/internal/render"
	"github.com/2389/chatrelay/internal/store"
)

// Options configures a Relay. History, Hub, and Channel are required.
type Options struct {
	History  *store.History
	Hub      *hub.Hub
	Channel  channel.Channel
	Config   config.RelayConfig
	Renderer *render.Renderer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// RemoteAuthorFallback names remote messages whose author is empty.
	RemoteAuthorFallback string

	// Now overrides the clock for tests.
	Now func() time.Time
}

// Relay owns the unified feed. Every mutation goes through Commit, which
// appends to history and publishes to the hub as one step; Connect takes the
// same lock, so a joining session's snapshot and the new_message stream it
// receives afterwards never overlap or leave a gap.
type Relay struct {
	mu sync.Mutex

	history  *store.History
	hub      *hub.Hub
	channel  channel.Channel
	cfg      config.RelayConfig
	fallback string
	renderer *render.Renderer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	forwards sync.WaitGroup
}

// New creates a relay from opts, filling unset relay settings with defaults.
func New(opts Options) *Relay {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.New()
	}
	fallback := opts.RemoteAuthorFallback
	if fallback == "" {
		fallback = "Discord User"
	}

	return &Relay{
		history:  opts.History,
		hub:      opts.Hub,
		channel:  opts.Channel,
		cfg:      withDefaults(opts.Config),
		fallback: fallback,
		renderer: renderer,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "relay"),
		now:      now,
	}
}

// withDefaults fills zero-valued settings so a partially built RelayConfig
// (as in tests) behaves like the loaded defaults.
func withDefaults(cfg config.RelayConfig) config.RelayConfig {
	def := config.Default().Relay
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if cfg.PollLimit <= 0 {
		cfg.PollLimit = def.PollLimit
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = def.MaxContentLength
	}
	if cfg.DefaultAuthor == "" {
		cfg.DefaultAuthor = def.DefaultAuthor
	}
	if cfg.SourceLabel == "" {
		cfg.SourceLabel = def.SourceLabel
	}
	return cfg
}

// Channel returns the external channel the relay mirrors.
func (r *Relay) Channel() channel.Channel {
	return r.channel
}

// Commit appends msg to history and publishes it, atomically with respect to
// other commits and joins.
func (r *Relay) Commit(msg store.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commitLocked(msg)
}

func (r *Relay) commitLocked(msg store.Message) {
	r.history.Append(msg)
	r.hub.Publish(msg)
	r.metrics.MessageCommitted(string(msg.Origin))
}

// Connect registers s with the hub. The session receives the history as of
// this instant followed by every later commit.
func (r *Relay) Connect(s *hub.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hub.Join(s)
}

// Disconnect unregisters s. Safe to call for sessions already evicted.
func (r *Relay) Disconnect(s *hub.Session) {
	r.hub.Leave(s)
}

// Sessions returns the number of connected sessions.
func (r *Relay) Sessions() int {
	return r.hub.Count()
}

// Wait blocks until every in-flight upstream forward has finished.
func (r *Relay) Wait() {
	r.forwards.Wait()
}
