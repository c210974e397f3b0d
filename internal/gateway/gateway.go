// ABOUTME: Gateway orchestrator that wires the relay and serves it over HTTP
// ABOUTME: Manages the reconciler, HTTP server, optional tailnet listener, and shutdown

package gateway

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"tailscale.com/tsnet"

	"github.com/2389/chatrelay/internal/channel"
	"github.com/2389/chatrelay/internal/config"
	"github.com/2389/chatrelay/internal/hub"
	"github.com/2389/chatrelay/internal/metrics"
	"github.com/2389/chatrelay/internal/relay"
	"github.com/2389/chatrelay/internal/render"
	"github.com/2389/chatrelay/internal/store"
)

// Gateway owns every long-lived component of a running relay.
type Gateway struct {
	config      *config.Config
	history     *store.History
	hub         *hub.Hub
	channel     channel.Channel
	relay       *relay.Relay
	reconciler  *relay.Reconciler
	metrics     *metrics.Metrics
	upgrader    websocket.Upgrader
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// Option customizes a Gateway.
type Option func(*options)

type options struct {
	channel channel.Channel
}

// WithChannel uses ch instead of building one from the upstream config.
func WithChannel(ch channel.Channel) Option {
	return func(o *options) { o.channel = ch }
}

// New wires history, hub, channel, relay, and the HTTP handler from cfg.
// No listener is opened until Run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ch := o.channel
	if ch == nil {
		var err error
		ch, err = channel.New(cfg.Upstream, logger)
		if err != nil {
			return nil, fmt.Errorf("creating upstream channel: %w", err)
		}
	}

	m := metrics.New()
	history := store.NewHistory(cfg.Relay.HistorySize)
	h := hub.New(history, logger, hub.WithMetrics(m))

	r := relay.New(relay.Options{
		History:              history,
		Hub:                  h,
		Channel:              ch,
		Config:               cfg.Relay,
		Renderer:             render.New(),
		Metrics:              m,
		Logger:               logger,
		RemoteAuthorFallback: cfg.Upstream.AuthorFallback,
	})

	gw := &Gateway{
		config:     cfg,
		history:    history,
		hub:        h,
		channel:    ch,
		relay:      r,
		reconciler: relay.NewReconciler(r),
		metrics:    m,
		logger:     logger.With("component", "gateway"),
	}
	gw.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     gw.checkOrigin,
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	gw.logger.Info("upstream channel ready",
		"upstream", ch.Name(),
		"configured", ch.Configured(),
	)

	return gw, nil
}

// Handler returns the HTTP handler serving every route.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Relay exposes the relay engine.
func (g *Gateway) Relay() *relay.Relay {
	return g.relay
}

// setupTCPListener creates the standard TCP listener for HTTP.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// Run opens the listener, then serves HTTP and runs the reconciler until ctx
// is canceled or the server fails. Shutdown runs on both paths.
// Returns nil on graceful shutdown, or the first server error.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		return g.reconciler.Run(egCtx)
	})

	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Tailnet exposure modes, chosen from the tailscale config.
const (
	tailnetHTTP   = "http"
	tailnetHTTPS  = "https"
	tailnetFunnel = "funnel"
)

func tailnetMode(ts config.TailscaleConfig) string {
	switch {
	case ts.Funnel:
		return tailnetFunnel
	case ts.HTTPS:
		return tailnetHTTPS
	default:
		return tailnetHTTP
	}
}

// newTSNetServer prepares (but does not start) the tailnet node. The state
// dir defaults to ~/.local/share/chatrelay/tailscale and the auth key falls
// back to TS_AUTHKEY.
func newTSNetServer(ts config.TailscaleConfig) (*tsnet.Server, error) {
	dir := ts.StateDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("no home directory for tailscale state, set tailscale.state_dir: %w", err)
		}
		dir = filepath.Join(home, ".local", "share", "chatrelay", "tailscale")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	key := cmp.Or(ts.AuthKey, os.Getenv("TS_AUTHKEY"))
	if key == "" {
		return nil, errors.New("tailscale auth key required: set tailscale.auth_key or TS_AUTHKEY")
	}

	return &tsnet.Server{
		Hostname:  ts.Hostname,
		Dir:       dir,
		Ephemeral: ts.Ephemeral,
		AuthKey:   key,
	}, nil
}

// setupTailscaleListener joins the tailnet and returns the relay's single
// listener in the configured mode.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	ts := g.config.Tailscale
	srv, err := newTSNetServer(ts)
	if err != nil {
		return nil, err
	}

	status, err := srv.Up(ctx)
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	mode := tailnetMode(ts)
	ln, err := listenTailnet(srv, mode)
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("tailnet %s listener: %w", mode, err)
	}
	g.tsnetServer = srv

	var ip, dnsName string
	if len(status.TailscaleIPs) > 0 {
		ip = status.TailscaleIPs[0].String()
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("joined tailnet",
		"hostname", ts.Hostname,
		"mode", mode,
		"tailscale_ip", ip,
		"dns_name", dnsName,
		"ephemeral", ts.Ephemeral,
	)
	return ln, nil
}

// listenTailnet opens :80 for plain mode, or :443 with tailnet certificates
// for https, or :443 on the public internet for funnel.
func listenTailnet(srv *tsnet.Server, mode string) (net.Listener, error) {
	switch mode {
	case tailnetFunnel:
		return srv.ListenFunnel("tcp", ":443")
	case tailnetHTTPS:
		ln, err := srv.Listen("tcp", ":443")
		if err != nil {
			return nil, err
		}
		lc, err := srv.LocalClient()
		if err != nil {
			_ = ln.Close()
			return nil, err
		}
		return tls.NewListener(ln, &tls.Config{
			GetCertificate: lc.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		}), nil
	default:
		return srv.Listen("tcp", ":80")
	}
}

// Shutdown stops the HTTP server, disconnects every session, and waits for
// in-flight upstream forwards, bounded by ctx.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	// WebSocket connections are hijacked and not tracked by http.Server;
	// closing the hub closes their sessions, which ends each writer.
	g.hub.Close()

	forwarded := make(chan struct{})
	go func() {
		g.relay.Wait()
		close(forwarded)
	}()
	select {
	case <-forwarded:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for upstream forwards: %w", ctx.Err()))
	}

	if g.tsnetServer != nil {
		if err := g.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}
