// ABOUTME: HTTP route table for the relay
// ABOUTME: chi router with CORS, metrics, JSON endpoints, websocket, and static pages

package gateway

import (
	"net/http"
	"path/filepath"
	"slices"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// routes builds the handler tree. Optional routes (static pages, metrics)
// are only mounted when configured.
func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()

	// Metrics middleware first to capture all requests
	r.Use(g.metrics.Middleware)
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   g.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", g.handleRoot)
	r.Get("/health", g.handleHealth)
	r.Get("/api/messages", g.handleListMessages)
	r.Get("/api/discord-messages", g.handleListMessages)
	r.Get("/ws", g.handleWebSocket)

	if dir := g.config.Server.StaticDir; dir != "" {
		r.Get("/chat", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, filepath.Join(dir, "chat.html"))
		})
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}

	if g.config.Metrics.Enabled {
		r.Handle(g.config.Metrics.Path, g.metrics.Handler())
	}

	return r
}

func (g *Gateway) allowedOrigins() []string {
	if len(g.config.Server.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return g.config.Server.AllowedOrigins
}

// checkOrigin applies the CORS origin list to websocket upgrades.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // Non-browser clients (the TUI) send no Origin
	}
	allowed := g.allowedOrigins()
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}
