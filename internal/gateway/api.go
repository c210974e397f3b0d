// ABOUTME: JSON endpoints: service banner, health, and upstream message listing
// ABOUTME: Listing reads straight from the upstream channel, not from history

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/chatrelay/internal/channel"
)

// maxListingLimit caps ?limit= on the listing endpoint.
const maxListingLimit = 100

// RootResponse is the service banner.
type RootResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Endpoints []string  `json:"endpoints"`
}

// HealthResponse reports liveness and upstream configuration.
type HealthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Upstream     string    `json:"upstream"`
	UpstreamKind string    `json:"upstream_kind"`
	BotToken     string    `json:"bot_token"` // "Configured" or "Missing"
	Sessions     int       `json:"sessions"`
}

// ListedMessage is one upstream message in a listing response.
type ListedMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// ListMessagesResponse is the success body of the listing endpoint.
type ListMessagesResponse struct {
	Success  bool            `json:"success"`
	Messages []ListedMessage `json:"messages"`
	Count    int             `json:"count"`
}

// ErrorResponse is the failure body of the listing endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Status  int    `json:"status,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleRoot describes the service.
func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	endpoints := []string{"/health", "/api/messages", "/api/discord-messages", "/ws"}
	if g.config.Server.StaticDir != "" {
		endpoints = append(endpoints, "/chat")
	}
	if g.config.Metrics.Enabled {
		endpoints = append(endpoints, g.config.Metrics.Path)
	}

	writeJSON(w, http.StatusOK, RootResponse{
		Status:    "chatrelay online",
		Timestamp: time.Now().UTC(),
		Endpoints: endpoints,
	})
}

// handleHealth returns 200 while the process is alive. It never touches the
// upstream channel.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	token := "Missing"
	if g.channel.Configured() {
		token = "Configured"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "OK",
		Timestamp:    time.Now().UTC(),
		Upstream:     g.channel.Name(),
		UpstreamKind: g.config.Upstream.Kind,
		BotToken:     token,
		Sessions:     g.relay.Sessions(),
	})
}

// handleListMessages handles GET /api/messages?limit=N.
// Fetches recent messages from the upstream channel, bot and empty ones removed.
func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
	if !g.channel.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: channel.ErrNotConfigured.Error(),
		})
		return
	}

	// Parse optional limit parameter (default from config, max 100)
	limit := g.config.Relay.ListingLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxListingLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.config.Relay.PollTimeout)
	defer cancel()

	msgs, err := g.channel.Poll(ctx, limit)
	if err != nil {
		g.logger.Warn("listing upstream messages failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, listingError(err))
		return
	}

	filtered := channel.Filter(msgs)
	resp := ListMessagesResponse{
		Success:  true,
		Messages: make([]ListedMessage, len(filtered)),
		Count:    len(filtered),
	}
	for i, m := range filtered {
		resp.Messages[i] = ListedMessage{
			ID:        m.ID,
			Content:   m.Content,
			Author:    m.Author,
			Timestamp: m.Timestamp,
			Type:      g.channel.Name(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func listingError(err error) ErrorResponse {
	var se *channel.StatusError
	if errors.As(err, &se) {
		return ErrorResponse{
			Error:   fmt.Sprintf("upstream error: %d", se.Code),
			Status:  se.Code,
			Details: se.Body,
		}
	}
	return ErrorResponse{
		Error:   "upstream request failed",
		Details: err.Error(),
	}
}
