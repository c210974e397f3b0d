package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/2389/chatrelay/internal/config"
)

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", baseURL(":3000"))
	assert.Equal(t, "http://127.0.0.1:8080", baseURL("127.0.0.1:8080"))
}

func TestTokenState(t *testing.T) {
	assert.Equal(t, "Missing", tokenState(config.UpstreamConfig{Kind: config.KindNone}))
	assert.Equal(t, "Configured", tokenState(config.UpstreamConfig{
		Kind:    config.KindDiscord,
		Discord: config.DiscordConfig{BotToken: "t", ChannelID: "c"},
	}))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info"}, &buf)

	logger.With("component", "relay").Info("message admitted", "id", "42")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INF message admitted")
	assert.Contains(t, out, "component=relay")
	assert.Contains(t, out, "id=42")
	assert.NotContains(t, out, "hidden")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
