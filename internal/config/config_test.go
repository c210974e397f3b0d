// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, env overlay, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks the overlay variables so the host environment cannot leak
// into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "DISCORD_BOT_TOKEN", "DISCORD_CHANNEL_ID", "MATRIX_ACCESS_TOKEN", "CHATRELAY_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "relay.yaml", `
server:
  http_addr: "0.0.0.0:8080"
  static_dir: "./public"
  allowed_origins:
    - "https://example.com"

upstream:
  kind: "discord"
  discord:
    bot_token: "bot-token"
    channel_id: "123456"

relay:
  history_size: 50
  poll_interval: "2s"
  poll_limit: 25
  poll_timeout: "3s"
  send_timeout: "4s"
  default_author: "Guest"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "./public", cfg.Server.StaticDir)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "bot-token", cfg.Upstream.Discord.BotToken)
	assert.Equal(t, "123456", cfg.Upstream.Discord.ChannelID)
	assert.Equal(t, 50, cfg.Relay.HistorySize)
	assert.Equal(t, 2*time.Second, cfg.Relay.PollInterval)
	assert.Equal(t, 25, cfg.Relay.PollLimit)
	assert.Equal(t, 3*time.Second, cfg.Relay.PollTimeout)
	assert.Equal(t, 4*time.Second, cfg.Relay.SendTimeout)
	assert.Equal(t, "Guest", cfg.Relay.DefaultAuthor)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)

	// Unset fields keep their defaults
	assert.Equal(t, 20, cfg.Relay.ListingLimit)
	assert.Equal(t, "website", cfg.Relay.SourceLabel)
	assert.Equal(t, "Discord User", cfg.Upstream.AuthorFallback)
}

func TestLoad_ValidTOML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "relay.toml", `
[server]
http_addr = ":4000"

[upstream]
kind = "matrix"

[upstream.matrix]
homeserver = "https://matrix.example.org"
user_id = "@relay:example.org"
access_token = "syt_token"
room_id = "!room:example.org"
ignore_users = ["@other-bot:example.org"]

[relay]
poll_interval = "1m"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Server.HTTPAddr)
	assert.Equal(t, KindMatrix, cfg.Upstream.Kind)
	assert.Equal(t, "https://matrix.example.org", cfg.Upstream.Matrix.Homeserver)
	assert.Equal(t, "!room:example.org", cfg.Upstream.Matrix.RoomID)
	assert.Equal(t, []string{"@other-bot:example.org"}, cfg.Upstream.Matrix.IgnoreUsers)
	assert.Equal(t, time.Minute, cfg.Relay.PollInterval)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, KindDiscord, cfg.Upstream.Kind)
	assert.Equal(t, 100, cfg.Relay.HistorySize)
	assert.Equal(t, 5*time.Second, cfg.Relay.PollInterval)
	assert.Equal(t, 10, cfg.Relay.PollLimit)
	assert.Equal(t, 10*time.Second, cfg.Relay.PollTimeout)
	assert.Equal(t, 10*time.Second, cfg.Relay.SendTimeout)
	assert.Equal(t, 64, cfg.Relay.SessionQueue)
	assert.Equal(t, "Anonymous", cfg.Relay.DefaultAuthor)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.HTTPAddr)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_RELAY_TOKEN", "expanded-token")
	t.Setenv("TEST_RELAY_CHANNEL", "999")

	path := writeConfig(t, "relay.yaml", `
upstream:
  discord:
    bot_token: "${TEST_RELAY_TOKEN}"
    channel_id: "${TEST_RELAY_CHANNEL}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-token", cfg.Upstream.Discord.BotToken)
	assert.Equal(t, "999", cfg.Upstream.Discord.ChannelID)
}

func TestLoad_EnvOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("DISCORD_BOT_TOKEN", "env-token")
	t.Setenv("DISCORD_CHANNEL_ID", "42")
	t.Setenv("MATRIX_ACCESS_TOKEN", "env-matrix")
	t.Setenv("CHATRELAY_LOG_LEVEL", "warn")

	path := writeConfig(t, "relay.yaml", `
server:
  http_addr: ":9999"
upstream:
  discord:
    bot_token: "file-token"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Server.HTTPAddr)
	assert.Equal(t, "env-token", cfg.Upstream.Discord.BotToken)
	assert.Equal(t, "42", cfg.Upstream.Discord.ChannelID)
	assert.Equal(t, "env-matrix", cfg.Upstream.Matrix.AccessToken)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "relay.yaml", `
relay:
  poll_interval: "soon"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "relay.yaml", "server: [unterminated")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"missing http addr", func(c *Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
		{"tailscale without http addr", func(c *Config) {
			c.Server.HTTPAddr = ""
			c.Tailscale.Enabled = true
			c.Tailscale.Hostname = "relay"
		}, ""},
		{"tailscale without hostname", func(c *Config) { c.Tailscale.Enabled = true }, "tailscale.hostname"},
		{"unknown kind", func(c *Config) { c.Upstream.Kind = "irc" }, "upstream.kind"},
		{"none kind", func(c *Config) { c.Upstream.Kind = KindNone }, ""},
		{"history too small", func(c *Config) { c.Relay.HistorySize = 0 }, "history_size"},
		{"history too large", func(c *Config) { c.Relay.HistorySize = 10001 }, "history_size"},
		{"poll limit too large", func(c *Config) { c.Relay.PollLimit = 101 }, "poll_limit"},
		{"listing limit zero", func(c *Config) { c.Relay.ListingLimit = 0 }, "listing_limit"},
		{"zero session queue", func(c *Config) { c.Relay.SessionQueue = 0 }, "session_queue"},
		{"zero poll interval", func(c *Config) { c.Relay.PollInterval = 0 }, "poll_interval"},
		{"negative send timeout", func(c *Config) { c.Relay.SendTimeout = -time.Second }, "send_timeout"},
		{"bad metrics path", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Path = "metrics"
		}, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Run("explicit env", func(t *testing.T) {
		t.Setenv("CHATRELAY_CONFIG", "/etc/chatrelay.toml")
		assert.Equal(t, "/etc/chatrelay.toml", DefaultPath())
	})

	t.Run("xdg", func(t *testing.T) {
		t.Setenv("CHATRELAY_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		assert.Equal(t, filepath.Join("/xdg", "chatrelay", "relay.yaml"), DefaultPath())
	})

	t.Run("home", func(t *testing.T) {
		t.Setenv("CHATRELAY_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/relay")
		assert.Equal(t, filepath.Join("/home/relay", ".config", "chatrelay", "relay.yaml"), DefaultPath())
	})
}
