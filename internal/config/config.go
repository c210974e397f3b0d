// ABOUTME: Configuration loading and parsing for chatrelay
// ABOUTME: Supports YAML or TOML files with env var expansion, env overlay, and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Upstream kinds.
const (
	KindDiscord = "discord"
	KindMatrix  = "matrix"
	KindNone    = "none"
)

// Config represents the complete chatrelay configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Upstream  UpstreamConfig  `yaml:"upstream" toml:"upstream"`
	Relay     RelayConfig     `yaml:"relay" toml:"relay"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr       string   `yaml:"http_addr" toml:"http_addr"`
	StaticDir      string   `yaml:"static_dir" toml:"static_dir"` // Serves /chat and /static/* when set
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve HTTPS with tailnet certs on :443
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// UpstreamConfig selects and configures the external chat channel
type UpstreamConfig struct {
	Kind           string        `yaml:"kind" toml:"kind"`                       // discord, matrix, none
	AuthorFallback string        `yaml:"author_fallback" toml:"author_fallback"` // Used when a remote author has no name
	Discord        DiscordConfig `yaml:"discord" toml:"discord"`
	Matrix         MatrixConfig  `yaml:"matrix" toml:"matrix"`
}

// DiscordConfig holds the bot credentials and target channel
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token" toml:"bot_token"`
	ChannelID string `yaml:"channel_id" toml:"channel_id"`
}

// MatrixConfig holds Matrix room configuration
type MatrixConfig struct {
	Homeserver  string   `yaml:"homeserver" toml:"homeserver"`
	UserID      string   `yaml:"user_id" toml:"user_id"`
	AccessToken string   `yaml:"access_token" toml:"access_token"`
	RoomID      string   `yaml:"room_id" toml:"room_id"`
	IgnoreUsers []string `yaml:"ignore_users" toml:"ignore_users"` // Treated as bots
}

// RelayConfig holds feed sizing and timing
type RelayConfig struct {
	HistorySize      int    `yaml:"history_size" toml:"history_size"`
	PollLimit        int    `yaml:"poll_limit" toml:"poll_limit"`
	ListingLimit     int    `yaml:"listing_limit" toml:"listing_limit"`
	SessionQueue     int    `yaml:"session_queue" toml:"session_queue"`
	MaxContentLength int    `yaml:"max_content_length" toml:"max_content_length"`
	DefaultAuthor    string `yaml:"default_author" toml:"default_author"`
	SourceLabel      string `yaml:"source_label" toml:"source_label"`

	PollInterval time.Duration `yaml:"-" toml:"-"`
	PollTimeout  time.Duration `yaml:"-" toml:"-"`
	SendTimeout  time.Duration `yaml:"-" toml:"-"`

	// Raw string values for file unmarshaling
	PollIntervalRaw string `yaml:"poll_interval" toml:"poll_interval"`
	PollTimeoutRaw  string `yaml:"poll_timeout" toml:"poll_timeout"`
	SendTimeoutRaw  string `yaml:"send_timeout" toml:"send_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// envOverlay carries the plain environment variables a container deployment
// sets without any config file.
type envOverlay struct {
	Port              string `env:"PORT"`
	DiscordBotToken   string `env:"DISCORD_BOT_TOKEN"`
	DiscordChannelID  string `env:"DISCORD_CHANNEL_ID"`
	MatrixAccessToken string `env:"MATRIX_ACCESS_TOKEN"`
	LogLevel          string `env:"CHATRELAY_LOG_LEVEL"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       ":3000",
			AllowedOrigins: []string{"*"},
		},
		Upstream: UpstreamConfig{
			Kind:           KindDiscord,
			AuthorFallback: "Discord User",
		},
		Relay: RelayConfig{
			HistorySize:      100,
			PollLimit:        10,
			ListingLimit:     20,
			SessionQueue:     64,
			MaxContentLength: 2000,
			DefaultAuthor:    "Anonymous",
			SourceLabel:      "website",
			PollIntervalRaw:  "5s",
			PollTimeoutRaw:   "10s",
			SendTimeoutRaw:   "10s",
			PollInterval:     5 * time.Second,
			PollTimeout:      10 * time.Second,
			SendTimeout:      10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A missing file (or an empty path) yields the defaults, so the relay can run
// from environment variables alone. Files ending in .toml are decoded as TOML,
// anything else as YAML. Environment variables in the format ${VAR_NAME} are
// expanded before decoding, then the plain env overlay is applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Defaults plus env
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := decode(path, expandEnvVars(string(data)), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultPath returns the config file location, in priority order:
// CHATRELAY_CONFIG, $XDG_CONFIG_HOME/chatrelay/relay.yaml, ~/.config/chatrelay/relay.yaml.
func DefaultPath() string {
	if p := os.Getenv("CHATRELAY_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "chatrelay", "relay.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "chatrelay", "relay.yaml")
	}
	return filepath.Join(home, ".config", "chatrelay", "relay.yaml")
}

func decode(path, data string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(data, cfg)
		return err
	}
	return yaml.Unmarshal([]byte(data), cfg)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv overlays the well-known environment variables. Only non-empty
// values override the file.
func applyEnv(cfg *Config) error {
	var e envOverlay
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if e.Port != "" {
		cfg.Server.HTTPAddr = ":" + strings.TrimPrefix(e.Port, ":")
	}
	if e.DiscordBotToken != "" {
		cfg.Upstream.Discord.BotToken = e.DiscordBotToken
	}
	if e.DiscordChannelID != "" {
		cfg.Upstream.Discord.ChannelID = e.DiscordChannelID
	}
	if e.MatrixAccessToken != "" {
		cfg.Upstream.Matrix.AccessToken = e.MatrixAccessToken
	}
	if e.LogLevel != "" {
		cfg.Logging.Level = e.LogLevel
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Upstream.Kind {
	case KindDiscord, KindMatrix, KindNone:
	default:
		return fmt.Errorf("upstream.kind must be one of discord, matrix, none (got %q)", c.Upstream.Kind)
	}

	if c.Relay.HistorySize < 1 || c.Relay.HistorySize > 10000 {
		return fmt.Errorf("relay.history_size must be between 1 and 10000 (got %d)", c.Relay.HistorySize)
	}
	if c.Relay.PollLimit < 1 || c.Relay.PollLimit > 100 {
		return fmt.Errorf("relay.poll_limit must be between 1 and 100 (got %d)", c.Relay.PollLimit)
	}
	if c.Relay.ListingLimit < 1 || c.Relay.ListingLimit > 100 {
		return fmt.Errorf("relay.listing_limit must be between 1 and 100 (got %d)", c.Relay.ListingLimit)
	}
	if c.Relay.SessionQueue < 1 {
		return fmt.Errorf("relay.session_queue must be positive")
	}
	if c.Relay.MaxContentLength < 1 {
		return fmt.Errorf("relay.max_content_length must be positive")
	}

	if c.Relay.PollInterval <= 0 {
		return fmt.Errorf("relay.poll_interval must be positive")
	}
	if c.Relay.PollTimeout <= 0 {
		return fmt.Errorf("relay.poll_timeout must be positive")
	}
	if c.Relay.SendTimeout <= 0 {
		return fmt.Errorf("relay.send_timeout must be positive")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with / (got %q)", c.Metrics.Path)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"poll_interval", cfg.Relay.PollIntervalRaw, &cfg.Relay.PollInterval},
		{"poll_timeout", cfg.Relay.PollTimeoutRaw, &cfg.Relay.PollTimeout},
		{"send_timeout", cfg.Relay.SendTimeoutRaw, &cfg.Relay.SendTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
