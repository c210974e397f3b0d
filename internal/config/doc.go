// Package config handles configuration loading for chatrelay.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion, then overlaid with a handful of plain environment variables.
// A missing file is not an error: every field has a default, and the relay
// can be run from the environment alone.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CHATRELAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/chatrelay/relay.yaml
//  3. ~/.config/chatrelay/relay.yaml
//
// Files ending in .toml are decoded as TOML.
//
// # Environment Variable Expansion
//
//	upstream:
//	  discord:
//	    bot_token: "${DISCORD_BOT_TOKEN}"
//
// # Environment Overlay
//
// These override the file when set:
//
//	PORT                 server.http_addr becomes ":$PORT"
//	DISCORD_BOT_TOKEN    upstream.discord.bot_token
//	DISCORD_CHANNEL_ID   upstream.discord.channel_id
//	MATRIX_ACCESS_TOKEN  upstream.matrix.access_token
//	CHATRELAY_LOG_LEVEL  logging.level
//
// # Configuration Sections
//
//	server:
//	  http_addr: ":3000"
//	  static_dir: "./public"       # enables /chat and /static/*
//	  allowed_origins: ["*"]
//
//	upstream:
//	  kind: "discord"              # discord, matrix, none
//	  author_fallback: "Discord User"
//	  matrix:
//	    homeserver: "https://matrix.org"
//	    user_id: "@relay:matrix.org"
//	    access_token: "${MATRIX_ACCESS_TOKEN}"
//	    room_id: "!abc:matrix.org"
//
//	relay:
//	  history_size: 100
//	  poll_interval: "5s"
//	  poll_limit: 10
//	  poll_timeout: "10s"
//	  send_timeout: "10s"
//	  listing_limit: 20
//	  session_queue: 64
//	  max_content_length: 2000
//	  default_author: "Anonymous"
//	  source_label: "website"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Tailscale settings match the gateway's tsnet listener:
//
//	tailscale:
//	  enabled: false
//	  hostname: "chatrelay"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: false
//	  funnel: false
package config
