// ABOUTME: Entry point for the chatrelay server
// ABOUTME: Bridges web clients and a Discord or Matrix channel through one live feed

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/chatrelay/internal/channel"
	"github.com/2389/chatrelay/internal/config"
	"github.com/2389/chatrelay/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _           _                 _
   ___| |__   __ _| |_ _ __ ___| | __ _ _   _
  / __| '_ \ / _' | __| '__/ _ \ |/ _' | | | |
 | (__| | | | (_| | |_| | |  __/ | (_| | |_| |
  \___|_| |_|\__,_|\__|_|  \___|_|\__,_|\__, |
                                        |___/
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: chatrelay <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                  Start the relay server")
		fmt.Println("  init                   Create a new config file interactively")
		fmt.Println("  health                 Check relay health")
		fmt.Println("  messages [--limit N]   List recent upstream messages")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "messages":
		err = runMessages(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Upstream:  %s", cfg.Upstream.Kind)
	if channel.Configured(cfg.Upstream) {
		green.Println(" [configured]")
	} else {
		yellow.Println(" [missing credentials, relay runs local-only]")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		} else if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting chatrelay",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"upstream", cfg.Upstream.Kind,
		"bot_token", tokenState(cfg.Upstream),
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func tokenState(u config.UpstreamConfig) string {
	if channel.Configured(u) {
		return "Configured"
	}
	return "Missing"
}

// baseURL turns a listen address into a URL for local CLI calls.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func getJSON(ctx context.Context, url string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	status, body, err := getJSON(ctx, baseURL(cfg.Server.HTTPAddr)+"/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", status)
	}

	var health gateway.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("decoding health: %w", err)
	}

	fmt.Printf("healthy (upstream %s, bot token %s, %d sessions)\n",
		health.Upstream, strings.ToLower(health.BotToken), health.Sessions)
	return nil
}

func runMessages(ctx context.Context, args []string) error {
	limit := ""
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--limit" || arg == "-n":
			if i+1 >= len(args) {
				return fmt.Errorf("--limit requires a value")
			}
			limit = args[i+1]
			i++
		case strings.HasPrefix(arg, "--limit="):
			limit = strings.TrimPrefix(arg, "--limit=")
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := baseURL(cfg.Server.HTTPAddr) + "/api/messages"
	if limit != "" {
		url += "?limit=" + limit
	}

	status, body, err := getJSON(ctx, url)
	if err != nil {
		return fmt.Errorf("listing messages failed: %w", err)
	}
	if status != http.StatusOK {
		var apiErr gateway.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, status)
		}
		return fmt.Errorf("listing messages: status %d", status)
	}

	var list gateway.ListMessagesResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("decoding messages: %w", err)
	}

	gray := color.New(color.FgHiBlack)
	cyan := color.New(color.FgCyan)
	for _, m := range list.Messages {
		gray.Printf("%s ", m.Timestamp.Local().Format("Jan 02 15:04"))
		cyan.Printf("%s", m.Author)
		fmt.Printf(": %s\n", m.Content)
	}
	gray.Printf("%d message(s)\n", list.Count)
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("chatrelay configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", ":3000")
	staticDir := prompt(reader, "Static client directory (empty to disable /chat)", "")

	fmt.Println("\n--- Upstream Channel ---")
	kind := prompt(reader, "Upstream kind (discord/matrix/none)", config.KindDiscord)

	var upstream strings.Builder
	upstream.WriteString("upstream:\n")
	upstream.WriteString(fmt.Sprintf("  kind: %q\n", kind))
	switch kind {
	case config.KindDiscord:
		channelID := prompt(reader, "Discord channel ID", "")
		upstream.WriteString("  discord:\n")
		upstream.WriteString("    bot_token: \"${DISCORD_BOT_TOKEN}\"\n")
		upstream.WriteString(fmt.Sprintf("    channel_id: %q\n", channelID))
	case config.KindMatrix:
		homeserver := prompt(reader, "Matrix homeserver", "https://matrix.org")
		userID := prompt(reader, "Matrix user ID", "")
		roomID := prompt(reader, "Matrix room ID", "")
		upstream.WriteString("  matrix:\n")
		upstream.WriteString(fmt.Sprintf("    homeserver: %q\n", homeserver))
		upstream.WriteString(fmt.Sprintf("    user_id: %q\n", userID))
		upstream.WriteString("    access_token: \"${MATRIX_ACCESS_TOKEN}\"\n")
		upstream.WriteString(fmt.Sprintf("    room_id: %q\n", roomID))
	}

	fmt.Println("\n--- Tailscale Configuration ---")
	tailscaleEnabled := isYes(prompt(reader, "Enable Tailscale?", "no"))

	var tsHostname, tsAuthKey string
	var tsEphemeral, tsHTTPS, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "chatrelay")
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		tsEphemeral = isYes(prompt(reader, "Ephemeral node?", "no"))
		tsFunnel = isYes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
		if !tsFunnel {
			tsHTTPS = isYes(prompt(reader, "Serve HTTPS inside the tailnet?", "no"))
		}
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# chatrelay configuration\n")
	cfg.WriteString("# Generated by chatrelay init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	if staticDir != "" {
		cfg.WriteString(fmt.Sprintf("  static_dir: %q\n", staticDir))
	}
	cfg.WriteString("\n")

	cfg.WriteString(upstream.String())
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", tailscaleEnabled))
	if tailscaleEnabled {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", tsHostname))
		if tsAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: %q\n", tsAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", tsEphemeral))
		cfg.WriteString(fmt.Sprintf("  https: %t\n", tsHTTPS))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", tsFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("relay:\n")
	cfg.WriteString("  history_size: 100\n")
	cfg.WriteString("  poll_interval: \"5s\"\n")
	cfg.WriteString("  poll_limit: 10\n")
	cfg.WriteString("  listing_limit: 20\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Tokens stay in the environment, but auth keys may be inlined.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	switch kind {
	case config.KindDiscord:
		fmt.Println("  DISCORD_BOT_TOKEN=... chatrelay serve")
	case config.KindMatrix:
		fmt.Println("  MATRIX_ACCESS_TOKEN=... chatrelay serve")
	default:
		fmt.Println("  chatrelay serve")
	}

	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
