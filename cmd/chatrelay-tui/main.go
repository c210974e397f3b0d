// ABOUTME: Terminal chat client for a chatrelay server
// ABOUTME: Joins the live feed over WebSocket and posts as a named author

package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// wsURL derives the feed URL from a server base URL.
func wsURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parsing server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func main() {
	server := flag.String("server", "http://localhost:3000", "Relay server URL")
	author := flag.String("author", "", "Display name for your messages")
	flag.Parse()

	name := *author
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = "Anonymous"
	}

	target, err := wsURL(*server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(target, name), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
