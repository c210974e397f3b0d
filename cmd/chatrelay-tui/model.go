// ABOUTME: Bubbletea model for the relay chat client
// ABOUTME: Renders the feed in a viewport with an input line and reconnects after drops

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389/chatrelay/internal/store"
)

const reconnectDelay = 2 * time.Second

type connectedMsg struct{ c *client }

type dialFailedMsg struct{ err error }

type reconnectMsg struct{}

type model struct {
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	url    string
	author string
	dialer func(string) (*client, error)

	conn     *client
	messages []store.Message
	users    int
	lastErr  string

	ready  bool
	width  int
	height int
}

func newModel(url, author string) model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()
	ti.CharLimit = 2000
	ti.Prompt = "❯ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(Accent)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(Accent)

	return model{
		input:   ti,
		spinner: sp,
		url:     url,
		author:  author,
		dialer:  dial,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connect())
}

func (m model) connect() tea.Cmd {
	return func() tea.Msg {
		c, err := m.dialer(m.url)
		if err != nil {
			return dialFailedMsg{err: err}
		}
		return connectedMsg{c: c}
	}
}

// waitForFrame blocks until the connection delivers its next feed message.
func waitForFrame(c *client) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-c.frames
		if !ok {
			return closedMsg{}
		}
		return msg
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// header(1) + divider(1) + viewport + divider(1) + input(1) + status(1)
		vpHeight := max(msg.Height-5, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			if m.conn != nil {
				m.conn.close()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			text := m.input.Value()
			if strings.TrimSpace(text) == "" || m.conn == nil {
				return m, nil
			}
			if isExitCmd(text) {
				m.conn.close()
				return m, tea.Quit
			}
			m.input.SetValue("")
			if err := m.conn.send(text, m.author); err != nil {
				m.lastErr = err.Error()
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case connectedMsg:
		m.conn = msg.c
		m.lastErr = ""
		return m, waitForFrame(msg.c)

	case dialFailedMsg:
		m.lastErr = msg.err.Error()
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, m.connect()

	case historyMsg:
		// A fresh snapshot replaces whatever we had; it follows every (re)connect.
		m.messages = append([]store.Message(nil), msg...)
		m.refresh()
		return m, waitForFrame(m.conn)

	case newMsg:
		m.messages = append(m.messages, store.Message(msg))
		m.refresh()
		return m, waitForFrame(m.conn)

	case countMsg:
		m.users = int(msg)
		return m, waitForFrame(m.conn)

	case serverErr:
		m.lastErr = string(msg)
		return m, waitForFrame(m.conn)

	case closedMsg:
		m.conn = nil
		m.users = 0
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		}
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case spinner.TickMsg:
		if m.conn == nil {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderFeed())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := TitleStyle.Render(" chatrelay")
	divider := DimStyle.Render(strings.Repeat("─", m.width))

	inputLine := " " + m.input.View()
	if m.conn == nil {
		inputLine = fmt.Sprintf(" %s Connecting to %s...", m.spinner.View(), m.url)
	}

	return header + "\n" +
		divider + "\n" +
		m.viewport.View() + "\n" +
		divider + "\n" +
		inputLine + "\n" +
		m.renderStatusBar()
}

func (m model) renderFeed() string {
	if len(m.messages) == 0 {
		return "\n" + DimStyle.Render("  No messages yet. Say hello.") + "\n"
	}

	var sb strings.Builder
	for _, msg := range m.messages {
		label := LocalLabel
		if msg.IsRemote() {
			label = RemoteLabel
		}
		sb.WriteString("\n  ")
		sb.WriteString(label.Render(msg.Author))
		sb.WriteString(DimStyle.Render(" " + msg.Timestamp.Local().Format("15:04")))
		sb.WriteString("\n")
		for _, line := range strings.Split(msg.Content, "\n") {
			sb.WriteString("  " + line + "\n")
		}
	}
	return sb.String()
}

func (m model) renderStatusBar() string {
	left := " " + statusBadge(m.conn != nil)
	if m.conn != nil {
		left += DimStyle.Render(fmt.Sprintf("  %d online", m.users))
	}
	if m.lastErr != "" {
		left += "  " + ErrStyle.Render(m.lastErr)
	}
	right := DimStyle.Render("as " + m.author + " ")

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func isExitCmd(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "/exit" || s == "/quit" || s == ":q"
}
