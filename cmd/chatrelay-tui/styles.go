package main

import "github.com/charmbracelet/lipgloss"

var (
	Accent = lipgloss.Color("#00D4FF")
	Subtle = lipgloss.Color("#555555")
	Green  = lipgloss.Color("#04B575")
	Red    = lipgloss.Color("#FF4444")
	Purple = lipgloss.Color("#A78BFA")

	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	LocalLabel  = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	RemoteLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	ErrStyle    = lipgloss.NewStyle().Foreground(Red)
	OkStyle     = lipgloss.NewStyle().Foreground(Green).Bold(true)
	DimStyle    = lipgloss.NewStyle().Foreground(Subtle)
)

func statusBadge(connected bool) string {
	if connected {
		return OkStyle.Render("● connected")
	}
	return ErrStyle.Render("○ disconnected")
}
