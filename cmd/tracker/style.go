package main

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleOK    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#81c784"})
	styleError = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef9a9a"})
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#ef6c00", Dark: "#ffb74d"})
	styleDim   = lipgloss.NewStyle().Faint(true)
	styleBold  = lipgloss.NewStyle().Bold(true)
)

// statusLine renders the connection banner shown by the monitor.
func statusLine(connected bool, at time.Time) string {
	ts := styleDim.Render(at.Format("15:04:05"))
	if connected {
		return ts + " " + styleOK.Render("● Database Connected")
	}
	return ts + " " + styleError.Render("● Connection Lost")
}

func checkMark(ok bool) string {
	if ok {
		return styleOK.Render("✓")
	}
	return styleError.Render("✗")
}
