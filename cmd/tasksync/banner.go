package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerBoxStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	bannerCheckStyle   = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	bannerTitleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	bannerTaglineStyle = lipgloss.NewStyle().Foreground(colorPrimaryDark).Italic(true)
)

// renderBanner draws two checklists joined by a sync arrow.
func renderBanner() string {
	open := bannerBoxStyle.Render("[ ]")
	done := bannerBoxStyle.Render("[") + bannerCheckStyle.Render("x") + bannerBoxStyle.Render("]")
	arrow := bannerCheckStyle.Render("⇄")
	title := bannerTitleStyle.Render("TASKSYNC")

	lines := []string{
		"  " + done + "        " + done,
		"  " + open + "   " + arrow + "    " + open + "   " + title,
		"  " + open + "        " + open,
	}
	return strings.Join(lines, "\n") + "\n" + bannerTaglineStyle.Render("  notes and To Do, in step")
}
