package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

// Color palette
var (
	colorPrimary      = lipgloss.Color("#2B7CD3") // To Do blue
	colorPrimaryLight = lipgloss.Color("#5A9BE0")
	colorPrimaryDark  = lipgloss.Color("#1E5A9C")

	colorText  = lipgloss.Color("#F2F3F3")
	colorMuted = lipgloss.Color("240")

	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
)

// Styles
var (
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	labelStyle   = lipgloss.NewStyle().Foreground(colorPrimaryLight).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Foreground(colorText).Padding(0, 1)
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimaryDark).
			Padding(0, 1)
)

// Icons
const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "⚠"
	iconInfo    = "●"
)

// testIsTTYOverride forces isTTY in tests.
var (
	testIsTTYOverride *bool
	testIsTTYMutex    sync.Mutex
)

// isTTY returns true if stdout is a terminal
func isTTY() bool {
	testIsTTYMutex.Lock()
	override := testIsTTYOverride
	testIsTTYMutex.Unlock()
	if override != nil {
		return *override
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printStyled prints a message with an icon, applying style only in TTY mode
func printStyled(w io.Writer, icon string, style lipgloss.Style, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if isTTY() {
		fmt.Fprintf(w, "%s %s\n", style.Render(icon), msg)
	} else {
		fmt.Fprintf(w, "%s %s\n", icon, msg)
	}
}

func printSuccess(w io.Writer, format string, args ...any) {
	printStyled(w, iconSuccess, successStyle, format, args...)
}

func printError(w io.Writer, format string, args ...any) {
	printStyled(w, iconError, errorStyle, format, args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	printStyled(w, iconWarning, warningStyle, format, args...)
}

func printInfo(w io.Writer, format string, args ...any) {
	printStyled(w, iconInfo, infoStyle, format, args...)
}

// printMuted prints muted/secondary text
func printMuted(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if isTTY() {
		fmt.Fprintln(w, mutedStyle.Render(msg))
	} else {
		fmt.Fprintln(w, msg)
	}
}

// renderTable renders rows under headers. TTY output gets a rounded border;
// plain output is tab-separated so it stays greppable.
func renderTable(headers []string, rows [][]string) string {
	if !isTTY() {
		var sb strings.Builder
		if len(headers) > 0 {
			sb.WriteString(strings.Join(headers, "\t"))
			sb.WriteString("\n")
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorPrimaryDark)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	return t.Render()
}

// renderPanel renders content in a bordered box with an optional title.
func renderPanel(title, content string) string {
	if !isTTY() {
		if title == "" {
			return content
		}
		return title + "\n" + content
	}
	body := content
	if title != "" {
		body = labelStyle.Render(title) + "\n" + content
	}
	return panelStyle.Render(body)
}

// renderMarkdown renders markdown content with glamour in TTY mode.
func renderMarkdown(content string) string {
	if !isTTY() {
		return content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return content
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}
