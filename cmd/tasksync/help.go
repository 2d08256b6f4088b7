package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Command groups shown in root help.
const (
	groupSync     = "sync"
	groupIdentity = "identity"
	groupSetup    = "setup"
)

var commandGroups = []*cobra.Group{
	{ID: groupSync, Title: "Syncing:"},
	{ID: groupIdentity, Title: "Identity records:"},
	{ID: groupSetup, Title: "Setup and integration:"},
}

var (
	helpHeaderStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	helpCmdStyle    = lipgloss.NewStyle().Foreground(colorPrimaryLight)
)

var helpTemplateFuncs = template.FuncMap{
	"header": func(s string) string {
		if isTTY() {
			return helpHeaderStyle.Render(s)
		}
		return s
	},
	"cmd": func(s string) string {
		if isTTY() {
			return helpCmdStyle.Render(s)
		}
		return s
	},
	"muted": func(s string) string {
		if isTTY() {
			return mutedStyle.Render(s)
		}
		return s
	},
	"configSources": configSources,
}

// configSources lists where settings come from, strongest first.
func configSources() string {
	file := "config.yaml"
	if dir := defaultConfigDir(); dir != "" {
		file = filepath.Join(dir, "config.yaml")
	}
	lines := []string{
		"  1. command-line flags",
		"  2. TASKSYNC_* environment variables (TASKSYNC_VAULT, TASKSYNC_TOKEN, ...)",
		fmt.Sprintf("  3. %s", file),
		"  4. built-in defaults",
	}
	return strings.Join(lines, "\n")
}

const commandListTemplate = `{{range .Commands}}{{if .IsAvailableCommand}}  {{cmd (rpad .Name .NamePadding)}} {{.Short}}
{{end}}{{end}}`

const helpTemplate = `{{with .Long}}{{. | trimTrailingWhitespaces}}

{{end}}{{if or .Runnable .HasSubCommands}}{{header "Usage:"}}
  {{cmd .CommandPath}}{{if .HasAvailableSubCommands}} {{muted "[command]"}}{{end}}{{if .HasAvailableFlags}} {{muted "[flags]"}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}{{if eq (len .Groups) 0}}{{header "Commands:"}}
` + commandListTemplate + `
{{else}}{{range $group := .Groups}}{{header $group.Title}}
{{range $.Commands}}{{if and (eq .GroupID $group.ID) .IsAvailableCommand}}  {{cmd (rpad .Name .NamePadding)}} {{.Short}}
{{end}}{{end}}
{{end}}{{if not .AllChildCommandsHaveGroup}}{{header "Additional Commands:"}}
{{range .Commands}}{{if and (eq .GroupID "") .IsAvailableCommand}}  {{cmd (rpad .Name .NamePadding)}} {{.Short}}
{{end}}{{end}}
{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}{{header "Flags:"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}{{header "Global Flags:"}}
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if not .HasParent}}{{header "Configuration:"}}
{{configSources}}

{{end}}{{if .HasAvailableSubCommands}}{{muted "Use"}} {{cmd (printf "%s [command] --help" .CommandPath)}} {{muted "for more information."}}
{{end}}`

// initHelp installs the styled help template on cmd and its subcommands.
func initHelp(cmd *cobra.Command) {
	for name, fn := range helpTemplateFuncs {
		cobra.AddTemplateFunc(name, fn)
	}
	applyHelpTemplate(cmd)
}

func applyHelpTemplate(cmd *cobra.Command) {
	cmd.SetHelpTemplate(helpTemplate)
	for _, subCmd := range cmd.Commands() {
		applyHelpTemplate(subCmd)
	}
}
