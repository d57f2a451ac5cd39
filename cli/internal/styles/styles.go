// ABOUTME: Shared lipgloss styles for CLI output and prompts
// ABOUTME: Defines the palette and the status and label styles used by commands

package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Primary   = lipgloss.Color("#06B6D4") // Cyan
	Accent    = lipgloss.Color("#22D3EE") // Light cyan
	Secondary = lipgloss.Color("#10B981") // Green
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Danger    = lipgloss.Color("#EF4444") // Red
	Muted     = lipgloss.Color("#9CA3AF") // Gray
	Border    = lipgloss.Color("#334155") // Slate

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Foreground(Muted).
		Width(14)

	StatusOK = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	StatusWarning = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StatusCritical = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	Hint = lipgloss.NewStyle().
		Foreground(Muted).
		Italic(true)
)

// Row renders a "label value" line
func Row(label, value string) string {
	return Label.Render(label+":") + value
}
