package report

import "github.com/charmbracelet/lipgloss"

var (
	Cyan   = lipgloss.Color("#00E5FF")
	Yellow = lipgloss.Color("#FFB500")
	Green  = lipgloss.Color("#2AFFAA")
	Red    = lipgloss.Color("#FF5555")
	Blue   = lipgloss.Color("#3B82F6")
	Muted  = lipgloss.Color("#6C7280")
	Text   = lipgloss.Color("#ECEFF4")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Muted).
			Padding(0, 1)

	labelStyle   = lipgloss.NewStyle().Foreground(Muted).Width(14)
	valueStyle   = lipgloss.NewStyle().Foreground(Text).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	linkStyle    = lipgloss.NewStyle().Foreground(Blue).Underline(true)
	successStyle = lipgloss.NewStyle().Foreground(Green)
	errorStyle   = lipgloss.NewStyle().Foreground(Red)
	warningStyle = lipgloss.NewStyle().Foreground(Yellow)

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(Yellow).
			PaddingLeft(1)
)
