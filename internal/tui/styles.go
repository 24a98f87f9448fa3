package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	colorPrimary      = lipgloss.Color("#00D7FF") // cyan  — prompt / focus
	colorSecondary    = lipgloss.Color("#AF87FF") // purple — spinner
	colorSuccess      = lipgloss.Color("#87FF5F") // green — user input
	colorWarning      = lipgloss.Color("#FFD700") // yellow — server count
	colorDanger       = lipgloss.Color("#FF5555") // red — errors
	colorMuted        = lipgloss.Color("#555577") // dim gray — hints
	colorBorder       = lipgloss.Color("#333355") // default border
	colorBorderActive = lipgloss.Color("#00D7FF") // busy border
)

// Scrollback pane
var paneStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorBorder)

// Input bar
var (
	inputBarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	inputBarBusyStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorBorderActive)
)

// Status bar (top)
var statusBarStyle = lipgloss.NewStyle().
	Background(lipgloss.Color("#0D0D1A")).
	Foreground(colorPrimary).
	Padding(0, 1)

var (
	promptStyle  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle   = lipgloss.NewStyle().Foreground(colorDanger)
	spinnerStyle = lipgloss.NewStyle().Foreground(colorSecondary)
	serverStyle  = lipgloss.NewStyle().Foreground(colorWarning)
)

// User input block style — ハイライト背景で入力行を目立たせる
var userInputBlockStyle = lipgloss.NewStyle().
	Background(lipgloss.Color("#1A1A2E")).
	Foreground(colorSuccess).
	Bold(true).
	Padding(0, 1)
