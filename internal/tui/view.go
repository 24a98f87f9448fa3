package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// View implements tea.Model and renders the REPL layout.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "\n  ⚡ Starting mcp-repl...\n"
	}

	statusBar := m.renderStatusBar()
	pane := paneStyle.Width(m.width - 2).Render(m.viewport.View())
	inputBar := m.renderInputBar()

	return lipgloss.JoinVertical(lipgloss.Left, statusBar, pane, inputBar)
}

// renderStatusBar renders the single-line header with app name and connection info.
func (m Model) renderStatusBar() string {
	appName := lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true).
		Render("⚡ MCP-REPL")

	st := m.currentStatus()
	var info string
	if st.Servers == 0 {
		info = hintStyle.Render("No servers connected")
	} else {
		info = fmt.Sprintf("%s  %s",
			serverStyle.Render(plural(st.Servers, "server")),
			plural(st.Tools, "tool"))
	}

	hint := hintStyle.Render("[↑↓] History  [PgUp/PgDn] Scroll  [Ctrl+L] Clear  [Ctrl+D] Quit")

	left := appName + "  " + info
	room := m.width - lipgloss.Width(left) - 2
	if lipgloss.Width(hint) > room-2 {
		hint = hintStyle.Render(truncateVisual("[↑↓] History  [Ctrl+D] Quit", max(0, room-2)))
	}
	gap := strings.Repeat(" ", max(0, room-lipgloss.Width(hint)))

	return statusBarStyle.Width(m.width).Render(left + gap + hint)
}

// renderInputBar renders the bottom prompt, or a spinner while a command runs.
func (m Model) renderInputBar() string {
	w := m.width - 2
	if m.busy {
		content := m.spinner.View() + " " + hintStyle.Render("Running...")
		return inputBarBusyStyle.Width(w).Render(content)
	}
	return inputBarStyle.Width(w).Render(promptStyle.Render("> ") + m.input.View())
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// truncateVisual returns the first n visual columns of a string.
func truncateVisual(s string, n int) string {
	w := 0
	for i, r := range s {
		rw := runewidth.RuneWidth(r)
		if w+rw > n {
			return s[:i]
		}
		w += rw
	}
	return s
}
