package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/0x6d61/mcp-repl/internal/shell"
	"github.com/0x6d61/mcp-repl/internal/value"
)

// Update implements tea.Model and routes all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg.Width, msg.Height)
		m.ready = true
		m.rebuildViewport()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case evalResultMsg:
		m.busy = false
		if errors.Is(msg.err, shell.ErrExit) {
			m.quitting = true
			return m, tea.Quit
		}
		m.handleResult(msg)
		m.rebuildViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleKey はキー入力を処理する
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "ctrl+c":
		// 入力中なら消去のみ
		if m.input.Value() != "" {
			m.input.Reset()
			m.histIdx = len(m.entries)
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case "ctrl+d":
		if m.input.Value() == "" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case "ctrl+l":
		m.blocks = nil
		m.rebuildViewport()
		return m, nil

	case "pgup", "pgdown":
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case "up":
		m.historyPrev()
		return m, nil

	case "down":
		m.historyNext()
		return m, nil

	case "enter":
		if m.busy {
			return m, nil
		}
		return m, m.submitInput()
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleResize recomputes all component dimensions to fit the new terminal size.
func (m *Model) handleResize(w, h int) {
	m.width = w
	m.height = h

	const (
		statusBarH  = 1
		inputAreaH  = 3 // rounded border top + bottom + 1 line
		paneVBorder = 2 // top + bottom borders
	)

	vpH := h - statusBarH - inputAreaH - paneVBorder
	if vpH < 3 {
		vpH = 3
	}
	vpW := w - 4 // subtract 2 borders + 2 side margins
	if vpW < 10 {
		vpW = 10
	}

	if !m.ready {
		m.viewport = viewport.New(vpW, vpH)
	} else {
		m.viewport.Width = vpW
		m.viewport.Height = vpH
	}

	m.input.Width = max(10, w-8)
}

// submitInput は入力行を履歴に積み、評価を開始する
func (m *Model) submitInput() tea.Cmd {
	source := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if source == "" {
		return nil
	}

	if m.history != nil {
		if err := m.history.Add(source); err != nil {
			m.log.Warn("failed to save history", "error", err)
		}
	}
	if n := len(m.entries); n == 0 || m.entries[n-1] != source {
		m.entries = append(m.entries, source)
	}
	m.histIdx = len(m.entries)
	m.draft = ""

	m.addBlock(block{kind: blockInput, text: source})
	m.rebuildViewport()

	m.busy = true
	return tea.Batch(m.spinner.Tick, evaluateCmd(m.ctx, m.eval, source))
}

// handleResult は評価結果をスクロールバックに追加する
func (m *Model) handleResult(msg evalResultMsg) {
	if msg.err != nil {
		m.log.Debug("evaluation failed", "source", msg.source, "error", msg.err)
		m.addBlock(block{kind: blockError, source: msg.source, err: msg.err})
		return
	}
	switch msg.value.(type) {
	case nil, value.Nothing:
		return
	}
	m.addBlock(block{kind: blockOutput, value: msg.value})
}

// historyPrev は1つ前の履歴を入力欄に出す。最初の移動時は編集中の行を退避する。
func (m *Model) historyPrev() {
	if m.histIdx == 0 {
		return
	}
	if m.histIdx == len(m.entries) {
		m.draft = m.input.Value()
	}
	m.histIdx--
	m.input.SetValue(m.entries[m.histIdx])
	m.input.CursorEnd()
}

// historyNext は1つ後の履歴を出す。末尾を越えたら退避した行に戻す。
func (m *Model) historyNext() {
	if m.histIdx >= len(m.entries) {
		return
	}
	m.histIdx++
	if m.histIdx == len(m.entries) {
		m.input.SetValue(m.draft)
	} else {
		m.input.SetValue(m.entries[m.histIdx])
	}
	m.input.CursorEnd()
}
