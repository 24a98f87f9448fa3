package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0x6d61/mcp-repl/internal/shell"
	"github.com/0x6d61/mcp-repl/internal/value"
)

// memHistory はテスト用の履歴
type memHistory struct {
	lines []string
}

func (h *memHistory) Entries() []string { return append([]string(nil), h.lines...) }
func (h *memHistory) Add(line string) error { h.lines = append(h.lines, line); return nil }

// newTestModel は 80x24 にリサイズ済みの Model を返す
func newTestModel(opts ...Option) Model {
	m := New(shell.New(), opts...)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

// ---------------------------------------------------------------------------
// resize
// ---------------------------------------------------------------------------

func TestUpdate_WindowSize(t *testing.T) {
	m := newTestModel()

	if !m.ready {
		t.Fatal("expected ready after WindowSizeMsg")
	}
	if m.viewport.Width != 76 {
		t.Errorf("viewport width = %d, want 76", m.viewport.Width)
	}
	if m.viewport.Height != 18 {
		t.Errorf("viewport height = %d, want 18", m.viewport.Height)
	}
}

// ---------------------------------------------------------------------------
// submit / result
// ---------------------------------------------------------------------------

func TestUpdate_EnterStartsEvaluation(t *testing.T) {
	h := &memHistory{}
	m := newTestModel(WithHistory(h))
	m.input.SetValue("echo hello")

	m, cmd := press(m, tea.KeyEnter)

	if cmd == nil {
		t.Fatal("expected a command from enter")
	}
	if !m.busy {
		t.Error("expected busy while evaluating")
	}
	if m.input.Value() != "" {
		t.Errorf("input should be cleared, got %q", m.input.Value())
	}
	if len(h.lines) != 1 || h.lines[0] != "echo hello" {
		t.Errorf("history = %v", h.lines)
	}
	if len(m.blocks) != 1 || m.blocks[0].kind != blockInput {
		t.Fatalf("expected one input block, got %+v", m.blocks)
	}
}

func TestUpdate_EnterIgnoresBlank(t *testing.T) {
	m := newTestModel()
	m.input.SetValue("   ")

	m, cmd := press(m, tea.KeyEnter)

	if cmd != nil {
		t.Error("blank input should not start evaluation")
	}
	if m.busy || len(m.blocks) != 0 {
		t.Error("blank input should not change state")
	}
}

func TestUpdate_EnterIgnoredWhileBusy(t *testing.T) {
	m := newTestModel()
	m.busy = true
	m.input.SetValue("echo hi")

	m, cmd := press(m, tea.KeyEnter)

	if cmd != nil || len(m.blocks) != 0 {
		t.Error("enter must be ignored while a command runs")
	}
}

func TestEvaluateCmd(t *testing.T) {
	msg := evaluateCmd(context.Background(), shell.New(), "echo hello")()

	res, ok := msg.(evalResultMsg)
	if !ok {
		t.Fatalf("expected evalResultMsg, got %T", msg)
	}
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if got := value.Format(res.value, 0); got != "hello" {
		t.Errorf("value = %q, want %q", got, "hello")
	}
}

func TestUpdate_ResultAppendsOutput(t *testing.T) {
	m := newTestModel()
	m.busy = true

	next, _ := m.Update(evalResultMsg{source: "echo hello", value: value.String("hello")})
	m = next.(Model)

	if m.busy {
		t.Error("busy should be cleared")
	}
	if len(m.blocks) != 1 || m.blocks[0].kind != blockOutput {
		t.Fatalf("expected one output block, got %+v", m.blocks)
	}
	if !strings.Contains(m.viewport.View(), "hello") {
		t.Error("viewport should show the output")
	}
}

func TestUpdate_ResultNothingAddsNoBlock(t *testing.T) {
	m := newTestModel()

	next, _ := m.Update(evalResultMsg{source: "x", value: value.Nothing{}})
	m = next.(Model)

	if len(m.blocks) != 0 {
		t.Errorf("Nothing should not be shown, got %d blocks", len(m.blocks))
	}
}

func TestUpdate_ResultError(t *testing.T) {
	m := newTestModel()
	err := shell.Errorf(shell.Span{Start: 0, End: 4}, "Command not found", "")

	next, _ := m.Update(evalResultMsg{source: "nope", err: err})
	m = next.(Model)

	if len(m.blocks) != 1 || m.blocks[0].kind != blockError {
		t.Fatalf("expected one error block, got %+v", m.blocks)
	}
	if !strings.Contains(m.viewport.View(), "Command not found") {
		t.Error("viewport should show the error message")
	}
}

func TestUpdate_ResultExitQuits(t *testing.T) {
	m := newTestModel()

	next, cmd := m.Update(evalResultMsg{source: "exit", err: shell.ErrExit})
	m = next.(Model)

	if !m.quitting {
		t.Error("expected quitting after exit")
	}
	if cmd == nil {
		t.Fatal("expected tea.Quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected QuitMsg")
	}
}

// ---------------------------------------------------------------------------
// keys
// ---------------------------------------------------------------------------

func TestCtrlC_ClearsInputFirst(t *testing.T) {
	m := newTestModel()
	m.input.SetValue("partial")

	m, cmd := press(m, tea.KeyCtrlC)

	if m.input.Value() != "" {
		t.Errorf("input should be cleared, got %q", m.input.Value())
	}
	if m.quitting || cmd != nil {
		t.Error("first ctrl+c should not quit")
	}

	m, cmd = press(m, tea.KeyCtrlC)
	if !m.quitting || cmd == nil {
		t.Error("ctrl+c on empty input should quit")
	}
}

func TestCtrlD_QuitsOnEmptyInput(t *testing.T) {
	m := newTestModel()
	m.input.SetValue("x")

	m, _ = press(m, tea.KeyCtrlD)
	if m.quitting {
		t.Error("ctrl+d with input should not quit")
	}

	m.input.Reset()
	m, _ = press(m, tea.KeyCtrlD)
	if !m.quitting {
		t.Error("ctrl+d on empty input should quit")
	}
}

func TestCtrlL_ClearsScrollback(t *testing.T) {
	m := newTestModel(WithBanner("welcome"))

	m, _ = press(m, tea.KeyCtrlL)

	if len(m.blocks) != 0 {
		t.Errorf("expected no blocks, got %d", len(m.blocks))
	}
}

func TestHistoryNavigation(t *testing.T) {
	m := newTestModel(WithHistory(&memHistory{lines: []string{"first", "second"}}))
	m.input.SetValue("draft")

	m, _ = press(m, tea.KeyUp)
	if m.input.Value() != "second" {
		t.Errorf("up: got %q, want second", m.input.Value())
	}
	m, _ = press(m, tea.KeyUp)
	if m.input.Value() != "first" {
		t.Errorf("up x2: got %q, want first", m.input.Value())
	}
	// 先頭で止まる
	m, _ = press(m, tea.KeyUp)
	if m.input.Value() != "first" {
		t.Errorf("up x3: got %q, want first", m.input.Value())
	}

	m, _ = press(m, tea.KeyDown)
	m, _ = press(m, tea.KeyDown)
	if m.input.Value() != "draft" {
		t.Errorf("down past end should restore draft, got %q", m.input.Value())
	}
}

// ---------------------------------------------------------------------------
// blocks
// ---------------------------------------------------------------------------

func TestAddBlock_CapsScrollback(t *testing.T) {
	m := New(shell.New())
	for i := 0; i < maxBlocks+5; i++ {
		m.addBlock(block{kind: blockSystem, text: "x"})
	}
	if len(m.blocks) != maxBlocks {
		t.Errorf("len(blocks) = %d, want %d", len(m.blocks), maxBlocks)
	}
}

// ---------------------------------------------------------------------------
// view
// ---------------------------------------------------------------------------

func TestView_NotReady(t *testing.T) {
	m := New(shell.New())
	if !strings.Contains(m.View(), "Starting") {
		t.Error("expected startup message before first resize")
	}
}

func TestView_StatusBar(t *testing.T) {
	m := newTestModel(WithStatus(func() Status { return Status{Servers: 2, Tools: 1} }))

	out := m.View()

	for _, want := range []string{"MCP-REPL", "2 servers", "1 tool"} {
		if !strings.Contains(out, want) {
			t.Errorf("status bar missing %q", want)
		}
	}
}

func TestView_NoServers(t *testing.T) {
	m := newTestModel()
	if !strings.Contains(m.View(), "No servers connected") {
		t.Error("expected no-servers hint")
	}
}

func TestView_BusyShowsSpinner(t *testing.T) {
	m := newTestModel()
	m.busy = true
	if !strings.Contains(m.View(), "Running...") {
		t.Error("expected running indicator while busy")
	}
}

func TestTruncateVisual(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"日本語", 4, "日本"},
		{"日本語", 3, "日"},
	}
	for _, tt := range tests {
		if got := truncateVisual(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateVisual(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestUpdate_UnknownMsgIgnored(t *testing.T) {
	m := newTestModel()
	next, cmd := m.Update(errors.New("stray"))
	if cmd != nil {
		t.Error("unexpected command")
	}
	if next.(Model).busy {
		t.Error("state should not change")
	}
}
