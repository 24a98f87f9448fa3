package tui

import (
	"errors"
	"strings"
	"testing"

	"github.com/0x6d61/mcp-repl/internal/shell"
	"github.com/0x6d61/mcp-repl/internal/value"
)

func TestRenderBlocks_Input(t *testing.T) {
	out := renderBlocks([]block{{kind: blockInput, text: "tool list"}}, 80)
	if !strings.Contains(out, "> tool list") {
		t.Errorf("expected prompt echo, got %q", out)
	}
}

func TestRenderBlocks_Output(t *testing.T) {
	out := renderBlocks([]block{{kind: blockOutput, value: value.String("done")}}, 80)
	if strings.TrimSpace(out) != "done" {
		t.Errorf("got %q, want done", out)
	}
}

func TestRenderBlocks_Table(t *testing.T) {
	rows := value.List{
		value.NewRecord().Set("name", value.String("fs.read")),
		value.NewRecord().Set("name", value.String("fs.write")),
	}
	out := renderBlocks([]block{{kind: blockOutput, value: rows}}, 80)
	for _, want := range []string{"name", "fs.read", "fs.write"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderBlocks_ErrorWithCaret(t *testing.T) {
	err := &shell.Error{Msg: "Tool not found", Label: "unknown tool", Span: shell.Span{Start: 10, End: 17}}
	out := renderBlocks([]block{{kind: blockError, source: "tool call fs.nope", err: err}}, 80)

	if !strings.Contains(out, "Error: Tool not found") {
		t.Errorf("missing heading:\n%s", out)
	}
	if !strings.Contains(out, "^^^^^^^ unknown tool") {
		t.Errorf("missing caret label:\n%s", out)
	}
}

func TestRenderBlocks_PlainError(t *testing.T) {
	out := renderBlocks([]block{{kind: blockError, source: "x", err: errors.New("boom")}}, 80)
	if !strings.Contains(out, "Error: boom") {
		t.Errorf("got %q", out)
	}
}

func TestRenderBlocks_System(t *testing.T) {
	out := renderBlocks([]block{{kind: blockSystem, text: "connected to fs"}}, 80)
	if !strings.Contains(out, "connected to fs") {
		t.Errorf("got %q", out)
	}
}

func TestRenderValue_Markdown(t *testing.T) {
	out := renderValue(value.Markdown("# Welcome\n\nUse **tool list**."), 80)
	if !strings.Contains(out, "Welcome") {
		t.Errorf("expected heading in rendered markdown:\n%s", out)
	}
	if strings.Contains(out, "**") {
		t.Errorf("markdown emphasis should be rendered:\n%s", out)
	}
}

func TestRenderValue_Nothing(t *testing.T) {
	if out := renderValue(value.Nothing{}, 80); out != "" {
		t.Errorf("got %q, want empty", out)
	}
}

func TestRenderMarkdown_Width(t *testing.T) {
	result, err := renderMarkdown(strings.Repeat("word ", 30), 40)
	if err != nil {
		t.Fatalf("renderMarkdown returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) < 2 {
		t.Errorf("expected word wrap at width=40, got %d line(s):\n%s", len(lines), result)
	}
}
