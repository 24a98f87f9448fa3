package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/0x6d61/mcp-repl/internal/shell"
	"github.com/0x6d61/mcp-repl/internal/value"
)

// renderBlocks は全てのブロックをビューポート用コンテンツにレンダリングする。
func renderBlocks(blocks []block, width int) string {
	var sb strings.Builder
	for _, b := range blocks {
		switch b.kind {
		case blockInput:
			sb.WriteString(userInputBlockStyle.Render("> "+b.text) + "\n")
		case blockOutput:
			sb.WriteString(renderValue(b.value, width))
		case blockError:
			sb.WriteString(errorStyle.Render(shell.Render(b.err, b.source)) + "\n")
		case blockSystem:
			sb.WriteString(hintStyle.Render(b.text) + "\n")
		}
	}
	return sb.String()
}

// renderValue は評価結果を表示用に整形する。Markdown は glamour で描画する。
func renderValue(v value.Value, width int) string {
	if md, ok := markdownText(v); ok {
		if rendered, err := renderMarkdown(md, width); err == nil {
			return rendered
		}
		return md + "\n"
	}
	out := value.Format(v, width)
	if out == "" {
		return ""
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// markdownText は v が Markdown の Custom 値ならその本文を返す
func markdownText(v value.Value) (string, bool) {
	c, ok := v.(value.Custom)
	if !ok || c.Type != "markdown" {
		return "", false
	}
	s, ok := c.Data.(string)
	return s, ok
}

// renderMarkdown は glamour を使って Markdown をターミナル用にレンダリングする。
// ダークスタイルを明示指定する。WithAutoStyle() は非 TTY 環境で plain にフォールバックするため使用しない。
// glamour の dark スタイルは左右マージンを追加するため、width を縮小して渡す。
func renderMarkdown(text string, width int) (string, error) {
	wrapWidth := width - 4
	if wrapWidth < 20 {
		wrapWidth = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}
