package shell

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// ErrExit は exit コマンドが返す。REPL はこれを受け取ると終了する。
var ErrExit = errors.New("exit")

// Span は入力ソース中のバイト範囲 [Start, End)
type Span struct {
	Start int
	End   int
}

// Error は入力中の位置を指すエラー
type Error struct {
	// Msg は見出し（例: "Failed to call MCP tool"）
	Msg string
	// Label はスパン直下に表示する説明
	Label string
	Span  Span
	Help  string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Label != "":
		return e.Msg + ": " + e.Label
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf はスパン付きの Error を作る
func Errorf(span Span, msg, label string, args ...any) *Error {
	return &Error{Msg: msg, Label: fmt.Sprintf(label, args...), Span: span}
}

// Wrap は err をスパン付きの Error で包む。既に *Error ならそのまま返す。
func Wrap(err error, span Span, msg string) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Msg: msg, Span: span, Err: err}
}

// Render はエラーを入力行とキャレット付きで整形する
//
//	Error: Failed to parse tool parameters
//	  > tool fs.copy a
//	    ^^^^^^^^^^^^ missing required parameter `dst`
func Render(err error, source string) string {
	var se *Error
	if !errors.As(err, &se) || source == "" || se.Span.End <= se.Span.Start || se.Span.End > len(source) {
		return "Error: " + err.Error()
	}

	var sb strings.Builder
	sb.WriteString("Error: " + se.Msg + "\n")

	// 複数行入力の場合はスパンを含む行だけを表示する
	lineStart := strings.LastIndexByte(source[:se.Span.Start], '\n') + 1
	lineEnd := len(source)
	if i := strings.IndexByte(source[se.Span.Start:], '\n'); i >= 0 {
		lineEnd = se.Span.Start + i
	}
	line := source[lineStart:lineEnd]
	end := min(se.Span.End, lineEnd)

	pad := runewidth.StringWidth(source[lineStart:se.Span.Start])
	width := max(1, runewidth.StringWidth(source[se.Span.Start:end]))
	if !utf8.ValidString(line) {
		pad, width = se.Span.Start-lineStart, max(1, end-se.Span.Start)
	}

	sb.WriteString("  > " + line + "\n")
	sb.WriteString("    " + strings.Repeat(" ", pad) + strings.Repeat("^", width))

	label := se.Label
	if label == "" && se.Err != nil {
		label = se.Err.Error()
	}
	if label != "" {
		sb.WriteString(" " + label)
	}
	if se.Help != "" {
		sb.WriteString("\n  help: " + se.Help)
	}
	return sb.String()
}
