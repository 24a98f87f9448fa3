// Package tui implements the Bubble Tea REPL for mcp-repl.
package tui

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/0x6d61/mcp-repl/internal/logging"
	"github.com/0x6d61/mcp-repl/internal/value"
)

// maxBlocks はスクロールバックに保持するブロック数の上限
const maxBlocks = 1000

// Evaluator は1行の入力を評価する。*shell.Engine が満たす。
type Evaluator interface {
	Evaluate(ctx context.Context, source string) (value.Value, error)
}

// History は入力履歴。*history.Store が満たす。
type History interface {
	Entries() []string
	Add(line string) error
}

// Status はステータスバーに表示する接続状況
type Status struct {
	Servers int
	Tools   int
}

// StatusFunc は現在の接続状況を返す
type StatusFunc func() Status

// blockKind はスクロールバックの1ブロックの種類
type blockKind int

const (
	blockInput blockKind = iota
	blockOutput
	blockError
	blockSystem
)

// block はスクロールバックの1要素
type block struct {
	kind   blockKind
	text   string
	source string
	value  value.Value
	err    error
}

// evalResultMsg は評価の完了を知らせる
type evalResultMsg struct {
	source string
	value  value.Value
	err    error
}

// Model is the root Bubble Tea model for the REPL.
type Model struct {
	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	busy     bool

	blocks []block

	eval   Evaluator
	ctx    context.Context
	status StatusFunc

	history History
	// entries は履歴のコピー。histIdx == len(entries) は編集中の行を指す。
	entries []string
	histIdx int
	draft   string

	quitting bool
	log      *slog.Logger
}

// Option は Model の設定
type Option func(*Model)

// WithHistory は履歴を接続する
func WithHistory(h History) Option {
	return func(m *Model) {
		m.history = h
		m.entries = h.Entries()
		m.histIdx = len(m.entries)
	}
}

// WithStatus はステータスバーの情報源を設定する
func WithStatus(fn StatusFunc) Option {
	return func(m *Model) { m.status = fn }
}

// WithContext は評価に渡す context を設定する
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithBanner は起動時にスクロールバックへ表示するメッセージを追加する
func WithBanner(text string) Option {
	return func(m *Model) { m.blocks = append(m.blocks, block{kind: blockSystem, text: text}) }
}

// New は Model を初期化する。
func New(eval Evaluator, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "Enter a command (help for tips)..."
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		input:   ti,
		spinner: sp,
		eval:    eval,
		ctx:     context.Background(),
		log:     logging.For("tui"),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Run は全画面の REPL を開始し、終了するまでブロックする
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// evaluateCmd は入力をバックグラウンドで評価する tea.Cmd を返す
func evaluateCmd(ctx context.Context, eval Evaluator, source string) tea.Cmd {
	return func() tea.Msg {
		v, err := eval.Evaluate(ctx, source)
		return evalResultMsg{source: source, value: v, err: err}
	}
}

// addBlock はブロックを追加し、上限を超えた古いものを捨てる
func (m *Model) addBlock(b block) {
	m.blocks = append(m.blocks, b)
	if len(m.blocks) > maxBlocks {
		m.blocks = m.blocks[len(m.blocks)-maxBlocks:]
	}
}

// rebuildViewport はスクロールバックを再描画して最下部へ移動する
func (m *Model) rebuildViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderBlocks(m.blocks, m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m Model) currentStatus() Status {
	if m.status == nil {
		return Status{}
	}
	return m.status()
}
