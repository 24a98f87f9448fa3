// Package logging は log/slog の初期化とコンポーネント別ロガーを提供する。
//
// レベルは RUST_LOG 風のフィルタ文字列で指定する:
//
//	warn                 既定レベル warn
//	info,mcp=debug       既定 info、component=mcp のみ debug
//	off                  すべて抑止
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// LevelTrace は debug より詳細なログ（MCP のリクエスト/レスポンス本文など）
const LevelTrace = slog.Level(-8)

// levelOff はどのレコードも通さないレベル
const levelOff = slog.Level(1 << 20)

// Options は Setup の設定
type Options struct {
	// Filter は RUST_LOG 風のフィルタ（空なら "warn"）
	Filter string
	// Verbose が true なら既定レベルを debug に下げる
	Verbose bool
	// Output の既定は os.Stderr
	Output io.Writer
	// JSON を強制する。false の場合、Output が端末ならテキスト、それ以外は JSON。
	JSON bool
}

// Filter は既定レベルとコンポーネント別レベル
type Filter struct {
	Default    slog.Level
	Components map[string]slog.Level
}

// ParseFilter は "info,mcp=debug,shell=warn" 形式の文字列をパースする
func ParseFilter(s string) (Filter, error) {
	f := Filter{Default: slog.LevelWarn, Components: make(map[string]slog.Level)}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, lvl, hasName := strings.Cut(part, "=")
		if !hasName {
			level, err := parseLevel(part)
			if err != nil {
				return Filter{}, err
			}
			f.Default = level
			continue
		}
		level, err := parseLevel(lvl)
		if err != nil {
			return Filter{}, err
		}
		f.Components[strings.TrimSpace(name)] = level
	}
	return f, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "off", "none":
		return levelOff, nil
	}
	return 0, fmt.Errorf("logging: unknown level %q", s)
}

// levelFor はコンポーネントに適用するレベルを返す
func (f Filter) levelFor(component string) slog.Level {
	if l, ok := f.Components[component]; ok {
		return l
	}
	return f.Default
}

// Setup はデフォルトロガーを構成して返す。
// フィルタが不正な場合も既定値で構成し、エラーを返す。
func Setup(opts Options) (*slog.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	filter, err := ParseFilter(opts.Filter)
	if err != nil {
		filter = Filter{Default: slog.LevelWarn, Components: map[string]slog.Level{}}
	}
	if opts.Verbose && filter.Default > slog.LevelDebug {
		filter.Default = slog.LevelDebug
	}

	// 内側のハンドラは全レベルを通し、絞り込みは filterHandler が担う
	hopts := &slog.HandlerOptions{Level: LevelTrace, ReplaceAttr: replaceLevel}
	var inner slog.Handler
	if !opts.JSON && isTerminal(out) {
		inner = slog.NewTextHandler(out, hopts)
	} else {
		inner = slog.NewJSONHandler(out, hopts)
	}

	logger := slog.New(&filterHandler{inner: inner, filter: filter, level: filter.Default})
	slog.SetDefault(logger)
	return logger, err
}

// For はコンポーネント名付きのロガーを返す。Setup 後に呼ぶこと。
func For(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// replaceLevel は LevelTrace を "TRACE" と表示する
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok && l <= LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// filterHandler は component 属性に応じてレベルを切り替える
type filterHandler struct {
	inner  slog.Handler
	filter Filter
	level  slog.Level
}

func (h *filterHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *filterHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *filterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	level := h.level
	for _, a := range attrs {
		if a.Key == "component" {
			level = h.filter.levelFor(a.Value.String())
		}
	}
	return &filterHandler{inner: h.inner.WithAttrs(attrs), filter: h.filter, level: level}
}

func (h *filterHandler) WithGroup(name string) slog.Handler {
	return &filterHandler{inner: h.inner.WithGroup(name), filter: h.filter, level: h.level}
}
