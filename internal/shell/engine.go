package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/0x6d61/mcp-repl/internal/logging"
	"github.com/0x6d61/mcp-repl/internal/value"
)

// Engine はコマンドの登録と評価を行う
type Engine struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// New は組み込みコマンドを登録済みの Engine を返す
func New() *Engine {
	e := &Engine{commands: make(map[string]Command)}
	for _, cmd := range builtins() {
		// 組み込みの名前は空にならない
		_ = e.Register(cmd)
	}
	return e
}

func (e *Engine) logger() *slog.Logger {
	return logging.For("shell")
}

// Register はコマンドを登録する。同名のコマンドは置き換える。
func (e *Engine) Register(cmd Command) error {
	name := strings.TrimSpace(cmd.Signature().Name)
	if name == "" {
		return errors.New("shell: command name is empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.commands[name]; exists {
		e.logger().Debug("replacing command", "name", name)
	}
	e.commands[name] = cmd
	return nil
}

// Lookup は名前でコマンドを探す
func (e *Engine) Lookup(name string) (Command, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cmd, ok := e.commands[name]
	return cmd, ok
}

// Names は登録済みコマンド名をソートして返す
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.commands))
	for name := range e.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Subcommands は "name xxx" の形で登録されたコマンドを返す
func (e *Engine) Subcommands(name string) []string {
	prefix := name + " "
	var subs []string
	for _, n := range e.Names() {
		if strings.HasPrefix(n, prefix) {
			subs = append(subs, n)
		}
	}
	return subs
}

// HelpText はコマンドのヘルプを返す。シグネチャにサブコマンドが無ければ登録状況から補う。
func (e *Engine) HelpText(name string) (string, error) {
	cmd, ok := e.Lookup(name)
	if !ok {
		err := &Error{Msg: "Command not found", Label: fmt.Sprintf("unknown command `%s`", name)}
		if s := suggest(name, e.Names()); s != "" {
			err.Help = fmt.Sprintf("did you mean `%s`?", s)
		}
		return "", err
	}
	sig := *cmd.Signature()
	if len(sig.Subcommands) == 0 {
		sig.Subcommands = e.Subcommands(name)
	}
	return Help(&sig), nil
}

// Evaluate はパイプラインを評価し、最後の段の出力を返す
func (e *Engine) Evaluate(ctx context.Context, source string) (value.Value, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, err
	}
	stages, err := splitPipeline(toks)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return value.Nothing{}, nil
	}

	e.logger().Debug("evaluate", "source", source, "stages", len(stages))

	var input value.Value = value.Nothing{}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmd, call, help, err := e.prepare(stage)
		if err != nil {
			return nil, err
		}
		if help {
			text, err := e.HelpText(call.Name)
			if err != nil {
				return nil, err
			}
			input = value.String(text)
			continue
		}

		out, err := cmd.Run(ctx, call, input)
		if err != nil {
			if errors.Is(err, ErrExit) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, Wrap(err, call.Span(), fmt.Sprintf("Command `%s` failed", call.Name))
		}
		if out == nil {
			out = value.Nothing{}
		}
		input = out
	}
	return input, nil
}

// prepare は1段分のトークンからコマンドを解決し、引数を検査済みの Call にする。
// --help / -h が含まれていれば help=true を返す。
func (e *Engine) prepare(stage []token) (Command, *Call, bool, error) {
	cmd, n, err := e.resolve(stage)
	if err != nil {
		return nil, nil, false, err
	}
	sig := cmd.Signature()
	call := &Call{
		Name:  sig.Name,
		Head:  Span{stage[0].span.Start, stage[n-1].span.End},
		Named: make(map[string]Arg),
	}

	args := stage[n:]
	for i := 0; i < len(args); i++ {
		t := args[i]
		switch {
		case isLongFlag(t):
			help, consumed, err := bindLong(sig, call, t, args[i+1:])
			if err != nil || help {
				return cmd, call, help, err
			}
			i += consumed
		case isShortFlag(t):
			help, consumed, err := bindShort(sig, call, t, args[i+1:])
			if err != nil || help {
				return cmd, call, help, err
			}
			i += consumed
		default:
			if err := bindPositional(sig, call, t); err != nil {
				return cmd, call, false, err
			}
		}
	}
	return cmd, call, false, nil
}

// resolve は先頭の単語列のうち最長一致する登録名を探し、使ったトークン数を返す
func (e *Engine) resolve(stage []token) (Command, int, error) {
	var words []string
	for _, t := range stage {
		if t.kind != tokWord || strings.HasPrefix(t.text, "-") {
			break
		}
		words = append(words, t.text)
	}
	for n := len(words); n > 0; n-- {
		if cmd, ok := e.Lookup(strings.Join(words[:n], " ")); ok {
			return cmd, n, nil
		}
	}

	head := stage[0]
	err := Errorf(head.span, "Command not found", "unknown command `%s`", head.text)
	if s := suggest(head.text, e.Names()); s != "" {
		err.Help = fmt.Sprintf("did you mean `%s`?", s)
	}
	return nil, 0, err
}

func isLongFlag(t token) bool {
	return t.kind == tokWord && strings.HasPrefix(t.text, "--") && len(t.text) > 2
}

// isShortFlag は "-v" のような短縮フラグかを判定する。"-1" は負の数として扱う。
func isShortFlag(t token) bool {
	return t.kind == tokWord && len(t.text) > 1 && t.text[0] == '-' && t.text[1] != '-' && !numberRe.MatchString(t.text)
}

func bindLong(sig *Signature, call *Call, t token, rest []token) (help bool, consumed int, err error) {
	name, raw, hasValue := strings.Cut(t.text[2:], "=")
	f, ok := sig.LookupFlag(name)
	if !ok {
		// 宣言された help フラグが無いときだけ --help をヘルプ要求とみなす
		if name == "help" {
			return true, 0, nil
		}
		return false, 0, unknownFlag(sig, t.span, "--"+name, name)
	}

	if f.Switch {
		v := value.Value(value.Bool(true))
		if hasValue {
			b, perr := strconv.ParseBool(unquoteWord(raw))
			if perr != nil {
				return false, 0, Errorf(t.span, "Type mismatch", "flag `--%s` expects bool, found `%s`", name, raw)
			}
			v = value.Bool(b)
		}
		call.Named[f.Name] = Arg{Value: v, Span: t.span}
		return false, 0, nil
	}

	var arg Arg
	switch {
	case hasValue:
		v, perr := parseWord(raw, t.span)
		if perr != nil {
			return false, 0, perr
		}
		arg = Arg{Value: v, Span: t.span}
	case len(rest) > 0:
		v, perr := parseLiteral(rest[0])
		if perr != nil {
			return false, 0, perr
		}
		arg, consumed = Arg{Value: v, Span: rest[0].span}, 1
	default:
		return false, 0, Errorf(t.span, "Missing flag argument", "flag `--%s` expects a value of type %s", name, f.Shape)
	}

	if err := checkShape(f.Name, f.Shape, &arg); err != nil {
		return false, 0, err
	}
	call.Named[f.Name] = arg
	return false, consumed, nil
}

// bindShort は "-rv" のような短縮フラグの並びを処理する。値を取るフラグは最後の1文字のみ。
func bindShort(sig *Signature, call *Call, t token, rest []token) (help bool, consumed int, err error) {
	runes := []rune(t.text[1:])
	for i, r := range runes {
		f, ok := sig.LookupShort(r)
		if !ok {
			if r == 'h' {
				return true, 0, nil
			}
			return false, 0, unknownFlag(sig, t.span, "-"+string(r), string(r))
		}
		if f.Switch {
			call.Named[f.Name] = Arg{Value: value.Bool(true), Span: t.span}
			continue
		}
		if i != len(runes)-1 || len(rest) == 0 {
			return false, 0, Errorf(t.span, "Missing flag argument", "flag `-%c` expects a value of type %s", r, f.Shape)
		}
		v, perr := parseLiteral(rest[0])
		if perr != nil {
			return false, 0, perr
		}
		arg := Arg{Value: v, Span: rest[0].span}
		if err := checkShape(f.Name, f.Shape, &arg); err != nil {
			return false, 0, err
		}
		call.Named[f.Name] = arg
		consumed = 1
	}
	return false, consumed, nil
}

func bindPositional(sig *Signature, call *Call, t token) error {
	v, err := parseLiteral(t)
	if err != nil {
		return err
	}
	arg := Arg{Value: v, Span: t.span}

	idx := len(call.Positional)
	var p *Param
	switch {
	case idx < len(sig.Positionals):
		p = &sig.Positionals[idx]
	case sig.Rest != nil:
		p = sig.Rest
	default:
		err := Errorf(t.span, "Extra positional argument", "`%s` takes %d positional argument(s)", sig.Name, len(sig.Positionals))
		err.Help = "Usage: " + sig.Usage()
		return err
	}
	if err := checkShape(p.Name, p.Shape, &arg); err != nil {
		return err
	}
	call.Positional = append(call.Positional, arg)
	return nil
}

// checkShape は引数の型を検査し、許容される変換を適用する
func checkShape(name string, shape Shape, arg *Arg) error {
	v, ok := shape.Accept(arg.Value)
	if !ok {
		return Errorf(arg.Span, "Type mismatch", "parameter `%s` expects %s, found %s", name, shape, arg.Value.Kind())
	}
	arg.Value = v
	return nil
}

func unknownFlag(sig *Signature, span Span, shown, name string) error {
	err := Errorf(span, "Unknown flag", "`%s` has no flag `%s`", sig.Name, shown)
	if s := suggest(name, sig.flagNames()); s != "" {
		err.Help = fmt.Sprintf("did you mean `--%s`?", s)
	} else {
		err.Help = "use `--help` for a list of flags"
	}
	return err
}
