package schema

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/0x6d61/mcp-repl/internal/bridge"
	"github.com/0x6d61/mcp-repl/internal/shell"
	"github.com/0x6d61/mcp-repl/internal/value"
)

// BindError は引数をツールのパラメータに対応付けられなかったことを示す
type BindError struct {
	Param string
	// Span は変換に失敗した引数の位置。必須パラメータの欠落では呼び出し全体を指す。
	Span shell.Span
	Err  error
}

func (e *BindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("missing required parameter `%s`", e.Param)
	}
	return fmt.Sprintf("parameter `%s`: %v", e.Param, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// binding は1パラメータの束縛規則
type binding struct {
	name     string
	format   string
	isSwitch bool
}

func newBinding(p property) binding {
	return binding{
		name:     p.name,
		format:   p.schema.Get("format").String(),
		isSwitch: !p.required && p.schema.Get("type").Type == gjson.String && p.schema.Get("type").String() == "boolean",
	}
}

// Binder はシェルの呼び出しをツール引数の JSON オブジェクトに変換する
type Binder struct {
	positionals []binding
	flags       []binding
	// order はプロパティのドキュメント順
	order    []string
	required []string
}

// Positionals は位置引数に割り当てたパラメータ数を返す
func (b *Binder) Positionals() int { return len(b.positionals) }

// Bind は呼び出しの引数を、スキーマのプロパティ名をキーとするオブジェクトにする。
// キーはスキーマのプロパティ順に並ぶ。
func (b *Binder) Bind(call *shell.Call) (*bridge.Object, error) {
	bound := make(map[string]any, len(b.order))

	for i, p := range b.positionals {
		arg, ok := call.Nth(i)
		if !ok {
			arg, ok = call.Flag(p.name)
		}
		if !ok {
			continue
		}
		v, err := convert(p, arg)
		if err != nil {
			return nil, err
		}
		bound[p.name] = v
	}

	for _, p := range b.flags {
		arg, ok := call.Flag(p.name)
		if !ok {
			continue
		}
		if p.isSwitch {
			if call.Has(p.name) {
				bound[p.name] = true
			}
			continue
		}
		v, err := convert(p, arg)
		if err != nil {
			return nil, err
		}
		bound[p.name] = v
	}

	for _, name := range b.required {
		if _, ok := bound[name]; !ok {
			return nil, &BindError{Param: name, Span: call.Span()}
		}
	}

	obj := bridge.NewObject()
	for _, name := range b.order {
		if v, ok := bound[name]; ok {
			obj.Set(name, v)
		}
	}
	return obj, nil
}

// convert は引数を JSON 値にする。日付は format に合わせた文字列にする。
func convert(p binding, arg shell.Arg) (any, error) {
	if d, ok := arg.Value.(value.Date); ok {
		switch p.format {
		case "date":
			return d.Time().Format("2006-01-02"), nil
		case "time":
			return d.Time().Format("15:04:05Z07:00"), nil
		}
	}
	v, err := bridge.ToJSON(arg.Value)
	if err != nil {
		return nil, &BindError{Param: p.name, Span: arg.Span, Err: err}
	}
	return v, nil
}
