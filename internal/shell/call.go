package shell

import (
	"context"

	"github.com/0x6d61/mcp-repl/internal/value"
)

// Command はエンジンに登録できるコマンド
type Command interface {
	Signature() *Signature
	Run(ctx context.Context, call *Call, input value.Value) (value.Value, error)
}

// Arg は評価済みの引数とその位置
type Arg struct {
	Value value.Value
	Span  Span
}

// Call は1回のコマンド呼び出し。引数は型検査済み。
type Call struct {
	Name string
	// Head はコマンド名のスパン
	Head       Span
	Positional []Arg
	Named      map[string]Arg
}

// NewCall はテストやコマンド間呼び出し用に空の Call を作る
func NewCall(name string) *Call {
	return &Call{Name: name, Named: make(map[string]Arg)}
}

// Nth は i 番目の位置引数を返す
func (c *Call) Nth(i int) (Arg, bool) {
	if i < 0 || i >= len(c.Positional) {
		return Arg{}, false
	}
	return c.Positional[i], true
}

// Flag は名前付き引数を返す。スイッチは値 Bool(true) を持つ。
func (c *Call) Flag(name string) (Arg, bool) {
	a, ok := c.Named[name]
	return a, ok
}

// Has はスイッチまたはフラグが指定されたかを返す
func (c *Call) Has(name string) bool {
	a, ok := c.Named[name]
	if !ok {
		return false
	}
	if b, isBool := a.Value.(value.Bool); isBool {
		return bool(b)
	}
	return true
}

// Span は呼び出し全体（コマンド名から最後の引数まで）のスパン
func (c *Call) Span() Span {
	s := c.Head
	for _, a := range c.Positional {
		s.End = max(s.End, a.Span.End)
	}
	for _, a := range c.Named {
		s.End = max(s.End, a.Span.End)
	}
	return s
}

// Required は i 番目の位置引数を返し、無ければ Error を返す
func (c *Call) Required(i int, name string) (Arg, error) {
	a, ok := c.Nth(i)
	if !ok {
		return Arg{}, Errorf(c.Head, "Missing required positional argument", "missing `%s`", name)
	}
	return a, nil
}

// WithPositional は位置引数を追加した Call を返す（テスト用の組み立て補助）
func (c *Call) WithPositional(v value.Value) *Call {
	c.Positional = append(c.Positional, Arg{Value: v, Span: c.Head})
	return c
}

// WithFlag はフラグを追加した Call を返す
func (c *Call) WithFlag(name string, v value.Value) *Call {
	if c.Named == nil {
		c.Named = make(map[string]Arg)
	}
	c.Named[name] = Arg{Value: v, Span: c.Head}
	return c
}
