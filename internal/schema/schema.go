// Package schema はツールの JSON Schema からコマンドのシグネチャと引数バインダを導出する。
//
// 位置引数の数 P は次の規則で決まる（N はプロパティ数、R は必須プロパティ）:
//
//	N == 1                 → 1（必須・任意を問わず唯一のプロパティ）
//	|R| == 2               → 2（必須の2つ、プロパティ順）
//	|R| == 1 かつ任意あり  → 1（必須の1つ）
//	それ以外               → 0
//
// 残りはすべてフラグになり、任意の boolean は値を取らないスイッチになる。
package schema

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/0x6d61/mcp-repl/internal/mcp"
	"github.com/0x6d61/mcp-repl/internal/shell"
)

// Mapping はシグネチャとバインダの組。シグネチャの Name と Description は呼び出し側が設定する。
type Mapping struct {
	Signature shell.Signature
	Binder    *Binder
}

// property はスキーマの1プロパティ
type property struct {
	name     string
	schema   gjson.Result
	required bool
}

// Map はツール定義からシグネチャとバインダを作る
func Map(tool mcp.Tool) (*Mapping, error) {
	props, err := properties(tool.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("schema: tool %q: %w", tool.Name, err)
	}

	positional := classify(props)
	isPositional := make(map[string]bool, len(positional))
	for _, p := range positional {
		isPositional[p.name] = true
	}

	m := &Mapping{Binder: &Binder{}}
	for _, p := range positional {
		m.Signature.Positionals = append(m.Signature.Positionals, shell.Param{
			Name:     p.name,
			Shape:    shapeOf(p.schema),
			Required: p.required,
			Desc:     describe(p.name, p.schema),
		})
		m.Binder.positionals = append(m.Binder.positionals, newBinding(p))
	}
	for _, p := range props {
		if isPositional[p.name] {
			continue
		}
		b := newBinding(p)
		m.Signature.Flags = append(m.Signature.Flags, shell.Flag{
			Name:     p.name,
			Shape:    shapeOf(p.schema),
			Switch:   b.isSwitch,
			Required: p.required,
			Desc:     describe(p.name, p.schema),
		})
		m.Binder.flags = append(m.Binder.flags, b)
	}
	for _, p := range props {
		m.Binder.order = append(m.Binder.order, p.name)
		if p.required {
			m.Binder.required = append(m.Binder.required, p.name)
		}
	}
	return m, nil
}

// properties はスキーマの properties をドキュメント順に返す。properties が無ければ空。
func properties(raw []byte) ([]property, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid input schema")
	}
	root := gjson.ParseBytes(raw)

	required := make(map[string]bool)
	for _, r := range root.Get("required").Array() {
		if r.Type == gjson.String {
			required[r.String()] = true
		}
	}

	props := root.Get("properties")
	if !props.IsObject() {
		return nil, nil
	}
	var out []property
	props.ForEach(func(k, v gjson.Result) bool {
		out = append(out, property{name: k.String(), schema: v, required: required[k.String()]})
		return true
	})
	return out, nil
}

// classify は位置引数になるプロパティを返す
func classify(props []property) []property {
	var req []property
	optional := 0
	for _, p := range props {
		if p.required {
			req = append(req, p)
		} else {
			optional++
		}
	}
	switch {
	case len(props) == 1:
		return props[:1]
	case len(req) == 2:
		return req
	case len(req) == 1 && optional > 0:
		return req
	default:
		return nil
	}
}

// shapeOf は JSON Schema の型を引数の Shape に対応付ける
func shapeOf(s gjson.Result) shell.Shape {
	if !s.IsObject() {
		return shell.Of(shell.ShapeAny)
	}
	t := s.Get("type")
	if t.Type != gjson.String {
		// type 無し・type の配列・oneOf / anyOf / allOf / $ref
		return shell.Of(shell.ShapeAny)
	}

	switch t.String() {
	case "string":
		if s.Get("enum").Exists() {
			return shell.Of(shell.ShapeString)
		}
		switch s.Get("format").String() {
		case "date", "date-time", "time":
			return shell.Of(shell.ShapeDate)
		}
		return shell.Of(shell.ShapeString)
	case "integer":
		return shell.Of(shell.ShapeInt)
	case "number":
		return shell.Of(shell.ShapeNumber)
	case "boolean":
		return shell.Of(shell.ShapeBool)
	case "null":
		return shell.Of(shell.ShapeNothing)
	case "array":
		if items := s.Get("items"); items.Exists() {
			return shell.ListOf(shapeOf(items))
		}
		return shell.ListOf(shell.Of(shell.ShapeAny))
	case "object":
		if s.Get("properties").Exists() {
			return shell.Of(shell.ShapeRecord)
		}
		return shell.Of(shell.ShapeAny)
	}
	return shell.Of(shell.ShapeAny)
}

// describe はパラメータの説明を返す。description が無ければスキーマから組み立てる。
func describe(name string, s gjson.Result) string {
	if d := s.Get("description"); d.Type == gjson.String {
		return d.String()
	}

	var values []string
	for _, v := range s.Get("enum").Array() {
		if v.Type == gjson.String {
			values = append(values, `"`+v.String()+`"`)
		}
	}
	if len(values) > 0 {
		return "Valid values: " + strings.Join(values, ", ")
	}

	if f := s.Get("format"); f.Type == gjson.String {
		return fmt.Sprintf("%s in %s format", name, f.String())
	}
	if p := s.Get("pattern"); p.Type == gjson.String {
		return "Must match pattern: " + p.String()
	}

	var constraints []string
	if v := s.Get("minimum"); v.Type == gjson.Number {
		constraints = append(constraints, "min: "+v.Raw)
	}
	if v := s.Get("maximum"); v.Type == gjson.Number {
		constraints = append(constraints, "max: "+v.Raw)
	}
	if len(constraints) > 0 {
		return "Constraints: " + strings.Join(constraints, ", ")
	}

	switch s.Get("type").String() {
	case "object":
		return "JSON object parameter"
	case "array":
		return "List of values"
	}
	return name + " parameter"
}
