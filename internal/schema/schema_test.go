package schema

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x6d61/mcp-repl/internal/bridge"
	"github.com/0x6d61/mcp-repl/internal/mcp"
	"github.com/0x6d61/mcp-repl/internal/shell"
	"github.com/0x6d61/mcp-repl/internal/value"
)

func mapSchema(t *testing.T, schema string) *Mapping {
	t.Helper()
	m, err := Map(mcp.Tool{Name: "t", InputSchema: json.RawMessage(schema)})
	require.NoError(t, err)
	return m
}

func bindJSON(t *testing.T, m *Mapping, call *shell.Call) string {
	t.Helper()
	obj, err := m.Binder.Bind(call)
	require.NoError(t, err)
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return string(data)
}

func positionalNames(m *Mapping) []string {
	var names []string
	for _, p := range m.Signature.Positionals {
		names = append(names, p.Name)
	}
	return names
}

func flagNames(m *Mapping) []string {
	var names []string
	for _, f := range m.Signature.Flags {
		names = append(names, f.Name)
	}
	return names
}

func TestMap_SingleRequiredString(t *testing.T) {
	m := mapSchema(t, `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)

	require.Len(t, m.Signature.Positionals, 1)
	p := m.Signature.Positionals[0]
	assert.Equal(t, "path", p.Name)
	assert.Equal(t, shell.ShapeString, p.Shape.Kind)
	assert.True(t, p.Required)
	assert.Equal(t, "path parameter", p.Desc)
	assert.Empty(t, m.Signature.Flags)

	call := shell.NewCall("tool fs.read").WithPositional(value.String("/etc/hosts"))
	assert.JSONEq(t, `{"path":"/etc/hosts"}`, bindJSON(t, m, call))
}

func TestMap_TwoRequiredWithOptionalFlag(t *testing.T) {
	m := mapSchema(t, `{"type":"object","properties":{
		"src":{"type":"string"},
		"dst":{"type":"string"},
		"overwrite":{"type":"boolean"}
	},"required":["src","dst"]}`)

	assert.Equal(t, []string{"src", "dst"}, positionalNames(m))
	require.Len(t, m.Signature.Flags, 1)
	f := m.Signature.Flags[0]
	assert.Equal(t, "overwrite", f.Name)
	assert.True(t, f.Switch)

	call := shell.NewCall("tool fs.copy").
		WithPositional(value.String("a")).
		WithPositional(value.String("b")).
		WithFlag("overwrite", value.Bool(true))
	assert.Equal(t, `{"src":"a","dst":"b","overwrite":true}`, bindJSON(t, m, call))

	t.Run("missing dst", func(t *testing.T) {
		call := shell.NewCall("tool fs.copy").WithPositional(value.String("a"))
		_, err := m.Binder.Bind(call)
		var be *BindError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "dst", be.Param)
		assert.Equal(t, "missing required parameter `dst`", err.Error())
	})
}

func TestMap_SoleOptionalBooleanIsPositional(t *testing.T) {
	m := mapSchema(t, `{"type":"object","properties":{"verbose":{"type":"boolean"}}}`)

	require.Len(t, m.Signature.Positionals, 1)
	assert.Equal(t, shell.ShapeBool, m.Signature.Positionals[0].Shape.Kind)
	assert.False(t, m.Signature.Positionals[0].Required)
	assert.Empty(t, m.Signature.Flags)

	assert.Equal(t, `{}`, bindJSON(t, m, shell.NewCall("tool x.y")))
	assert.Equal(t, `{"verbose":false}`, bindJSON(t, m, shell.NewCall("tool x.y").WithPositional(value.Bool(false))))
}

func TestMap_OneRequiredAndOptionalSwitch(t *testing.T) {
	m := mapSchema(t, `{"type":"object","properties":{
		"text":{"type":"string"},
		"verbose":{"type":"boolean"}
	},"required":["text"]}`)

	assert.Equal(t, []string{"text"}, positionalNames(m))
	assert.Equal(t, []string{"verbose"}, flagNames(m))

	call := shell.NewCall("tool echo.say").WithPositional(value.String("hi")).WithFlag("verbose", value.Bool(true))
	assert.Equal(t, `{"text":"hi","verbose":true}`, bindJSON(t, m, call))

	// 指定されていないスイッチはキーごと省く
	call = shell.NewCall("tool echo.say").WithPositional(value.String("hi"))
	assert.Equal(t, `{"text":"hi"}`, bindJSON(t, m, call))

	// --verbose=false も省く
	call = shell.NewCall("tool echo.say").WithPositional(value.String("hi")).WithFlag("verbose", value.Bool(false))
	assert.Equal(t, `{"text":"hi"}`, bindJSON(t, m, call))
}

func TestMap_PositionalCount(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		want   []string
	}{
		{"no schema", ``, nil},
		{"no properties", `{"type":"object"}`, nil},
		{"single optional", `{"properties":{"a":{"type":"string"}}}`, []string{"a"}},
		{"two required", `{"properties":{"a":{},"b":{}},"required":["b","a"]}`, []string{"a", "b"}},
		{"one required plus optional", `{"properties":{"a":{},"b":{}},"required":["b"]}`, []string{"b"}},
		{"three required", `{"properties":{"a":{},"b":{},"c":{}},"required":["a","b","c"]}`, nil},
		{"two optional", `{"properties":{"a":{},"b":{}}}`, nil},
		{"required not in properties", `{"properties":{"a":{},"b":{}},"required":["zzz"]}`, nil},
		{"two required plus optional", `{"properties":{"a":{},"b":{},"c":{}},"required":["a","c"]}`, []string{"a", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mapSchema(t, tt.schema)
			assert.Equal(t, tt.want, positionalNames(m))
			assert.Equal(t, len(tt.want), m.Binder.Positionals())
		})
	}
}

func TestMap_FlagsFollowPropertyOrder(t *testing.T) {
	m := mapSchema(t, `{"properties":{"zeta":{},"alpha":{},"mid":{"type":"integer"}}}`)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, flagNames(m))
	assert.Equal(t, shell.ShapeInt, m.Signature.Flags[2].Shape.Kind)
	assert.False(t, m.Signature.Flags[2].Switch)
}

func TestMap_InvalidSchema(t *testing.T) {
	_, err := Map(mcp.Tool{Name: "broken", InputSchema: json.RawMessage(`{"properties":`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestShapeOf(t *testing.T) {
	tests := []struct {
		schema string
		want   string
	}{
		{`{"type":"string"}`, "string"},
		{`{"type":"string","enum":["a"],"format":"date"}`, "string"},
		{`{"type":"string","format":"date-time"}`, "datetime"},
		{`{"type":"string","format":"time"}`, "datetime"},
		{`{"type":"string","format":"uri"}`, "string"},
		{`{"type":"integer"}`, "int"},
		{`{"type":"number"}`, "number"},
		{`{"type":"boolean"}`, "bool"},
		{`{"type":"null"}`, "nothing"},
		{`{"type":"array","items":{"type":"integer"}}`, "list<int>"},
		{`{"type":"array","items":{"type":"object","properties":{"x":{}}}}`, "table"},
		{`{"type":"array"}`, "list<any>"},
		{`{"type":"object","properties":{"x":{}}}`, "record"},
		{`{"type":"object"}`, "any"},
		{`{"type":["string","null"]}`, "any"},
		{`{"oneOf":[{"type":"string"}]}`, "any"},
		{`{}`, "any"},
		{`{"type":"weird"}`, "any"},
	}
	for _, tt := range tests {
		t.Run(tt.schema, func(t *testing.T) {
			m := mapSchema(t, `{"properties":{"x":`+tt.schema+`}}`)
			require.Len(t, m.Signature.Positionals, 1)
			assert.Equal(t, tt.want, m.Signature.Positionals[0].Shape.String())
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		schema string
		want   string
	}{
		{`{"type":"string","description":"File path"}`, "File path"},
		{`{"type":"string","enum":["fast","slow",3]}`, `Valid values: "fast", "slow"`},
		{`{"type":"string","format":"uri"}`, "x in uri format"},
		{`{"type":"string","pattern":"^[a-z]+$"}`, "Must match pattern: ^[a-z]+$"},
		{`{"type":"integer","minimum":1,"maximum":10}`, "Constraints: min: 1, max: 10"},
		{`{"type":"integer","maximum":5}`, "Constraints: max: 5"},
		{`{"type":"object"}`, "JSON object parameter"},
		{`{"type":"array"}`, "List of values"},
		{`{"type":"string"}`, "x parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.schema, func(t *testing.T) {
			m := mapSchema(t, `{"properties":{"x":`+tt.schema+`}}`)
			assert.Equal(t, tt.want, m.Signature.Positionals[0].Desc)
		})
	}
}

func TestBind_KeysAreSchemaProperties(t *testing.T) {
	m := mapSchema(t, `{"properties":{
		"query":{"type":"string"},
		"limit":{"type":"integer"},
		"tags":{"type":"array","items":{"type":"string"}},
		"exact":{"type":"boolean"}
	},"required":["query"]}`)

	call := shell.NewCall("tool search.run").
		WithPositional(value.String("go")).
		WithFlag("limit", value.Int(5)).
		WithFlag("tags", value.List{value.String("a"), value.String("b")}).
		WithFlag("exact", value.Bool(true))

	obj, err := m.Binder.Bind(call)
	require.NoError(t, err)

	var keys []string
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"query", "limit", "tags", "exact"}, keys)

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"go","limit":5,"tags":["a","b"],"exact":true}`, string(data))
}

func TestBind_PositionalByFlagName(t *testing.T) {
	m := mapSchema(t, `{"properties":{"path":{"type":"string"}},"required":["path"]}`)
	call := shell.NewCall("tool fs.read").WithFlag("path", value.String("/tmp"))
	assert.Equal(t, `{"path":"/tmp"}`, bindJSON(t, m, call))
}

func TestBind_DateFormats(t *testing.T) {
	m := mapSchema(t, `{"properties":{
		"day":{"type":"string","format":"date"},
		"at":{"type":"string","format":"date-time"},
		"clock":{"type":"string","format":"time"}
	}}`)
	d := value.Date(time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC))
	call := shell.NewCall("tool cal.add").WithFlag("day", d).WithFlag("at", d).WithFlag("clock", d)

	obj, err := m.Binder.Bind(call)
	require.NoError(t, err)
	day, _ := obj.Get("day")
	clock, _ := obj.Get("clock")
	assert.Equal(t, "2024-03-09", day)
	assert.Equal(t, "14:05:06Z", clock)
	_, ok := obj.Get("at")
	assert.True(t, ok)
}

func TestBind_NonFiniteFloat(t *testing.T) {
	m := mapSchema(t, `{"properties":{"ratio":{"type":"number"}},"required":["ratio"]}`)
	call := shell.NewCall("tool calc.scale").WithPositional(value.Float(math.Inf(1)))

	_, err := m.Binder.Bind(call)
	require.Error(t, err)
	assert.ErrorIs(t, err, bridge.ErrNonFiniteFloat)
	assert.Contains(t, err.Error(), "float not representable in JSON")

	var be *BindError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "ratio", be.Param)
}
