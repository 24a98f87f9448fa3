package shell

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/0x6d61/mcp-repl/internal/bridge"
	"github.com/0x6d61/mcp-repl/internal/value"
)

// maxRangeRows は first / last が範囲を展開する上限
const maxRangeRows = 1 << 20

// Version はビルド時に -ldflags "-X .../internal/shell.Version=..." で上書きする
var Version = "dev"

// builtin は関数で実装するコマンド
type builtin struct {
	sig Signature
	run func(ctx context.Context, call *Call, input value.Value) (value.Value, error)
}

func (b *builtin) Signature() *Signature { return &b.sig }

func (b *builtin) Run(ctx context.Context, call *Call, input value.Value) (value.Value, error) {
	return b.run(ctx, call, input)
}

func builtins() []Command {
	return []Command{
		&builtin{
			sig: Signature{Name: "exit", Description: "Exit the shell."},
			run: func(context.Context, *Call, value.Value) (value.Value, error) {
				return nil, ErrExit
			},
		},
		&builtin{
			sig: Signature{
				Name:        "echo",
				Description: "Returns its arguments, ignoring the piped-in value.",
				Rest:        &Param{Name: "rest", Shape: Of(ShapeAny), Desc: "the values to echo"},
			},
			run: runEcho,
		},
		&builtin{
			sig: Signature{
				Name:        "to json",
				Description: "Converts table data into JSON text.",
				Flags: []Flag{
					{Name: "raw", Short: 'r', Switch: true, Desc: "remove all of the whitespace"},
					{Name: "indent", Short: 'i', Shape: Of(ShapeInt), Desc: "specify indentation width"},
				},
			},
			run: runToJSON,
		},
		&builtin{
			sig: Signature{Name: "from json", Description: "Convert from JSON text into structured data."},
			run: func(_ context.Context, call *Call, input value.Value) (value.Value, error) {
				s, err := stringInput(call, input)
				if err != nil {
					return nil, err
				}
				return bridge.FromJSON([]byte(s))
			},
		},
		&builtin{
			sig: Signature{Name: "to yaml", Description: "Convert table into YAML text."},
			run: func(_ context.Context, _ *Call, input value.Value) (value.Value, error) {
				out, err := bridge.ToYAML(input)
				if err != nil {
					return nil, err
				}
				return value.String(out), nil
			},
		},
		&builtin{
			sig: Signature{Name: "from yaml", Description: "Parse YAML text into structured data."},
			run: func(_ context.Context, call *Call, input value.Value) (value.Value, error) {
				s, err := stringInput(call, input)
				if err != nil {
					return nil, err
				}
				return bridge.FromYAML([]byte(s))
			},
		},
		&builtin{
			sig: Signature{
				Name:        "get",
				Description: "Extract data using a cell path.",
				Positionals: []Param{{Name: "cell_path", Shape: Of(ShapeCellPath), Required: true, Desc: "the cell path to the data"}},
			},
			run: func(_ context.Context, call *Call, input value.Value) (value.Value, error) {
				arg, err := call.Required(0, "cell_path")
				if err != nil {
					return nil, err
				}
				out, err := arg.Value.(value.CellPath).Follow(input)
				if err != nil {
					return nil, &Error{Msg: "Cell path not found", Span: arg.Span, Err: err}
				}
				return out, nil
			},
		},
		&builtin{
			sig: Signature{Name: "length", Description: "Count the number of items in an input list or record."},
			run: runLength,
		},
		&builtin{
			sig: Signature{
				Name:        "first",
				Description: "Return only the first several rows of the input.",
				Positionals: []Param{{Name: "rows", Shape: Of(ShapeInt), Desc: "starting from the front, the number of rows to return"}},
			},
			run: func(_ context.Context, call *Call, input value.Value) (value.Value, error) {
				return takeRows(call, input, true)
			},
		},
		&builtin{
			sig: Signature{
				Name:        "last",
				Description: "Return only the last several rows of the input.",
				Positionals: []Param{{Name: "rows", Shape: Of(ShapeInt), Desc: "starting from the back, the number of rows to return"}},
			},
			run: func(_ context.Context, call *Call, input value.Value) (value.Value, error) {
				return takeRows(call, input, false)
			},
		},
		&builtin{
			sig: Signature{Name: "columns", Description: "Given a record or table, produce a list of its columns' names."},
			run: runColumns,
		},
		&builtin{
			sig: Signature{Name: "describe", Description: "Describe the type and structure of the value(s) piped in."},
			run: func(_ context.Context, _ *Call, input value.Value) (value.Value, error) {
				return value.String(Describe(input)), nil
			},
		},
		&builtin{
			sig: Signature{Name: "version", Description: "Display build information."},
			run: runVersion,
		},
	}
}

func runEcho(_ context.Context, call *Call, _ value.Value) (value.Value, error) {
	switch len(call.Positional) {
	case 0:
		return value.Nothing{}, nil
	case 1:
		return call.Positional[0].Value, nil
	}
	out := make(value.List, len(call.Positional))
	for i, a := range call.Positional {
		out[i] = a.Value
	}
	return out, nil
}

func runToJSON(_ context.Context, call *Call, input value.Value) (value.Value, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case call.Has("raw"):
		data, err = bridge.Marshal(input)
	default:
		width := 2
		if a, ok := call.Flag("indent"); ok {
			width = int(a.Value.(value.Int))
			if width < 0 {
				return nil, Errorf(a.Span, "Invalid indent", "indent must not be negative")
			}
		}
		data, err = bridge.MarshalIndent(input, strings.Repeat(" ", width))
	}
	if err != nil {
		return nil, err
	}
	return value.String(data), nil
}

func stringInput(call *Call, input value.Value) (string, error) {
	s, ok := input.(value.String)
	if !ok {
		return "", Errorf(call.Head, "Unsupported input", "expected string input, found %s", kindOf(input))
	}
	return string(s), nil
}

func runLength(_ context.Context, call *Call, input value.Value) (value.Value, error) {
	switch x := input.(type) {
	case value.List:
		return value.Int(len(x)), nil
	case value.Binary:
		return value.Int(len(x)), nil
	case *value.Record:
		return value.Int(x.Len()), nil
	case value.Nothing, nil:
		return value.Int(0), nil
	}
	return nil, Errorf(call.Head, "Unsupported input", "expected list, found %s", kindOf(input))
}

// takeRows は first / last の共通処理。件数省略時は要素そのものを返す。
func takeRows(call *Call, input value.Value, front bool) (value.Value, error) {
	list, ok := input.(value.List)
	if !ok {
		if r, isRange := input.(value.Range); isRange {
			list = r.Values(maxRangeRows)
		} else {
			return nil, Errorf(call.Head, "Unsupported input", "expected list, found %s", kindOf(input))
		}
	}

	arg, hasN := call.Nth(0)
	if !hasN {
		if len(list) == 0 {
			return nil, Errorf(call.Head, "Index out of range", "input is empty")
		}
		if front {
			return list[0], nil
		}
		return list[len(list)-1], nil
	}

	n := int(arg.Value.(value.Int))
	if n < 0 {
		return nil, Errorf(arg.Span, "Invalid row count", "rows must not be negative")
	}
	n = min(n, len(list))
	if front {
		return list[:n], nil
	}
	return list[len(list)-n:], nil
}

func runColumns(_ context.Context, call *Call, input value.Value) (value.Value, error) {
	var cols []string
	switch x := input.(type) {
	case *value.Record:
		cols = x.Keys()
	default:
		var ok bool
		if cols, ok = value.TableColumns(input); !ok {
			return nil, Errorf(call.Head, "Unsupported input", "expected record or table, found %s", kindOf(input))
		}
	}
	out := make(value.List, len(cols))
	for i, c := range cols {
		out[i] = value.String(c)
	}
	return out, nil
}

func runVersion(context.Context, *Call, value.Value) (value.Value, error) {
	rec := value.NewRecord().
		Set("version", value.String(Version)).
		Set("go_version", value.String(runtime.Version())).
		Set("build_os", value.String(runtime.GOOS+"-"+runtime.GOARCH))
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				rec.Set("commit_hash", value.String(s.Value))
			}
		}
	}
	return rec, nil
}

// Describe は値の型を "table<name: string>" のような形で返す
func Describe(v value.Value) string {
	switch x := v.(type) {
	case nil:
		return "nothing"
	case *value.Record:
		parts := make([]string, 0, x.Len())
		for k, item := range x.All() {
			parts = append(parts, k+": "+Describe(item))
		}
		return "record<" + strings.Join(parts, ", ") + ">"
	case value.List:
		if cols, ok := value.TableColumns(x); ok {
			first := x[0].(*value.Record)
			parts := make([]string, 0, len(cols))
			for _, c := range cols {
				if item, ok := first.Get(c); ok {
					parts = append(parts, c+": "+Describe(item))
				} else {
					parts = append(parts, c+": nothing")
				}
			}
			return "table<" + strings.Join(parts, ", ") + ">"
		}
		if len(x) == 0 {
			return "list<any>"
		}
		elem := Describe(x[0])
		for _, item := range x[1:] {
			if Describe(item) != elem {
				return "list<any>"
			}
		}
		return "list<" + elem + ">"
	case value.Custom:
		return x.Type
	case value.Error:
		return fmt.Sprintf("error (%v)", x.Err)
	}
	return v.Kind().String()
}

func kindOf(v value.Value) string {
	if v == nil {
		return value.KindNothing.String()
	}
	return v.Kind().String()
}
