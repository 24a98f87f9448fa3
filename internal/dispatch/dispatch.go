// Package dispatch は MCP 関連の組み込みコマンド（tool / resource / help）を提供する
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/0x6d61/mcp-repl/internal/adapter"
	"github.com/0x6d61/mcp-repl/internal/bridge"
	"github.com/0x6d61/mcp-repl/internal/registry"
	"github.com/0x6d61/mcp-repl/internal/shell"
	"github.com/0x6d61/mcp-repl/internal/value"
)

// NoToolsMessage は tool list の結果が空のときに返すメッセージ
const NoToolsMessage = "No registered MCP tools found. Try connecting to an MCP server first."

// Dispatcher はレジストリとエンジンを結ぶ組み込みコマンド群
type Dispatcher struct {
	reg *registry.Registry
	eng *shell.Engine
}

// Install は組み込みコマンドを eng に登録する
func Install(eng *shell.Engine, reg *registry.Registry) (*Dispatcher, error) {
	d := &Dispatcher{reg: reg, eng: eng}
	for _, cmd := range d.commands() {
		if err := eng.Register(cmd); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// command は関数で実装するコマンド
type command struct {
	sig shell.Signature
	run func(ctx context.Context, call *shell.Call, input value.Value) (value.Value, error)
}

func (c *command) Signature() *shell.Signature { return &c.sig }

func (c *command) Run(ctx context.Context, call *shell.Call, input value.Value) (value.Value, error) {
	return c.run(ctx, call, input)
}

func (d *Dispatcher) commands() []shell.Command {
	return []shell.Command{
		&command{
			sig: shell.Signature{Name: "tool", Description: "Commands for working with MCP tools."},
			run: d.runNamespace("tool"),
		},
		&command{
			sig: shell.Signature{
				Name:        "tool list",
				Description: "List all available MCP tools.",
				Flags: []shell.Flag{
					{Name: "protocol", Short: 'r', Switch: true, Desc: "Show protocol schema"},
					{Name: "filter", Short: 'f', Shape: shell.Of(shell.ShapeString), Desc: "only tools whose qualified name matches the glob"},
				},
			},
			run: d.runToolList,
		},
		&command{
			sig: shell.Signature{
				Name:        "tool call",
				Description: "Call an MCP tool by its qualified name with a record of arguments.",
				Positionals: []shell.Param{
					{Name: "name", Shape: shell.Of(shell.ShapeString), Required: true, Desc: "qualified tool name, e.g. fs.read"},
					{Name: "arguments", Shape: shell.Of(shell.ShapeRecord), Desc: "tool arguments"},
				},
			},
			run: d.runToolCall,
		},
		&command{
			sig: shell.Signature{Name: "resource", Description: "Commands for working with MCP resources."},
			run: d.runNamespace("resource"),
		},
		&command{
			sig: shell.Signature{
				Name:        "resource list",
				Description: "List all available MCP resources.",
				Flags: []shell.Flag{
					{Name: "server", Short: 's', Shape: shell.Of(shell.ShapeString), Desc: "only resources of this server"},
					{Name: "templates", Short: 't', Switch: true, Desc: "list resource templates instead"},
				},
			},
			run: d.runResourceList,
		},
		&command{
			sig: shell.Signature{
				Name:        "help",
				Description: "Display help information about commands.",
				Rest:        &shell.Param{Name: "rest", Shape: shell.Of(shell.ShapeString), Desc: "the name of the command to get help on"},
				Flags: []shell.Flag{
					{Name: "find", Short: 'f', Shape: shell.Of(shell.ShapeString), Desc: "string to find in command names and descriptions"},
				},
			},
			run: d.runHelp,
		},
	}
}

func (d *Dispatcher) runNamespace(name string) func(context.Context, *shell.Call, value.Value) (value.Value, error) {
	return func(context.Context, *shell.Call, value.Value) (value.Value, error) {
		text, err := d.eng.HelpText(name)
		if err != nil {
			return nil, err
		}
		return value.String(text), nil
	}
}

func (d *Dispatcher) runToolList(_ context.Context, call *shell.Call, _ value.Value) (value.Value, error) {
	protocol := call.Has("protocol")
	var pattern string
	if f, ok := call.Flag("filter"); ok {
		pattern = string(f.Value.(value.String))
		if !doublestar.ValidatePattern(pattern) {
			return nil, shell.Errorf(f.Span, "Invalid glob", "`%s` is not a valid pattern", pattern)
		}
	}

	rows := value.List{}
	for _, t := range d.reg.Tools() {
		qualified := t.Qualified()
		if pattern != "" {
			if ok, _ := doublestar.Match(pattern, qualified); !ok {
				continue
			}
		}
		rec := value.NewRecord().
			Set("#", value.Int(len(rows))).
			Set("client", value.String(t.Server)).
			Set("name", value.String(qualified)).
			Set("description", value.String(t.Def.Description))
		if protocol {
			rec.Set("protocol", schemaValue(t.Def.InputSchema))
		}
		rows = append(rows, rec)
	}

	if len(rows) == 0 {
		return value.List{value.NewRecord().Set("message", value.String(NoToolsMessage))}, nil
	}
	return rows, nil
}

// schemaValue は入力スキーマをシェル値にする。壊れていれば生の文字列を返す。
func schemaValue(raw []byte) value.Value {
	if len(raw) == 0 {
		return value.Nothing{}
	}
	v, err := bridge.FromJSON(raw)
	if err != nil {
		return value.String(raw)
	}
	return v
}

func (d *Dispatcher) runToolCall(ctx context.Context, call *shell.Call, _ value.Value) (value.Value, error) {
	nameArg, err := call.Required(0, "name")
	if err != nil {
		return nil, err
	}
	qualified := string(nameArg.Value.(value.String))

	t, ok := d.reg.Lookup(qualified)
	if !ok {
		err := shell.Errorf(nameArg.Span, "Tool not found", "no MCP tool named `%s`", qualified)
		var names []string
		for _, t := range d.reg.Tools() {
			names = append(names, t.Qualified())
		}
		if s := shell.Suggest(qualified, names); s != "" {
			err.Help = fmt.Sprintf("did you mean `%s`?", s)
		} else {
			err.Help = "use `tool list` to see the available tools"
		}
		return nil, err
	}
	srv, err := d.reg.Server(t.Server)
	if err != nil {
		return nil, shell.Wrap(err, nameArg.Span, "Tool not found")
	}

	var args any = bridge.NewObject()
	if a, ok := call.Nth(1); ok {
		args, err = bridge.ToJSON(a.Value)
		if err != nil {
			return nil, &shell.Error{Msg: "Failed to parse tool parameters", Label: err.Error(), Span: a.Span, Err: err}
		}
	}
	return adapter.Invoke(ctx, srv.Client, t.Def.Name, args, call.Head)
}

func (d *Dispatcher) runResourceList(_ context.Context, call *shell.Call, _ value.Value) (value.Value, error) {
	servers := d.reg.Servers()
	if f, ok := call.Flag("server"); ok {
		srv, err := d.reg.Server(string(f.Value.(value.String)))
		if err != nil {
			return nil, shell.Wrap(err, f.Span, "Server not found")
		}
		servers = []*registry.Server{srv}
	}
	templates := call.Has("templates")

	rows := value.List{}
	for _, srv := range servers {
		if templates {
			for _, rt := range srv.Client.ResourceTemplates() {
				rows = append(rows, resourceRow(srv.Name, rt.Name, rt.URITemplate, rt.MimeType, rt.Description))
			}
			continue
		}
		for _, r := range srv.Client.Resources() {
			rows = append(rows, resourceRow(srv.Name, r.Name, r.URI, r.MimeType, r.Description))
		}
	}
	return rows, nil
}

func resourceRow(client, name, uri, mime, desc string) *value.Record {
	var typ value.Value = value.Nothing{}
	if mime != "" {
		typ = value.String(mime)
	}
	return value.NewRecord().
		Set("client", value.String(client)).
		Set("name", value.String(name)).
		Set("uri", value.String(uri)).
		Set("type", typ).
		Set("description", value.String(desc))
}

func (d *Dispatcher) runHelp(_ context.Context, call *shell.Call, _ value.Value) (value.Value, error) {
	if f, ok := call.Flag("find"); ok {
		return d.findCommands(string(f.Value.(value.String))), nil
	}
	if len(call.Positional) == 0 {
		return value.Markdown(Welcome), nil
	}

	words := make([]string, 0, len(call.Positional))
	span := call.Positional[0].Span
	for _, a := range call.Positional {
		words = append(words, string(a.Value.(value.String)))
		span.End = a.Span.End
	}
	name := strings.Join(words, " ")
	if name == "commands" {
		return d.findCommands(""), nil
	}

	text, err := d.eng.HelpText(name)
	if err != nil {
		var se *shell.Error
		if errors.As(err, &se) {
			se.Span = span
		}
		return nil, err
	}
	return value.String(text), nil
}

// findCommands は名前か説明に needle を含むコマンドの一覧を返す
func (d *Dispatcher) findCommands(needle string) value.List {
	needle = strings.ToLower(needle)
	rows := value.List{}
	for _, name := range d.eng.Names() {
		cmd, ok := d.eng.Lookup(name)
		if !ok {
			continue
		}
		desc := cmd.Signature().Description
		if needle != "" && !strings.Contains(strings.ToLower(name), needle) && !strings.Contains(strings.ToLower(desc), needle) {
			continue
		}
		rows = append(rows, value.NewRecord().
			Set("name", value.String(name)).
			Set("description", value.String(desc)))
	}
	return rows
}

// Welcome は引数なしの help が返す案内文
const Welcome = "# Welcome to mcp-repl\n\n" +
	"Every tool of a connected MCP server is a command named `tool <server>.<tool>`.\n\n" +
	"Here are some tips to help you get started.\n\n" +
	"* `help commands` - list all available commands\n" +
	"* `help <command name>` - display help about a particular command\n" +
	"* `help --find <text>` - search command names and descriptions\n\n" +
	"Commands are connected with `|`. Each stage receives the output of the previous one.\n\n" +
	"## Examples\n\n" +
	"List all available MCP tools:\n\n" +
	"    tool list\n\n" +
	"Call a specific MCP tool:\n\n" +
	"    tool fs.read_file go.mod | length\n\n" +
	"Call a tool with a record of arguments:\n\n" +
	"    tool call fs.read_file {path: go.mod}\n\n" +
	"List the resources of one server:\n\n" +
	"    resource list --server fs\n"
