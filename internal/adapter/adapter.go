// Package adapter は MCP ツールをシェルのコマンドとして包む
package adapter

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/0x6d61/mcp-repl/internal/async"
	"github.com/0x6d61/mcp-repl/internal/logging"
	"github.com/0x6d61/mcp-repl/internal/mcp"
	"github.com/0x6d61/mcp-repl/internal/schema"
	"github.com/0x6d61/mcp-repl/internal/shell"
	"github.com/0x6d61/mcp-repl/internal/value"
)

// Prefix はアダプタが登録するコマンド名の接頭辞
const Prefix = "tool "

// Caller はツールを実行できるクライアント
type Caller interface {
	CallTool(ctx context.Context, name string, args any) ([]mcp.Content, error)
}

// LivenessFunc は修飾名 "<ns>.<tool>" のツールがまだ登録されているかを返す
type LivenessFunc func(qualified string) bool

// Command は1つの MCP ツールに対応するシェルコマンド
type Command struct {
	tool      mcp.Tool
	namespace string
	qualified string
	sig       shell.Signature
	binder    *schema.Binder
	client    Caller
	live      LivenessFunc
	log       *slog.Logger
}

// New はツール定義からコマンドを作る。live が nil なら生存確認をしない。
func New(tool mcp.Tool, namespace string, client Caller, live LivenessFunc) (*Command, error) {
	m, err := schema.Map(tool)
	if err != nil {
		return nil, err
	}
	qualified := Qualify(namespace, tool.Name)
	m.Signature.Name = Prefix + qualified
	m.Signature.Description = Description(tool)

	return &Command{
		tool:      tool,
		namespace: namespace,
		qualified: qualified,
		sig:       m.Signature,
		binder:    m.Binder,
		client:    client,
		live:      live,
		log:       logging.For("adapter").With("tool", qualified),
	}, nil
}

// Qualify は "<ns>.<tool>" を返す
func Qualify(namespace, tool string) string { return namespace + "." + tool }

// Description はツールの説明。空なら "MCP tool: <name>"。
func Description(tool mcp.Tool) string {
	if tool.Description != "" {
		return tool.Description
	}
	return "MCP tool: " + tool.Name
}

func (c *Command) Signature() *shell.Signature { return &c.sig }

// Tool は元のツール定義を返す
func (c *Command) Tool() mcp.Tool { return c.tool }

// Namespace はツールを提供するサーバーの名前空間
func (c *Command) Namespace() string { return c.namespace }

// Qualified は "<ns>.<tool>"
func (c *Command) Qualified() string { return c.qualified }

// Run は引数をバインドしてツールを呼び、結果のコンテンツをシェル値にする
func (c *Command) Run(ctx context.Context, call *shell.Call, _ value.Value) (value.Value, error) {
	if c.live != nil && !c.live(c.qualified) {
		return nil, shell.Errorf(call.Head, "MCP tool `"+c.qualified+"` is no longer registered", "")
	}

	args, err := c.binder.Bind(call)
	if err != nil {
		var be *schema.BindError
		span := call.Head
		if errors.As(err, &be) {
			span = be.Span
		}
		return nil, &shell.Error{Msg: "Failed to parse tool parameters", Label: err.Error(), Span: span, Err: err}
	}

	return Invoke(ctx, c.client, c.tool.Name, args, call.Head)
}

// Invoke はツールを同期的に呼び出し、結果を Reduce する。失敗は span を指す *shell.Error になる。
func Invoke(ctx context.Context, client Caller, name string, args any, span shell.Span) (value.Value, error) {
	contents, err := async.BlockOn(ctx, func(ctx context.Context) ([]mcp.Content, error) {
		return client.CallTool(ctx, name, args)
	})
	if err != nil {
		var te *mcp.ToolError
		if errors.As(err, &te) {
			return nil, &shell.Error{Msg: "Tool execution failed", Label: te.Error(), Span: span, Err: err}
		}
		return nil, &shell.Error{Msg: "Failed to call MCP tool", Label: detail(err), Span: span, Err: err}
	}
	return Reduce(contents), nil
}

// detail は CallError の場合は原因のみを返す
func detail(err error) string {
	var ce *mcp.CallError
	if errors.As(err, &ce) && ce.Err != nil {
		return ce.Err.Error()
	}
	return err.Error()
}

// Reduce はコンテンツ列をシェル値にする。0件は Nothing、1件はその値、複数はリスト。
func Reduce(contents []mcp.Content) value.Value {
	switch len(contents) {
	case 0:
		return value.Nothing{}
	case 1:
		return contentValue(contents[0])
	}
	out := make(value.List, 0, len(contents))
	for _, c := range contents {
		out = append(out, contentValue(c))
	}
	return out
}

func contentValue(c mcp.Content) value.Value {
	switch c.Type {
	case "image", "audio":
		n := len(c.Data)
		if raw, err := base64.StdEncoding.DecodeString(c.Data); err == nil {
			n = len(raw)
		}
		label := "Image"
		if c.Type == "audio" {
			label = "Audio"
		}
		return value.String(fmt.Sprintf("[%s: %d bytes, type: %s]", label, n, c.MimeType))
	case "resource":
		if c.Resource == nil {
			return value.String("[Resource: Non-text resource]")
		}
		if c.Resource.Blob != "" && c.Resource.Text == "" {
			return value.String("[Resource: Non-text resource]")
		}
		return value.String(c.Resource.Text)
	default:
		return value.String(c.Text)
	}
}
