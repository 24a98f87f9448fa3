package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/0x6d61/mcp-repl/internal/bridge"
	"github.com/0x6d61/mcp-repl/internal/logging"
	"github.com/0x6d61/mcp-repl/internal/value"
)

const (
	// DefaultHandshakeTimeout はハンドシェイクの既定の期限
	DefaultHandshakeTimeout = 20 * time.Second
	// ContainerHandshakeTimeout はコンテナ対話モードでの期限（イメージの取得を待つ）
	ContainerHandshakeTimeout = 60 * time.Second
	// debugRenderWidth はデバッグログに出す値の表示幅
	debugRenderWidth = 120
)

// Client は1つの MCP サーバーとの接続と、接続時に取得した一覧のスナップショットを持つ
type Client struct {
	namespace string
	session   *Session
	info      ServerInfo

	tools     []Tool
	resources []Resource
	templates []ResourceTemplate

	closed atomic.Bool
	log    *slog.Logger
}

type options struct {
	timeout       time.Duration
	httpClient    *http.Client
	transport     Transport
	clientVersion string
}

// Option は Connect の設定
type Option func(*options)

// WithHandshakeTimeout はハンドシェイクの期限を上書きする
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient は SSE 接続に使う HTTP クライアントを指定する
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTransport は設定に関わらず指定のトランスポートを使う
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithClientVersion は clientInfo.version を指定する
func WithClientVersion(v string) Option {
	return func(o *options) { o.clientVersion = v }
}

// Connect はサーバーに接続してハンドシェイクを行い、ツールとリソースの一覧を取得する。
// 一覧の取得に失敗した場合は警告をログに出し、空のまま続行する。
func Connect(ctx context.Context, cfg ServerConfig, opts ...Option) (*Client, error) {
	if (cfg.SSE == nil) == (cfg.Command == nil) {
		return nil, fmt.Errorf("mcp: server %q must have exactly one of sse or command", cfg.Name)
	}

	o := options{timeout: DefaultHandshakeTimeout}
	if cfg.Command != nil && IsContainerInteractive(append([]string{cfg.Command.Command}, cfg.Command.Args...)) {
		o.timeout = ContainerHandshakeTimeout
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := logging.For("mcp").With("server", cfg.Name)
	hctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	t := o.transport
	if t == nil {
		var err error
		switch {
		case cfg.SSE != nil:
			t, err = NewSSETransport(hctx, cfg.SSE.URL, o.httpClient)
		default:
			t, err = NewStdioTransport(*cfg.Command)
		}
		if err != nil {
			return nil, handshakeError(ctx, hctx, cfg.Name, err)
		}
	}

	session := NewSession(t, o.clientVersion)
	res, err := session.Initialize(hctx)
	if err != nil {
		_ = session.Close()
		return nil, handshakeError(ctx, hctx, cfg.Name, err)
	}
	log.Debug("connected", "server_name", res.ServerInfo.Name, "server_version", res.ServerInfo.Version,
		"protocol", res.ProtocolVersion)

	c := &Client{namespace: cfg.Name, session: session, info: res.ServerInfo, log: log}

	lctx, lcancel := context.WithTimeout(ctx, o.timeout)
	defer lcancel()
	if res.Capabilities.HasTools() {
		if c.tools, err = session.ListTools(lctx); err != nil {
			log.Warn("failed to list tools", "error", err)
			c.tools = nil
		}
	}
	if res.Capabilities.HasResources() {
		if c.resources, err = session.ListResources(lctx); err != nil {
			log.Warn("failed to list resources", "error", err)
			c.resources = nil
		}
		if c.templates, err = session.ListResourceTemplates(lctx); err != nil {
			log.Warn("failed to list resource templates", "error", err)
			c.templates = nil
		}
	}
	log.Info("server ready", "tools", len(c.tools), "resources", len(c.resources))
	return c, nil
}

// handshakeError はハンドシェイク期限切れを ErrConnectTimeout に置き換える
func handshakeError(parent, hctx context.Context, name string, err error) error {
	if errors.Is(hctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("mcp: %s: %w", name, ErrConnectTimeout)
	}
	return fmt.Errorf("mcp: %s: %w", name, err)
}

// Namespace はサーバーの名前空間（設定上の名前）を返す
func (c *Client) Namespace() string { return c.namespace }

// ServerInfo は initialize で受け取ったサーバー情報を返す
func (c *Client) ServerInfo() ServerInfo { return c.info }

// Tools は接続時に取得したツール一覧を返す
func (c *Client) Tools() []Tool { return slices.Clone(c.tools) }

// Resources は接続時に取得したリソース一覧を返す
func (c *Client) Resources() []Resource { return slices.Clone(c.resources) }

// ResourceTemplates は接続時に取得したリソーステンプレート一覧を返す
func (c *Client) ResourceTemplates() []ResourceTemplate { return slices.Clone(c.templates) }

// CallTool はツールを呼び出し、コンテンツ列を返す。
// isError の結果は *ToolError、通信の失敗は *CallError になる。
func (c *Client) CallTool(ctx context.Context, name string, args any) ([]Content, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !slices.ContainsFunc(c.tools, func(t Tool) bool { return t.Name == name }) {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	debug := c.log.Enabled(ctx, slog.LevelDebug)
	if debug {
		c.log.Debug(fmt.Sprintf("MCP REQUEST to '%s'", c.namespace), "tool", name, "arguments", renderArgs(args))
	}

	res, err := c.session.CallTool(ctx, name, args)
	if err != nil {
		return nil, &CallError{Tool: name, Err: err}
	}

	if debug {
		c.log.Debug(fmt.Sprintf("MCP RESPONSE from '%s'", c.namespace), "tool", name, "is_error", res.IsError,
			"content", renderContents(res.Content))
	}

	if res.IsError {
		return nil, &ToolError{Tool: name, Detail: joinText(res.Content)}
	}
	return res.Content, nil
}

// Close はセッションを閉じる
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.session.Close()
}

func joinText(contents []Content) string {
	var parts []string
	for _, ct := range contents {
		if ct.Type == "text" && ct.Text != "" {
			parts = append(parts, ct.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// renderArgs は引数をシェル値として整形する
func renderArgs(args any) string {
	if args == nil {
		return "{}"
	}
	return value.Format(bridge.FromAny(args), debugRenderWidth)
}

// renderContents はコンテンツ列を JSON 経由でシェル値にして整形する
func renderContents(contents []Content) string {
	data, err := json.Marshal(contents)
	if err != nil {
		return err.Error()
	}
	v, err := bridge.FromJSON(data)
	if err != nil {
		return string(data)
	}
	return value.Format(v, debugRenderWidth)
}
