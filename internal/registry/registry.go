// Package registry は接続済み MCP サーバーとそのツールを名前空間ごとに保持する
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/0x6d61/mcp-repl/internal/adapter"
	"github.com/0x6d61/mcp-repl/internal/logging"
	"github.com/0x6d61/mcp-repl/internal/mcp"
	"github.com/0x6d61/mcp-repl/internal/shell"
)

var (
	ErrNamespaceExists = errors.New("registry: namespace already registered")
	ErrServerNotFound  = errors.New("registry: server not found")
)

// Client はレジストリに登録できる接続済みクライアント
type Client interface {
	adapter.Caller
	ServerInfo() mcp.ServerInfo
	Tools() []mcp.Tool
	Resources() []mcp.Resource
	ResourceTemplates() []mcp.ResourceTemplate
	Close() error
}

// Host はコマンドを受け取るシェル
type Host interface {
	Register(cmd shell.Command) error
}

// Tool は名前空間付きのツール
type Tool struct {
	Server  string
	Def     mcp.Tool
	Command *adapter.Command
}

// Qualified は "<ns>.<tool>"
func (t *Tool) Qualified() string { return adapter.Qualify(t.Server, t.Def.Name) }

// Server は1つの接続済みサーバー
type Server struct {
	Name   string
	Client Client
	Tools  []*Tool
}

// Registry はサーバー表。登録順を保持する。
type Registry struct {
	mu      sync.Mutex
	servers *orderedmap.OrderedMap[string, *Server]
	log     *slog.Logger
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default はプロセス共有のレジストリを返す
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// New は空のレジストリを作る
func New() *Registry {
	return &Registry{
		servers: orderedmap.New[string, *Server](),
		log:     logging.For("registry"),
	}
}

// Register はクライアントの全ツールをコマンドにしてサーバー表に加え、host に登録する。
// host が nil ならコマンド登録は行わない。
func (r *Registry) Register(namespace string, client Client, host Host) error {
	srv := &Server{Name: namespace, Client: client}
	for _, def := range client.Tools() {
		cmd, err := adapter.New(def, namespace, client, r.alive)
		if err != nil {
			r.log.Warn("skipping tool with unusable schema", "server", namespace, "tool", def.Name, "error", err)
			continue
		}
		srv.Tools = append(srv.Tools, &Tool{Server: namespace, Def: def, Command: cmd})
	}

	r.mu.Lock()
	if _, exists := r.servers.Get(namespace); exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNamespaceExists, namespace)
	}
	r.servers.Set(namespace, srv)
	r.mu.Unlock()

	if host != nil {
		for _, t := range srv.Tools {
			if err := host.Register(t.Command); err != nil {
				r.mu.Lock()
				r.servers.Delete(namespace)
				r.mu.Unlock()
				return fmt.Errorf("registry: register %s: %w", t.Qualified(), err)
			}
		}
	}
	r.log.Info("server registered", "server", namespace, "tools", len(srv.Tools))
	return nil
}

// Servers は登録順のサーバー一覧を返す
func (r *Registry) Servers() []*Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Server, 0, r.servers.Len())
	for pair := r.servers.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Server は名前空間でサーバーを探す
func (r *Registry) Server(name string) (*Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	srv, ok := r.servers.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServerNotFound, name)
	}
	return srv, nil
}

// Lookup は修飾名 "<ns>.<tool>" でツールを探す
func (r *Registry) Lookup(qualified string) (*Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(qualified)
}

func (r *Registry) lookup(qualified string) (*Tool, bool) {
	for pair := r.servers.Oldest(); pair != nil; pair = pair.Next() {
		for _, t := range pair.Value.Tools {
			if t.Qualified() == qualified {
				return t, true
			}
		}
	}
	return nil, false
}

// alive はアダプタの生存確認に使う
func (r *Registry) alive(qualified string) bool {
	_, ok := r.Lookup(qualified)
	return ok
}

// Tools は全サーバーのツールを登録順に返す
func (r *Registry) Tools() []*Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Tool
	for pair := r.servers.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.Tools...)
	}
	return out
}

// Drop はサーバーを表から外して接続を閉じる。登録済みのコマンドは以後エラーを返す。
func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	srv, ok := r.servers.Delete(name)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrServerNotFound, name)
	}
	r.log.Info("server dropped", "server", name)
	return srv.Client.Close()
}

// Close は全サーバーの接続を閉じて表を空にする
func (r *Registry) Close() error {
	r.mu.Lock()
	servers := r.servers
	r.servers = orderedmap.New[string, *Server]()
	r.mu.Unlock()

	var errs []error
	for pair := servers.Oldest(); pair != nil; pair = pair.Next() {
		if err := pair.Value.Client.Close(); err != nil {
			r.log.Warn("failed to close server", "server", pair.Key, "error", err)
			errs = append(errs, fmt.Errorf("registry: close %q: %w", pair.Key, err))
		}
	}
	return errors.Join(errs...)
}
