package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"github.com/0x6d61/mcp-repl/internal/logging"
)

// ClientName は initialize の clientInfo.name
const ClientName = "mcp-repl"

// maxPages は一覧取得でたどるページ数の上限
const maxPages = 1000

// JSON-RPC 2.0 メッセージ型

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Session は1本のトランスポート上で JSON-RPC 2.0 の要求と応答を対応付ける
type Session struct {
	t Transport

	mu      sync.Mutex // 要求と応答の対を直列化する
	nextID  atomic.Int64
	closed  atomic.Bool
	version string
	log     *slog.Logger
}

// NewSession はトランスポートからセッションを作る
func NewSession(t Transport, clientVersion string) *Session {
	if clientVersion == "" {
		clientVersion = "dev"
	}
	return &Session{t: t, version: clientVersion, log: logging.For("mcp")}
}

// Initialize は MCP プロトコルのハンドシェイクを行う。
// initialize リクエスト → レスポンス受信 → notifications/initialized 通知の順に実行する。
func (s *Session) Initialize(ctx context.Context) (*InitializeResult, error) {
	raw, err := s.request(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    ClientName,
			"version": s.version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mcp: initialize failed: %w", err)
	}

	var res InitializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("mcp: failed to parse initialize response: %w", err)
	}

	if err := s.notify(ctx, "notifications/initialized"); err != nil {
		return nil, fmt.Errorf("mcp: failed to send initialized notification: %w", err)
	}
	return &res, nil
}

// ListTools は全ページのツール一覧を取得する
func (s *Session) ListTools(ctx context.Context) ([]Tool, error) {
	return listAll[Tool](ctx, s, "tools/list", "tools")
}

// ListResources は全ページのリソース一覧を取得する
func (s *Session) ListResources(ctx context.Context) ([]Resource, error) {
	return listAll[Resource](ctx, s, "resources/list", "resources")
}

// ListResourceTemplates は全ページのリソーステンプレート一覧を取得する
func (s *Session) ListResourceTemplates(ctx context.Context) ([]ResourceTemplate, error) {
	return listAll[ResourceTemplate](ctx, s, "resources/templates/list", "resourceTemplates")
}

// listAll は nextCursor をたどって field の配列を連結する
func listAll[T any](ctx context.Context, s *Session, method, field string) ([]T, error) {
	var all []T
	cursor := ""
	for range maxPages {
		var params any
		if cursor != "" {
			params = map[string]any{"cursor": cursor}
		}
		raw, err := s.request(ctx, method, params)
		if err != nil {
			return nil, fmt.Errorf("mcp: %s failed: %w", method, err)
		}

		var page []T
		if items := gjson.GetBytes(raw, field); items.Exists() {
			if err := json.Unmarshal([]byte(items.Raw), &page); err != nil {
				return nil, fmt.Errorf("mcp: failed to parse %s response: %w", method, err)
			}
		}
		all = append(all, page...)

		next := gjson.GetBytes(raw, "nextCursor").String()
		if next == "" || next == cursor {
			return all, nil
		}
		cursor = next
	}
	return all, fmt.Errorf("mcp: %s: too many pages", method)
}

// CallTool はツールを呼び出す。args が nil の場合は空オブジェクトを送る。
func (s *Session) CallTool(ctx context.Context, name string, args any) (*CallResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := s.request(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp: tools/call failed: %w", err)
	}

	var res CallResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("mcp: failed to parse tools/call response: %w", err)
	}
	return &res, nil
}

// Close はトランスポートを閉じる
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.t.Close()
}

// request は JSON-RPC リクエストを送信し、同じ id のレスポンスを待つ
func (s *Session) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID.Add(1)
	data, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	s.log.Log(ctx, logging.LevelTrace, "send", "method", method, "id", id, "body", string(data))
	if err := s.t.Send(ctx, data); err != nil {
		return nil, err
	}

	want := strconv.FormatInt(id, 10)
	for {
		msg, err := s.t.Receive(ctx)
		if err != nil {
			return nil, err
		}
		s.log.Log(ctx, logging.LevelTrace, "receive", "body", string(msg))

		var resp jsonRPCResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if resp.Method != "" {
			s.handleServerMessage(ctx, resp)
			continue
		}
		if string(resp.ID) != want {
			s.log.Debug("skipping response with unexpected id", "id", string(resp.ID), "want", want)
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// handleServerMessage はサーバー発の通知と要求を処理する。要求には ping のみ応答する。
func (s *Session) handleServerMessage(ctx context.Context, msg jsonRPCResponse) {
	if len(msg.ID) == 0 {
		s.log.Debug("server notification", "method", msg.Method)
		return
	}
	reply := map[string]any{"jsonrpc": "2.0", "id": msg.ID}
	if msg.Method == "ping" {
		reply["result"] = map[string]any{}
	} else {
		reply["error"] = RPCError{Code: -32601, Message: "method not found: " + msg.Method}
	}
	data, err := json.Marshal(reply)
	if err == nil {
		err = s.t.Send(ctx, data)
	}
	if err != nil && !errors.Is(err, ErrClosed) {
		s.log.Warn("failed to reply to server request", "method", msg.Method, "error", err)
	}
}

// notify は JSON-RPC 通知を送信する（id なし、レスポンス不要）
func (s *Session) notify(ctx context.Context, method string) error {
	data, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": method})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return s.t.Send(ctx, data)
}
