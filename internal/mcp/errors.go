package mcp

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed はクローズ済みのクライアントやトランスポートを使ったときに返る
	ErrClosed = errors.New("mcp: client is closed")
	// ErrToolNotFound はキャッシュに無いツール名を呼び出したときに返る
	ErrToolNotFound = errors.New("mcp: tool not found")
	// ErrConnectTimeout はハンドシェイクが期限内に終わらなかったときに返る
	ErrConnectTimeout = errors.New("connection timed out")
)

// RPCError は JSON-RPC のエラー応答
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// CallError はトランスポートまたはプロトコルの失敗で tools/call が完了しなかったことを示す
type CallError struct {
	Tool string
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("mcp: call to %q failed: %v", e.Tool, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// ToolError はツールが isError: true を返したことを示す
type ToolError struct {
	Tool string
	// Detail はエラー結果のテキストコンテンツを連結したもの
	Detail string
}

func (e *ToolError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("tool %q reported an error", e.Tool)
	}
	return e.Detail
}
