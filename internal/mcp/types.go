// Package mcp は MCP (Model Context Protocol) クライアントを提供する。
// JSON-RPC 2.0 を stdio または SSE で送受信し、
// ツール・リソースの列挙とツール呼び出しを行う。
package mcp

import "encoding/json"

// ProtocolVersion は initialize で提示するプロトコルバージョン
const ProtocolVersion = "2024-11-05"

// Tool は tools/list レスポンスにおけるツール定義
type Tool struct {
	// Name はサーバー内で一意なツール名
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// InputSchema はツール引数の JSON Schema。プロパティ順を保つため生のまま保持する。
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Resource は resources/list の1要素
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate は resources/templates/list の1要素
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Content はツール実行結果のコンテンツブロック
type Content struct {
	// Type は "text" / "image" / "audio" / "resource"
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	// Data は image / audio の base64 データ
	Data     string            `json:"data,omitempty"`
	MimeType string            `json:"mimeType,omitempty"`
	Resource *ResourceContents `json:"resource,omitempty"`
}

// ResourceContents は埋め込みリソース。Text と Blob のどちらか一方を持つ。
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// TextContent はテキストのコンテンツブロックを作る
func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// CallResult は tools/call の実行結果
type CallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// ServerInfo は initialize レスポンスの serverInfo
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities はサーバーが広告する機能。値の中身は参照しない。
type Capabilities struct {
	Tools     json.RawMessage `json:"tools,omitempty"`
	Resources json.RawMessage `json:"resources,omitempty"`
	Prompts   json.RawMessage `json:"prompts,omitempty"`
}

// HasTools は tools 機能が広告されているかを返す
func (c Capabilities) HasTools() bool { return advertised(c.Tools) }

// HasResources は resources 機能が広告されているかを返す
func (c Capabilities) HasResources() bool { return advertised(c.Resources) }

func advertised(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// InitializeResult は initialize レスポンス
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Instructions    string       `json:"instructions,omitempty"`
}

// ServerConfig は接続先 MCP サーバーの定義。SSE と Command のどちらか一方を持つ。
type ServerConfig struct {
	// Name は名前空間として使うサーバーの識別名
	Name    string
	SSE     *SSEConfig
	Command *CommandConfig
}

// SSEConfig は SSE 接続の設定
type SSEConfig struct {
	URL string
}

// CommandConfig はサブプロセス起動の設定
type CommandConfig struct {
	Command string
	Args    []string
	// Env はサーバーに渡す環境変数（${VAR} は読み込み時に展開済み）
	Env map[string]string
}
