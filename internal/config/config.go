// Package config は MCP サーバーの接続設定を読み込む
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/0x6d61/mcp-repl/internal/mcp"
)

// LocalFile はカレントディレクトリで探す設定ファイル名
const LocalFile = "mcp-repl.toml"

// SystemFile はシステム全体の設定ファイル
const SystemFile = "/etc/mcp-repl/config.toml"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Config は設定ファイル全体。Servers はファイル中の記述順。
type Config struct {
	Servers []mcp.ServerConfig
}

// Format は設定ファイルの形式
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	default:
		return "toml"
	}
}

// FormatOf は拡張子から形式を判定する。不明な拡張子は TOML とみなす。
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json", ".jsonc":
		return FormatJSON
	default:
		return FormatTOML
	}
}

// Candidates は設定ファイルの探索順を返す。explicit が空でなければ先頭に置く。
func Candidates(explicit string) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, explicit)
	}
	paths = append(paths, LocalFile)
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "mcp-repl", "config.toml"))
	}
	return append(paths, SystemFile)
}

// Locate は候補のうち最初に存在するファイルを返す
func Locate(explicit string) (string, bool) {
	for _, p := range Candidates(explicit) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Discover は探索順で最初に見つかった設定を読む。どこにも無ければ空の設定と空のパスを返す。
func Discover(explicit string) (*Config, string, error) {
	path, ok := Locate(explicit)
	if !ok {
		return &Config{}, "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Load は設定ファイルを読み込む。
// ファイルが存在しない場合は空の Config を返す。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	cfg, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse は設定を解析する。${VAR} は url と env の値で展開される。
func Parse(data []byte, format Format) (*Config, error) {
	var (
		entries []entry
		err     error
	)
	switch format {
	case FormatYAML:
		entries, err = parseYAML(data)
	case FormatJSON:
		entries, err = parseJSON(data)
	default:
		entries, err = parseTOML(data)
	}
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	for _, e := range entries {
		sc, err := e.server.resolve(e.name)
		if err != nil {
			return nil, err
		}
		cfg.Servers = append(cfg.Servers, sc)
	}
	return cfg, nil
}

// Merge は s を設定に加える。同名のサーバーはその位置で置き換え、新しい名前は末尾に追加する。
func (c *Config) Merge(s mcp.ServerConfig) {
	i := slices.IndexFunc(c.Servers, func(x mcp.ServerConfig) bool { return x.Name == s.Name })
	if i >= 0 {
		c.Servers[i] = s
		return
	}
	c.Servers = append(c.Servers, s)
}

// entry はファイル中の1サーバー
type entry struct {
	name   string
	server rawServer
}

// rawServer はタグ付き形式（sse = {url} / command = {command, args, env}）と
// タグ無し形式（url / command = "<cmdline>", env）の両方を受ける
type rawServer struct {
	SSE     *rawSSE           `toml:"sse" yaml:"sse" json:"sse"`
	URL     string            `toml:"url" yaml:"url" json:"url"`
	Command any               `toml:"command" yaml:"command" json:"command"`
	Args    []string          `toml:"args" yaml:"args" json:"args"`
	Env     map[string]string `toml:"env" yaml:"env" json:"env"`
}

type rawSSE struct {
	URL string `toml:"url" yaml:"url" json:"url"`
}

func (r rawServer) resolve(name string) (mcp.ServerConfig, error) {
	sc := mcp.ServerConfig{Name: name}
	hasSSE := r.SSE != nil || r.URL != ""
	if hasSSE && r.Command != nil {
		return sc, fmt.Errorf("config: server %q: sse and command are mutually exclusive", name)
	}

	switch {
	case r.SSE != nil:
		sc.SSE = &mcp.SSEConfig{URL: expandEnvString(r.SSE.URL)}
	case r.URL != "":
		sc.SSE = &mcp.SSEConfig{URL: expandEnvString(r.URL)}
	case r.Command != nil:
		cc, err := commandConfig(name, r.Command)
		if err != nil {
			return sc, err
		}
		cc.Args = append(cc.Args, r.Args...)
		if len(r.Env) > 0 {
			if cc.Env == nil {
				cc.Env = make(map[string]string, len(r.Env))
			}
			for k, v := range r.Env {
				cc.Env[k] = v
			}
		}
		expandEnvVars(cc.Env)
		sc.Command = cc
	default:
		return sc, fmt.Errorf("config: server %q: must define sse or command", name)
	}
	if sc.SSE != nil && sc.SSE.URL == "" {
		return sc, fmt.Errorf("config: server %q: sse url is empty", name)
	}
	return sc, nil
}

// commandConfig は command フィールドを解釈する。文字列ならシェルの単語分割規則で分ける。
func commandConfig(name string, v any) (*mcp.CommandConfig, error) {
	switch c := v.(type) {
	case string:
		argv, err := SplitCommand(c)
		if err != nil {
			return nil, fmt.Errorf("config: server %q: %w", name, err)
		}
		return &mcp.CommandConfig{Command: argv[0], Args: argv[1:]}, nil
	case map[string]any:
		cc := &mcp.CommandConfig{}
		cmd, ok := c["command"].(string)
		if !ok || cmd == "" {
			return nil, fmt.Errorf("config: server %q: command.command must be a non-empty string", name)
		}
		cc.Command = cmd
		if args, ok := c["args"]; ok {
			list, ok := args.([]any)
			if !ok {
				return nil, fmt.Errorf("config: server %q: command.args must be a list", name)
			}
			for _, a := range list {
				cc.Args = append(cc.Args, fmt.Sprint(a))
			}
		}
		if env, ok := c["env"]; ok {
			m, ok := env.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("config: server %q: command.env must be a table", name)
			}
			cc.Env = make(map[string]string, len(m))
			for k, v := range m {
				cc.Env[k] = fmt.Sprint(v)
			}
		}
		return cc, nil
	default:
		return nil, fmt.Errorf("config: server %q: unsupported command value %T", name, v)
	}
}

// SplitCommand はコマンドライン文字列をシェルの単語分割規則で argv にする
func SplitCommand(line string) ([]string, error) {
	argv, err := shellwords.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("invalid command line %q: %w", line, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command line")
	}
	return argv, nil
}

// ParseEnvPair は KEY:VALUE を最初の ':' で分け、両側の空白を除く
func ParseEnvPair(s string) (string, string, error) {
	key, val, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", fmt.Errorf("Invalid key-value pair: '%s'. Expected format: 'KEY:VALUE'", s)
	}
	return strings.TrimSpace(key), strings.TrimSpace(val), nil
}

// expandEnvVars は map 内の値に含まれる ${VAR} をホスト環境変数で展開する
func expandEnvVars(env map[string]string) {
	for k, v := range env {
		env[k] = expandEnvString(v)
	}
}

// expandEnvString は文字列内の ${VAR} をホスト環境変数で展開する
func expandEnvString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}
