package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/0x6d61/mcp-repl/internal/config"
	"github.com/0x6d61/mcp-repl/internal/mcp"
)

// options はコマンドライン引数の解析結果
type options struct {
	verbose     bool
	configPath  string
	logFile     string
	showVersion bool
	noTUI       bool
	// server はサブコマンドで指定された接続先。設定ファイルより優先する。
	server *mcp.ServerConfig
}

// parseArgs はフラグとサブコマンド（sse / command）を解析する。
// サブコマンド以降はフラグとして解釈しない（サーバーの argv に -y などが含まれるため）。
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := pflag.NewFlagSet("mcp-repl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "詳細ログを有効にする（MCP の通信内容を含む）")
	fs.StringVarP(&o.configPath, "config", "c", "", "設定ファイルのパス（.toml / .yaml / .json）")
	fs.StringVar(&o.logFile, "log-file", "", "ログの出力先ファイル")
	fs.BoolVar(&o.showVersion, "version", false, "バージョンを表示して終了する")
	fs.BoolVar(&o.noTUI, "no-tui", false, "TUI を使わず標準入力から1行ずつ評価する")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return o, nil
	}

	switch rest[0] {
	case "sse":
		if len(rest) != 3 {
			return nil, errors.New("usage: mcp-repl sse <name> <url>")
		}
		o.server = &mcp.ServerConfig{Name: rest[1], SSE: &mcp.SSEConfig{URL: rest[2]}}

	case "command":
		if len(rest) < 3 {
			return nil, errors.New("usage: mcp-repl command <name> <argv...> [--env KEY:VALUE ...]")
		}
		cmd, err := parseCommand(rest[2:])
		if err != nil {
			return nil, err
		}
		o.server = &mcp.ServerConfig{Name: rest[1], Command: cmd}

	default:
		return nil, fmt.Errorf("unknown subcommand %q (expected sse or command)", rest[0])
	}
	return o, nil
}

// parseCommand は argv と --env を分離する。argv が1要素で空白を含む場合はシェル規則で分割する。
func parseCommand(args []string) (*mcp.CommandConfig, error) {
	argv, pairs, err := splitEnvFlags(args)
	if err != nil {
		return nil, err
	}
	if len(argv) == 1 && strings.ContainsAny(argv[0], " \t") {
		if argv, err = config.SplitCommand(argv[0]); err != nil {
			return nil, err
		}
	}
	if len(argv) == 0 {
		return nil, errors.New("command: missing server command")
	}

	cmd := &mcp.CommandConfig{Command: argv[0], Args: argv[1:]}
	for _, p := range pairs {
		k, v, err := config.ParseEnvPair(p)
		if err != nil {
			return nil, err
		}
		if cmd.Env == nil {
			cmd.Env = make(map[string]string)
		}
		cmd.Env[k] = v
	}
	return cmd, nil
}

// splitEnvFlags は --env KEY:VALUE / --env=KEY:VALUE を取り出し、残りを argv として返す。
// "--" 以降はすべて argv として扱う。
func splitEnvFlags(args []string) (argv, pairs []string, err error) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			argv = append(argv, args[i+1:]...)
			return argv, pairs, nil
		case a == "--env":
			if i+1 >= len(args) {
				return nil, nil, errors.New("flag needs an argument: --env")
			}
			i++
			pairs = append(pairs, args[i])
		case strings.HasPrefix(a, "--env="):
			pairs = append(pairs, strings.TrimPrefix(a, "--env="))
		default:
			argv = append(argv, a)
		}
	}
	return argv, pairs, nil
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `⚡ mcp-repl — a shell for MCP servers

Usage:
  mcp-repl [flags]
  mcp-repl [flags] sse <name> <url>
  mcp-repl [flags] command <name> <argv...> [--env KEY:VALUE ...]

Flags:
`)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Environment:
  MCP_CONFIG   設定ファイルのパス（--config と同じ）
  MCP_VERBOSE  空でも 0 / false でもなければ --verbose と同じ
  MCP_LOG      ログフィルタ (例: warn, info,mcp=debug)

Examples:
  mcp-repl                                             # 設定ファイルのサーバーに接続
  mcp-repl sse remote http://localhost:8080/sse        # SSE サーバーを追加
  mcp-repl command fs npx -y @modelcontextprotocol/server-filesystem /tmp
  mcp-repl command gh ./gh-mcp --env GITHUB_TOKEN:${GITHUB_TOKEN}
`)
}
