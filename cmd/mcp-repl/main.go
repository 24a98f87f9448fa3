package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/0x6d61/mcp-repl/internal/config"
	"github.com/0x6d61/mcp-repl/internal/dispatch"
	"github.com/0x6d61/mcp-repl/internal/history"
	"github.com/0x6d61/mcp-repl/internal/logging"
	"github.com/0x6d61/mcp-repl/internal/mcp"
	"github.com/0x6d61/mcp-repl/internal/registry"
	"github.com/0x6d61/mcp-repl/internal/shell"
	"github.com/0x6d61/mcp-repl/internal/tui"
)

// logFileName は TUI 実行中のログ出力先（~/.mcp-repl 配下）
const logFileName = "mcp-repl.log"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// .env があれば読み込む（既存の環境変数は上書きしない）
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, ".env 読み込みエラー:", err)
		}
	}

	opts, err := parseArgs(args, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	if opts.showVersion {
		fmt.Printf("mcp-repl %s\n", shell.Version)
		return 0
	}

	interactive := !opts.noTUI && term.IsTerminal(int(os.Stdin.Fd()))

	// --- Logging ---
	closeLog, err := setupLogging(opts, interactive)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ログ設定エラー:", err)
		return 1
	}
	defer closeLog()
	log := logging.For("main")

	// --- Config ---
	explicit := opts.configPath
	if explicit == "" {
		explicit = os.Getenv("MCP_CONFIG")
	}
	cfg, path, err := config.Discover(explicit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "設定エラー:", err)
		return 1
	}
	if path != "" {
		log.Info("loaded config", "path", path, "servers", len(cfg.Servers))
	}
	if opts.server != nil {
		cfg.Merge(*opts.server)
	}

	// グレースフルシャットダウン
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Shell ---
	eng := shell.New()
	reg := registry.Default()
	defer func() {
		if err := reg.Close(); err != nil {
			log.Warn("failed to close servers", "error", err)
		}
	}()
	if _, err := dispatch.Install(eng, reg); err != nil {
		fmt.Fprintln(os.Stderr, "初期化エラー:", err)
		return 1
	}

	// --- MCP servers ---
	connectAll(ctx, cfg.Servers, reg, eng, log)

	// --- REPL ---
	if !interactive {
		width := 0
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = w
		}
		if err := tui.RunLines(ctx, eng, os.Stdin, os.Stdout, width); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return 1
		}
		return 0
	}

	tuiOpts := []tui.Option{
		tui.WithContext(ctx),
		tui.WithStatus(func() tui.Status {
			return tui.Status{Servers: len(reg.Servers()), Tools: len(reg.Tools())}
		}),
		tui.WithBanner(banner(len(reg.Servers()), len(reg.Tools()))),
	}
	if p, err := history.DefaultPath(); err == nil {
		if h, err := history.Open(p); err == nil {
			tuiOpts = append(tuiOpts, tui.WithHistory(h))
		} else {
			log.Warn("failed to load history", "path", p, "error", err)
		}
	}

	if err := tui.Run(ctx, tui.New(eng, tuiOpts...)); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "TUI エラー:", err)
		return 1
	}
	return 0
}

// connectAll は各サーバーに接続してレジストリに登録する。失敗したサーバーは警告を出して飛ばす。
func connectAll(ctx context.Context, servers []mcp.ServerConfig, reg *registry.Registry, eng *shell.Engine, log *slog.Logger) {
	for _, sc := range servers {
		client, err := mcp.Connect(ctx, sc, mcp.WithClientVersion(shell.Version))
		if err != nil {
			log.Warn("failed to connect", "server", sc.Name, "error", err)
			continue
		}
		if err := reg.Register(sc.Name, client, eng); err != nil {
			log.Warn("failed to register", "server", sc.Name, "error", err)
			_ = client.Close()
		}
	}
}

// setupLogging はロガーを構成する。TUI が端末を使う間はファイルへ出力する。
func setupLogging(opts *options, interactive bool) (func(), error) {
	var (
		out     io.Writer = os.Stderr
		closeFn           = func() {}
	)

	path := opts.logFile
	if path == "" && interactive {
		dir, err := history.Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, logFileName)
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}

	_, err := logging.Setup(logging.Options{
		Filter:  os.Getenv("MCP_LOG"),
		Verbose: opts.verbose || envTruthy(os.Getenv("MCP_VERBOSE")),
		Output:  out,
	})
	if err != nil {
		// 不正なフィルタは既定値で続行する
		logging.For("main").Warn("invalid MCP_LOG", "error", err)
	}
	return closeFn, nil
}

// envTruthy は空・"0"・"false" 以外を真とみなす
func envTruthy(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "0" && !strings.EqualFold(v, "false")
}

func banner(servers, tools int) string {
	if servers == 0 {
		return "No MCP servers connected. Type `help` to get started."
	}
	return fmt.Sprintf("Connected to %d server(s) with %d tool(s). Type `help` to get started.", servers, tools)
}
