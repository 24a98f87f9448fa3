package mcp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/0x6d61/mcp-repl/internal/logging"
)

// Transport は JSON-RPC メッセージを1件ずつ送受信する
type Transport interface {
	// Send は1件のメッセージを送る
	Send(ctx context.Context, msg []byte) error
	// Receive は次のメッセージを待つ
	Receive(ctx context.Context) ([]byte, error)
	// Close はトランスポートを閉じる
	Close() error
}

const (
	// maxMessageSize は stdio で受け付ける1行の最大長
	maxMessageSize = 64 << 20
	// exitGracePeriod は stdin を閉じてからプロセスを強制終了するまでの猶予
	exitGracePeriod = 5 * time.Second
)

type message struct {
	data []byte
	err  error
}

// StdioTransport はサブプロセスの stdin / stdout で改行区切りの JSON をやり取りする
type StdioTransport struct {
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	incoming chan message
	cmd      *exec.Cmd // サブプロセスモード時のみ非 nil
	// detach が true の場合、Close でプロセスを終了させずに切り離す（コンテナ対話モード）
	detach bool

	closed atomic.Bool
	done   chan struct{}
	log    *slog.Logger
}

// IsContainerInteractive は argv がコンテナランタイムの対話モード起動かを判定する
func IsContainerInteractive(argv []string) bool {
	if len(argv) == 0 || !strings.Contains(filepath.Base(argv[0]), "docker") {
		return false
	}
	return slices.ContainsFunc(argv[1:], func(a string) bool {
		return a == "-i" || a == "--interactive"
	})
}

// containerArgv は環境変数を "-e KEY=VALUE" としてサブコマンドの直後に差し込む。キーはソート順。
func containerArgv(argv []string, env map[string]string) []string {
	if len(env) == 0 || len(argv) == 0 {
		return argv
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	flags := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		flags = append(flags, "-e", k+"="+env[k])
	}

	at := min(2, len(argv))
	out := make([]string, 0, len(argv)+len(flags))
	out = append(out, argv[:at]...)
	out = append(out, flags...)
	return append(out, argv[at:]...)
}

// childEnv はホスト環境に設定の環境変数を追加した "KEY=VALUE" 列を返す
func childEnv(env map[string]string) []string {
	out := os.Environ()
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// NewStdioTransport は MCP サーバーをサブプロセスとして起動する
func NewStdioTransport(cfg CommandConfig) (*StdioTransport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("mcp: empty command")
	}
	argv := append([]string{cfg.Command}, cfg.Args...)
	container := IsContainerInteractive(argv)

	log := logging.For("mcp").With("command", cfg.Command)

	var cmd *exec.Cmd
	if container {
		argv = containerArgv(argv, cfg.Env)
		cmd = exec.Command(argv[0], argv[1:]...) // nosemgrep: go.lang.security.audit.dangerous-exec-command.dangerous-exec-command -- argv は利用者の設定ファイルまたは CLI 引数から来る
		cmd.Stderr = os.Stderr
	} else {
		cmd = exec.Command(argv[0], argv[1:]...) // nosemgrep: go.lang.security.audit.dangerous-exec-command.dangerous-exec-command -- 同上
		cmd.Env = childEnv(cfg.Env)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("mcp: failed to create stdout pipe: %w", err)
	}
	var stderr io.ReadCloser
	if !container {
		if stderr, err = cmd.StderrPipe(); err != nil {
			_ = stdin.Close()
			return nil, fmt.Errorf("mcp: failed to create stderr pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("mcp: failed to start server %s: %w", cfg.Command, err)
	}
	log.Debug("server process started", "pid", cmd.Process.Pid, "container", container)

	if stderr != nil {
		go drainStderr(stderr, log)
	}

	t := newStdioTransport(stdin, stdout, log)
	t.cmd = cmd
	t.detach = container
	return t, nil
}

// newStdioTransport はパイプからトランスポートを組み立てる。テストでは io.Pipe を渡す。
func newStdioTransport(stdin io.WriteCloser, stdout io.ReadCloser, log *slog.Logger) *StdioTransport {
	if log == nil {
		log = logging.For("mcp")
	}
	t := &StdioTransport{
		stdin:    stdin,
		stdout:   stdout,
		incoming: make(chan message, 16),
		done:     make(chan struct{}),
		log:      log,
	}
	go t.readLoop()
	return t
}

// readLoop は stdout を1行ずつ読み、JSON オブジェクトの行だけを incoming に流す
func (t *StdioTransport) readLoop() {
	defer close(t.incoming)

	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		// 非 JSON 行（MCP サーバーのバナー出力等）をスキップ
		if len(line) == 0 || line[0] != '{' {
			if len(line) > 0 {
				t.log.Debug("skipping non-JSON line", "line", string(line))
			}
			continue
		}
		select {
		case t.incoming <- message{data: slices.Clone(line)}:
		case <-t.done:
			return
		}
	}
	err := scanner.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	select {
	case t.incoming <- message{err: err}:
	case <-t.done:
	}
}

func drainStderr(r io.Reader, log *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Debug("server stderr", "line", scanner.Text())
	}
}

// Send は1行の JSON を stdin に書き込む
func (t *StdioTransport) Send(_ context.Context, msg []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	data := make([]byte, 0, len(msg)+1)
	data = append(append(data, msg...), '\n')
	if _, err := t.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Receive は次の JSON 行を返す
func (t *StdioTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m, ok := <-t.incoming:
		if !ok {
			return nil, ErrClosed
		}
		return m.data, m.err
	}
}

// Close は stdin を閉じてサーバーに EOF を通知し、プロセスの終了を待つ
func (t *StdioTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	close(t.done)
	_ = t.stdin.Close()

	if t.cmd == nil {
		return t.stdout.Close()
	}
	if t.detach {
		// コンテナは stdin の EOF で自ら終了する
		t.log.Debug("detaching container process", "pid", t.cmd.Process.Pid)
		return t.cmd.Process.Release()
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- t.cmd.Wait()
	}()
	select {
	case <-waitDone:
	case <-time.After(exitGracePeriod):
		t.log.Warn("server did not exit, killing", "pid", t.cmd.Process.Pid)
		_ = t.cmd.Process.Kill()
		<-waitDone
	}
	return nil
}
