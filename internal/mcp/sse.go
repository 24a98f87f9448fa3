package mcp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/0x6d61/mcp-repl/internal/logging"
)

// sseEvent は SSE ストリームの1イベント
type sseEvent struct {
	name string
	data string
}

// SSETransport は MCP の SSE トランスポート。
// GET で開いたストリームの endpoint イベントで POST 先を受け取り、
// レスポンスは message イベントとして届く。
type SSETransport struct {
	client   *http.Client
	endpoint string
	incoming chan message
	cancel   context.CancelFunc
	body     io.Closer

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	log       *slog.Logger
}

// NewSSETransport はストリームに接続し、endpoint イベントを受け取るまで待つ。
// ストリーム自体は ctx の期限を超えて Close まで維持する。
func NewSSETransport(ctx context.Context, rawURL string, client *http.Client) (*SSETransport, error) {
	if client == nil {
		client = http.DefaultClient
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("mcp: invalid SSE URL %q: %w", rawURL, err)
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, base.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mcp: SSE request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mcp: SSE connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("mcp: SSE HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	t := &SSETransport{
		client:   client,
		incoming: make(chan message, 16),
		done:     make(chan struct{}),
		cancel:   cancel,
		body:     resp.Body,
		log:      logging.For("mcp").With("url", rawURL),
	}

	endpointCh := make(chan string, 1)
	go t.readLoop(resp.Body, endpointCh)

	select {
	case <-ctx.Done():
		_ = t.Close()
		return nil, ctx.Err()
	case ep, ok := <-endpointCh:
		if !ok {
			_ = t.Close()
			return nil, fmt.Errorf("mcp: SSE stream closed before endpoint event")
		}
		ref, err := url.Parse(ep)
		if err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("mcp: invalid endpoint %q: %w", ep, err)
		}
		t.endpoint = base.ResolveReference(ref).String()
		t.log.Debug("SSE endpoint received", "endpoint", t.endpoint)
	}
	return t, nil
}

// readLoop は SSE ストリームを読み込み、イベント単位に組み立てる。
// 最初の endpoint イベントを endpointCh に渡し、message イベントを incoming に流す。
func (t *SSETransport) readLoop(r io.Reader, endpointCh chan<- string) {
	defer close(t.incoming)
	endpointSent := false
	defer func() {
		if !endpointSent {
			close(endpointCh)
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	var ev sseEvent
	var data []string
	dispatch := func() bool {
		if len(data) == 0 {
			ev = sseEvent{}
			return true
		}
		ev.data = strings.Join(data, "\n")
		data = data[:0]
		defer func() { ev = sseEvent{} }()

		switch ev.name {
		case "endpoint":
			if !endpointSent {
				endpointSent = true
				endpointCh <- ev.data
			}
		case "", "message":
			select {
			case t.incoming <- message{data: []byte(ev.data)}:
			case <-t.done:
				return false
			}
		default:
			t.log.Debug("ignoring SSE event", "event", ev.name)
		}
		return true
	}

	for scanner.Scan() {
		text := scanner.Text()
		switch {
		case text == "":
			if !dispatch() {
				return
			}
		case strings.HasPrefix(text, ":"):
			// コメント（keep-alive）
		case strings.HasPrefix(text, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(text, "event:"))
		case strings.HasPrefix(text, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(text, "data:"), " "))
		}
	}
	dispatch()

	err := scanner.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	select {
	case t.incoming <- message{err: fmt.Errorf("SSE stream ended: %w", err)}:
	case <-t.done:
	}
}

// Send はメッセージを endpoint に POST する
func (t *SSETransport) Send(ctx context.Context, msg []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(msg))
	if err != nil {
		return fmt.Errorf("mcp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("mcp post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mcp HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Receive は次の message イベントのデータを返す
func (t *SSETransport) Receive(ctx context.Context) ([]byte, error) {
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

// Close はストリームを切断する
func (t *SSETransport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)
		t.cancel()
		_ = t.body.Close()
	})
	return nil
}
