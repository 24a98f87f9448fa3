package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newSSEServer は legacy SSE 方式の MCP サーバーを立てる。
// GET /sse で endpoint イベントを送り、POST /message の応答を message イベントで返す。
func newSSEServer(t *testing.T, handler handlerFunc) *httptest.Server {
	t.Helper()
	events := make(chan string, 16)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sse", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": keep-alive\n\nevent: endpoint\ndata: /message?sessionId=abc\n\n")
		flusher.Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-events:
				fmt.Fprintf(w, "event: message\ndata: %s\n\n", ev)
				flusher.Flush()
			}
		}
	})
	mux.HandleFunc("POST /message", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sessionId") != "abc" {
			http.Error(w, "unknown session", http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID     *int64          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		if req.ID == nil {
			return
		}
		result, rpcErr := handler(req.Method, req.Params)
		msg := map[string]any{"jsonrpc": "2.0", "id": *req.ID}
		if rpcErr != nil {
			msg["error"] = rpcErr
		} else {
			msg["result"] = result
		}
		data, _ := json.Marshal(msg)
		events <- string(data)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSSE_ConnectAndCall(t *testing.T) {
	srv := newSSEServer(t, fsServer)

	client, err := Connect(testContext(t), ServerConfig{Name: "remote", SSE: &SSEConfig{URL: srv.URL + "/sse"}},
		WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	defer client.Close()

	if len(client.Tools()) != 2 {
		t.Fatalf("expected 2 tools, got %+v", client.Tools())
	}
	contents, err := client.CallTool(testContext(t), "read", map[string]any{"path": "/etc/hosts"})
	if err != nil {
		t.Fatalf("CallTool returned error: %v", err)
	}
	if len(contents) != 1 || contents[0].Text != "read /etc/hosts" {
		t.Errorf("unexpected contents: %+v", contents)
	}
}

func TestSSE_EndpointResolution(t *testing.T) {
	srv := newSSEServer(t, fsServer)

	transport, err := NewSSETransport(testContext(t), srv.URL+"/sse", srv.Client())
	if err != nil {
		t.Fatalf("NewSSETransport returned error: %v", err)
	}
	defer transport.Close()

	if want := srv.URL + "/message?sessionId=abc"; transport.endpoint != want {
		t.Errorf("endpoint = %q, want %q", transport.endpoint, want)
	}
}

func TestSSE_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewSSETransport(testContext(t), srv.URL, srv.Client())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected HTTP 401 error, got %v", err)
	}
}

func TestSSE_StreamClosedBeforeEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: other\ndata: x\n\n")
	}))
	defer srv.Close()

	_, err := NewSSETransport(testContext(t), srv.URL, srv.Client())
	if err == nil || !strings.Contains(err.Error(), "before endpoint") {
		t.Fatalf("expected endpoint error, got %v", err)
	}
}
