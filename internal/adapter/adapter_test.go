package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x6d61/mcp-repl/internal/mcp"
	"github.com/0x6d61/mcp-repl/internal/shell"
	"github.com/0x6d61/mcp-repl/internal/value"
)

type fakeCaller struct {
	calls    []string
	args     []string
	contents []mcp.Content
	err      error
}

func (f *fakeCaller) CallTool(_ context.Context, name string, args any) ([]mcp.Content, error) {
	f.calls = append(f.calls, name)
	data, _ := json.Marshal(args)
	f.args = append(f.args, string(data))
	if f.err != nil {
		return nil, f.err
	}
	return f.contents, nil
}

var (
	readTool = mcp.Tool{
		Name:        "read",
		Description: "Read a file",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
	}
	copyTool = mcp.Tool{
		Name: "copy",
		InputSchema: json.RawMessage(`{"type":"object","properties":{
			"src":{"type":"string"},"dst":{"type":"string"},"overwrite":{"type":"boolean"}
		},"required":["src","dst"]}`),
	}
)

func newEngine(t *testing.T, caller Caller, live LivenessFunc, tools ...mcp.Tool) *shell.Engine {
	t.Helper()
	eng := shell.New()
	for _, tool := range tools {
		cmd, err := New(tool, "fs", caller, live)
		require.NoError(t, err)
		require.NoError(t, eng.Register(cmd))
	}
	return eng
}

func TestNew_NameAndDescription(t *testing.T) {
	cmd, err := New(readTool, "fs", &fakeCaller{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "tool fs.read", cmd.Signature().Name)
	assert.Equal(t, "Read a file", cmd.Signature().Description)
	assert.Equal(t, "fs.read", cmd.Qualified())
	assert.Equal(t, "fs", cmd.Namespace())

	cmd, err = New(copyTool, "fs", &fakeCaller{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "MCP tool: copy", cmd.Signature().Description)
}

func TestNew_InvalidSchema(t *testing.T) {
	_, err := New(mcp.Tool{Name: "bad", InputSchema: json.RawMessage(`{`)}, "fs", &fakeCaller{}, nil)
	require.Error(t, err)
}

func TestRun_SingleRequiredString(t *testing.T) {
	caller := &fakeCaller{contents: []mcp.Content{mcp.TextContent("127.0.0.1 localhost")}}
	eng := newEngine(t, caller, nil, readTool)

	got, err := eng.Evaluate(context.Background(), "tool fs.read /etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, value.String("127.0.0.1 localhost"), got)
	assert.Equal(t, []string{"read"}, caller.calls)
	assert.Equal(t, []string{`{"path":"/etc/hosts"}`}, caller.args)
}

func TestRun_PositionalsAndSwitch(t *testing.T) {
	caller := &fakeCaller{contents: []mcp.Content{mcp.TextContent("ok")}}
	eng := newEngine(t, caller, nil, copyTool)

	_, err := eng.Evaluate(context.Background(), "tool fs.copy a b --overwrite")
	require.NoError(t, err)
	assert.Equal(t, []string{`{"src":"a","dst":"b","overwrite":true}`}, caller.args)
}

func TestRun_MissingRequiredParameter(t *testing.T) {
	caller := &fakeCaller{}
	eng := newEngine(t, caller, nil, copyTool)

	_, err := eng.Evaluate(context.Background(), "tool fs.copy a")
	var se *shell.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Failed to parse tool parameters", se.Msg)
	assert.Equal(t, "missing required parameter `dst`", se.Label)
	assert.Empty(t, caller.calls)
}

func TestRun_ToolReportedError(t *testing.T) {
	caller := &fakeCaller{err: &mcp.CallError{Tool: "read", Err: &mcp.ToolError{Tool: "read", Detail: "no such file"}}}
	eng := newEngine(t, caller, nil, readTool)

	_, err := eng.Evaluate(context.Background(), "tool fs.read /missing")
	var se *shell.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Tool execution failed", se.Msg)
	assert.Equal(t, "no such file", se.Label)
	assert.Equal(t, shell.Span{Start: 0, End: 12}, se.Span)
}

func TestRun_CallFailed(t *testing.T) {
	caller := &fakeCaller{err: &mcp.CallError{Tool: "read", Err: mcp.ErrClosed}}
	eng := newEngine(t, caller, nil, readTool)

	_, err := eng.Evaluate(context.Background(), "tool fs.read /x")
	var se *shell.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Failed to call MCP tool", se.Msg)
	assert.Equal(t, mcp.ErrClosed.Error(), se.Label)
	assert.True(t, errors.Is(err, mcp.ErrClosed))
}

func TestRun_NoLongerRegistered(t *testing.T) {
	caller := &fakeCaller{}
	eng := newEngine(t, caller, func(string) bool { return false }, readTool)

	_, err := eng.Evaluate(context.Background(), "tool fs.read /x")
	var se *shell.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "MCP tool `fs.read` is no longer registered", se.Msg)
	assert.Empty(t, caller.calls)
}

func TestRun_ShapeMismatchNamesParameter(t *testing.T) {
	tool := mcp.Tool{
		Name:        "head",
		InputSchema: json.RawMessage(`{"properties":{"lines":{"type":"integer"}},"required":["lines"]}`),
	}
	eng := newEngine(t, &fakeCaller{}, nil, tool)

	_, err := eng.Evaluate(context.Background(), "tool fs.head many")
	var se *shell.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Type mismatch", se.Msg)
	assert.Contains(t, se.Label, "`lines`")
	assert.Contains(t, se.Label, "int")
}

func TestReduce(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte("0123456789"))
	tests := []struct {
		name     string
		contents []mcp.Content
		want     value.Value
	}{
		{"empty", nil, value.Nothing{}},
		{"single text", []mcp.Content{mcp.TextContent("hi")}, value.String("hi")},
		{
			"text and image",
			[]mcp.Content{mcp.TextContent("a"), {Type: "image", Data: png, MimeType: "image/png"}},
			value.List{value.String("a"), value.String("[Image: 10 bytes, type: image/png]")},
		},
		{
			"text resource",
			[]mcp.Content{{Type: "resource", Resource: &mcp.ResourceContents{URI: "file:///a", Text: "body"}}},
			value.String("body"),
		},
		{
			"blob resource",
			[]mcp.Content{{Type: "resource", Resource: &mcp.ResourceContents{URI: "file:///a", Blob: "AAAA"}}},
			value.String("[Resource: Non-text resource]"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reduce(tt.contents))
		})
	}
}
