package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"browsernerd/internal/dispatch"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// --- MockDispatcher ---

type call struct {
	name string
	args dispatch.Args
}

type mockDispatcher struct {
	mu    sync.Mutex
	calls []call
	reply map[string]dispatch.Envelope
}

func (m *mockDispatcher) Dispatch(_ context.Context, name string, args dispatch.Args) dispatch.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{name: name, args: args})
	if env, ok := m.reply[name]; ok {
		return env
	}
	return dispatch.Envelope{Text: name + " ok"}
}

func TestToolsMatchCommandTable(t *testing.T) {
	d := dispatch.New(dispatch.Options{})

	var names []string
	for _, tl := range Tools() {
		names = append(names, tl.Name)
		assert.Equal(t, "object", tl.InputSchema.Type, tl.Name)
		for _, req := range tl.InputSchema.Required {
			assert.Contains(t, tl.InputSchema.Properties, req, tl.Name)
		}
	}
	assert.ElementsMatch(t, d.Commands(), names)
}

func TestHandlerSuccess(t *testing.T) {
	md := &mockDispatcher{}
	h := Handler("click", md)

	result, err := h(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "click",
			Arguments: map[string]interface{}{"selector": "#go"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "click ok", text.Text)

	require.Len(t, md.calls, 1)
	assert.Equal(t, "#go", md.calls[0].args["selector"])
}

func TestHandlerFailureIsToolError(t *testing.T) {
	md := &mockDispatcher{reply: map[string]dispatch.Envelope{
		"navigate": {Text: "Timeout 30000ms exceeded while navigating to \"https://x\"\nScreenshot saved to: s.png", IsError: true, EvidencePath: "s.png"},
	}}

	result, err := Handler("navigate", md)(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: "navigate", Arguments: map[string]interface{}{"url": "https://x"}},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	text := result.Content[0].(mcp.TextContent)
	assert.Contains(t, text.Text, "Screenshot saved to: s.png")
}

func TestServeStdio(t *testing.T) {
	md := &mockDispatcher{reply: map[string]dispatch.Envelope{
		"close": {Text: "No browser session to close"},
	}}
	srv := NewServer("browsernerd", "test", md, zaptest.NewLogger(t))

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- srv.ServeStdio(context.Background(), inR, outW)
		outW.Close()
	}()

	lines := bufio.NewScanner(outR)
	lines.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	roundTrip := func(req string) map[string]interface{} {
		t.Helper()
		_, err := io.WriteString(inW, req+"\n")
		require.NoError(t, err)
		require.True(t, lines.Scan(), "no response to %s", req)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(lines.Bytes(), &resp))
		return resp
	}

	resp := roundTrip(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`)
	require.Contains(t, resp, "result")

	resp = roundTrip(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	result := resp["result"].(map[string]interface{})
	tools := result["tools"].([]interface{})
	assert.Len(t, tools, len(Tools()))

	resp = roundTrip(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"close","arguments":{}}}`)
	result = resp["result"].(map[string]interface{})
	content := result["content"].([]interface{})
	require.Len(t, content, 1)
	assert.Equal(t, "No browser session to close", content[0].(map[string]interface{})["text"])

	require.NoError(t, inW.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after stdin closed")
	}
}
