package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golovatskygroup/mcp-atlas/internal/audit"
	"github.com/golovatskygroup/mcp-atlas/internal/config"
	"github.com/golovatskygroup/mcp-atlas/internal/registry"
	"github.com/golovatskygroup/mcp-atlas/internal/tools"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

// newTestServer wires a server around an in-memory transport. The backend
// base URLs point nowhere: every test below fails before a request would
// leave the process.
func newTestServer(t *testing.T, in io.Reader, out io.Writer, auditPath string) *Server {
	t.Helper()
	if in == nil {
		in = strings.NewReader("")
	}
	if out == nil {
		out = io.Discard
	}

	cfg := &config.Config{
		ConfluenceBaseURL: "http://127.0.0.1:0",
		JiraBaseURL:       "http://127.0.0.1:0",
		Email:             "bot@example.com",
		APIToken:          "secret",
		InProgressStatus:  "In Progress",
	}
	reg := registry.New(tools.Catalog())
	s := &Server{
		transport: mcp.NewTransport(in, out),
		registry:  reg,
		handler:   tools.NewHandler(cfg, reg),
		ctx:       context.Background(),
	}
	if auditPath != "" {
		calls, err := audit.Open(auditPath)
		if err != nil {
			t.Fatalf("open audit log: %v", err)
		}
		t.Cleanup(func() { _ = calls.Close() })
		s.calls = calls
	}
	return s
}

func decodeInto(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestHandleInitialize(t *testing.T) {
	s := newTestServer(t, nil, nil, "")

	resp := s.handleRequest(&mcp.Request{JSONRPC: "2.0", ID: 1, Method: "initialize"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var result mcp.InitializeResult
	decodeInto(t, resp.Result, &result)
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("unexpected protocol version: %s", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "mcp-atlas" {
		t.Errorf("unexpected server name: %s", result.ServerInfo.Name)
	}
	for _, name := range []string{"confluence_search", "jira_transition_issue", "jira_get_current_sprint"} {
		if !strings.Contains(result.Instructions, name) {
			t.Errorf("instructions missing %s", name)
		}
	}
}

func TestHandleListTools(t *testing.T) {
	s := newTestServer(t, nil, nil, "")

	resp := s.handleRequest(&mcp.Request{JSONRPC: "2.0", ID: 2, Method: "tools/list"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var result mcp.ListToolsResult
	decodeInto(t, resp.Result, &result)
	if len(result.Tools) != 14 {
		t.Fatalf("expected 14 tools, got %d", len(result.Tools))
	}
	if result.Tools[0].Name != "confluence_search" {
		t.Errorf("unexpected first tool: %s", result.Tools[0].Name)
	}
	for _, tool := range result.Tools {
		if len(tool.InputSchema) == 0 {
			t.Errorf("tool %s has no input schema", tool.Name)
		}
	}
}

func TestNotificationGetsNoResponse(t *testing.T) {
	s := newTestServer(t, nil, nil, "")
	if resp := s.handleRequest(&mcp.Request{JSONRPC: "2.0", Method: "notifications/initialized"}); resp != nil {
		t.Fatalf("expected no response, got %+v", resp)
	}
}

func TestHandlePing(t *testing.T) {
	s := newTestServer(t, nil, nil, "")

	resp := s.handleRequest(&mcp.Request{JSONRPC: "2.0", ID: 3, Method: "ping"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if string(resp.Result) != "{}" {
		t.Errorf("unexpected ping result: %s", resp.Result)
	}
}

func TestUnknownMethod(t *testing.T) {
	s := newTestServer(t, nil, nil, "")

	resp := s.handleRequest(&mcp.Request{JSONRPC: "2.0", ID: 4, Method: "tools/destroy"})
	if resp == nil || resp.Error == nil {
		t.Fatalf("expected an error response, got %+v", resp)
	}
	if resp.Error.Code != mcp.MethodNotFound {
		t.Errorf("unexpected code: %d", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Message, "tools/destroy") {
		t.Errorf("message should name the method: %s", resp.Error.Message)
	}
}

func TestMissingMethod(t *testing.T) {
	s := newTestServer(t, nil, nil, "")

	resp := s.handleRequest(&mcp.Request{JSONRPC: "2.0", ID: 5})
	if resp == nil || resp.Error == nil {
		t.Fatalf("expected an error response, got %+v", resp)
	}
	if resp.Error.Code != mcp.InvalidRequest {
		t.Errorf("unexpected code: %d", resp.Error.Code)
	}
}

func TestCallToolFailuresStayInBand(t *testing.T) {
	s := newTestServer(t, nil, nil, "")

	params, _ := json.Marshal(mcp.CallToolParams{Name: "no_such_tool"})
	resp := s.handleRequest(&mcp.Request{JSONRPC: "2.0", ID: 6, Method: "tools/call", Params: params})
	if resp == nil || resp.Error != nil {
		t.Fatalf("tool failures must not become protocol errors: %+v", resp)
	}

	var result mcp.CallToolResult
	decodeInto(t, resp.Result, &result)
	if !result.IsError {
		t.Fatal("expected IsError")
	}
	if !strings.Contains(result.Content[0].Text, "Unknown tool: no_such_tool") {
		t.Errorf("unexpected message: %s", result.Content[0].Text)
	}
}

func TestCallToolMalformedParams(t *testing.T) {
	s := newTestServer(t, nil, nil, "")

	resp := s.handleRequest(&mcp.Request{JSONRPC: "2.0", ID: 7, Method: "tools/call", Params: json.RawMessage(`{"name":5}`)})
	if resp == nil || resp.Error == nil {
		t.Fatalf("expected an error response, got %+v", resp)
	}
	if resp.Error.Code != mcp.InvalidParams {
		t.Errorf("unexpected code: %d", resp.Error.Code)
	}
}

func TestCallToolRecordsAudit(t *testing.T) {
	s := newTestServer(t, nil, nil, filepath.Join(t.TempDir(), "audit.db"))

	params, _ := json.Marshal(mcp.CallToolParams{Name: "confluence_search", Arguments: json.RawMessage(`{}`)})
	resp := s.handleRequest(&mcp.Request{JSONRPC: "2.0", ID: 8, Method: "tools/call", Params: params})
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	entries, err := s.calls.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Tool != "confluence_search" || e.OK {
		t.Errorf("unexpected entry: %+v", e)
	}
	if !strings.Contains(e.Message, "missing required argument: cql") {
		t.Errorf("unexpected message: %s", e.Message)
	}
}

func TestRunLoop(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}
this is not json

{"jsonrpc":"2.0","method":"notifications/initialized"}
`)
	var out bytes.Buffer
	s := newTestServer(t, in, &out, "")

	if err := s.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d: %q", len(lines), out.String())
	}

	var pong mcp.Response
	decodeInto(t, []byte(lines[0]), &pong)
	if pong.Error != nil || string(pong.Result) != "{}" {
		t.Errorf("unexpected ping response: %s", lines[0])
	}

	var parseErr mcp.Response
	decodeInto(t, []byte(lines[1]), &parseErr)
	if parseErr.Error == nil || parseErr.Error.Code != mcp.ParseError {
		t.Errorf("expected a parse error response: %s", lines[1])
	}
	if parseErr.ID != nil {
		t.Errorf("parse errors carry a null id, got %v", parseErr.ID)
	}
}
