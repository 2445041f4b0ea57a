package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golovatskygroup/mcp-atlas/internal/config"
	"github.com/golovatskygroup/mcp-atlas/internal/registry"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

// newTestHandler points both backends at the same fake server; the paths
// (/rest/api vs /rest/api/2 vs /rest/agile/1.0) keep them apart.
func newTestHandler(baseURL string) *Handler {
	cfg := &config.Config{
		ConfluenceBaseURL: baseURL,
		JiraBaseURL:       baseURL,
		Email:             "bot@example.com",
		APIToken:          "secret",
		InProgressStatus:  "In Progress",
	}
	return NewHandler(cfg, registry.New(Catalog()))
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("result has no content: %+v", res)
	}
	return res.Content[0].Text
}

func TestDispatchUnknownToolSkipsBackend(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	h := newTestHandler(srv.URL)
	res, err := h.Dispatch(context.Background(), "jira_serch_issues", json.RawMessage(`{"jql":"project = X"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || !res.IsError {
		t.Fatalf("expected error result, got: %+v", res)
	}
	text := resultText(t, res)
	if !strings.Contains(text, "Unknown tool: jira_serch_issues") {
		t.Fatalf("unexpected message: %q", text)
	}
	if !strings.Contains(text, `"jira_search_issues"`) {
		t.Fatalf("expected a suggestion in: %q", text)
	}
	if calls != 0 {
		t.Fatalf("backend called %d times for an unknown tool", calls)
	}
}

func TestDispatchMissingArgumentSkipsBackend(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	h := newTestHandler(srv.URL)
	res, err := h.Dispatch(context.Background(), "jira_search_issues", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || !res.IsError {
		t.Fatalf("expected error result, got: %+v", res)
	}
	if text := resultText(t, res); !strings.Contains(text, "missing required argument: jql") {
		t.Fatalf("unexpected message: %q", text)
	}
	if calls != 0 {
		t.Fatalf("backend called %d times despite missing argument", calls)
	}
}

func TestDispatchBlankRequiredStringIsMissing(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	t.Cleanup(srv.Close)

	h := newTestHandler(srv.URL)
	res, err := h.Dispatch(context.Background(), "confluence_search", json.RawMessage(`{"cql":"   "}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || !res.IsError {
		t.Fatalf("expected error result, got: %+v", res)
	}
	if text := resultText(t, res); !strings.Contains(text, "missing required argument: cql") {
		t.Fatalf("unexpected message: %q", text)
	}
	if calls != 0 {
		t.Fatalf("backend called %d times for blank required argument", calls)
	}
}

func TestDispatchCoercesStringScalars(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	t.Cleanup(srv.Close)

	h := newTestHandler(srv.URL)
	res, err := h.Dispatch(context.Background(), "confluence_search", json.RawMessage(`{"cql":"type=page","limit":"5"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.IsError {
		t.Fatalf("expected success, got: %+v", res)
	}
	if gotLimit != "5" {
		t.Fatalf("expected coerced limit 5, backend saw %q", gotLimit)
	}
}

func TestDispatchAppliesDeclaredDefaults(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	t.Cleanup(srv.Close)

	h := newTestHandler(srv.URL)
	res, err := h.Dispatch(context.Background(), "confluence_search", json.RawMessage(`{"cql":"type=page"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.IsError {
		t.Fatalf("expected success, got: %+v", res)
	}
	if gotLimit != "10" {
		t.Fatalf("expected default limit 10, backend saw %q", gotLimit)
	}
}

func TestDispatchRejectsUndeclaredArguments(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	t.Cleanup(srv.Close)

	h := newTestHandler(srv.URL)
	res, err := h.Dispatch(context.Background(), "confluence_search", json.RawMessage(`{"cql":"type=page","bogus":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || !res.IsError {
		t.Fatalf("expected error result, got: %+v", res)
	}
	if text := resultText(t, res); !strings.Contains(text, "bogus") {
		t.Fatalf("expected the undeclared argument to be named in: %q", text)
	}
	if calls != 0 {
		t.Fatalf("backend called %d times for undeclared argument", calls)
	}
}

func TestDispatchRejectsUnparsableScalar(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	t.Cleanup(srv.Close)

	h := newTestHandler(srv.URL)
	res, err := h.Dispatch(context.Background(), "jira_list_board_sprints", json.RawMessage(`{"board_id":"twelve"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || !res.IsError {
		t.Fatalf("expected error result, got: %+v", res)
	}
	if text := resultText(t, res); !strings.Contains(text, "board_id") {
		t.Fatalf("expected board_id to be named in: %q", text)
	}
	if calls != 0 {
		t.Fatalf("backend called %d times for invalid argument", calls)
	}
}
