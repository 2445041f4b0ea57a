package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golovatskygroup/mcp-atlas/internal/config"
	"github.com/golovatskygroup/mcp-atlas/internal/registry"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

// Handler executes tool calls against the configured Confluence and Jira
// backends. Both clients are built once from the injected configuration;
// nothing re-reads the environment per call.
type Handler struct {
	cfg        *config.Config
	registry   *registry.Registry
	confluence *confluenceClient
	jira       *jiraClient
}

// NewHandler creates a handler bound to the given configuration and tool registry.
func NewHandler(cfg *config.Config, reg *registry.Registry) *Handler {
	return &Handler{
		cfg:        cfg,
		registry:   reg,
		confluence: newConfluenceClient(cfg),
		jira:       newJiraClient(cfg),
	}
}

// Dispatch routes a tool call to its handler. Tool-level failures (unknown
// tool, bad arguments, backend errors) come back as an IsError result, never
// as a Go error; the error return is reserved for faults in the gateway
// itself.
func (h *Handler) Dispatch(ctx context.Context, name string, args json.RawMessage) (res *mcp.CallToolResult, err error) {
	tool, ok := h.registry.Get(name)
	if !ok {
		msg := fmt.Sprintf("Unknown tool: %s", name)
		if suggestion := h.registry.Suggest(name); suggestion != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		return errorResult(msg), nil
	}

	prepared, perr := prepareArgs(tool, args)
	if perr != nil {
		return errorResult(perr.Error()), nil
	}

	defer func() {
		if r := recover(); r != nil {
			res = errorResult(fmt.Sprintf("%s panicked: %v", name, r))
			err = nil
		}
	}()

	return h.handle(ctx, name, prepared)
}

func (h *Handler) handle(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error) {
	switch name {
	case "confluence_search":
		return h.confluenceSearch(ctx, args)
	case "confluence_get_page":
		return h.confluenceGetPage(ctx, args)
	case "confluence_create_page":
		return h.confluenceCreatePage(ctx, args)
	case "confluence_update_page":
		return h.confluenceUpdatePage(ctx, args)
	case "jira_search_issues":
		return h.jiraSearchIssues(ctx, args)
	case "jira_get_issue":
		return h.jiraGetIssue(ctx, args)
	case "jira_create_issue":
		return h.jiraCreateIssue(ctx, args)
	case "jira_update_issue":
		return h.jiraUpdateIssue(ctx, args)
	case "jira_transition_issue":
		return h.jiraTransitionIssue(ctx, args)
	case "jira_list_board_sprints":
		return h.jiraListBoardSprints(ctx, args)
	case "jira_list_sprint_issues":
		return h.jiraListSprintIssues(ctx, args)
	case "jira_get_current_sprint":
		return h.jiraGetCurrentSprint(ctx, args)
	case "jira_list_epic_issues":
		return h.jiraListEpicIssues(ctx, args)
	case "jira_list_user_issues":
		return h.jiraListUserIssues(ctx, args)
	}
	// Unreachable while the registry and this switch stay in sync.
	return errorResult(fmt.Sprintf("Unknown tool: %s", name)), nil
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func looksLikeHTML(b []byte) bool {
	s := strings.TrimSpace(strings.ToLower(string(b)))
	if s == "" {
		return false
	}
	return strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html") || (strings.Contains(s, "<html") && strings.Contains(s, "<body"))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: "Error: " + msg}}, IsError: true}
}

func jsonResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(string(b))
}

func mustUnmarshalAny(b []byte) any {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return map[string]any{"raw": string(b)}
	}
	return v
}
