package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

type jiraListBoardSprintsInput struct {
	BoardID int    `json:"board_id"`
	State   string `json:"state,omitempty"`
}

func (h *Handler) jiraListBoardSprints(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraListBoardSprintsInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if in.BoardID < 1 {
		return errorResult("board_id must be positive"), nil
	}

	q := url.Values{}
	// "all" means no state filter at the backend.
	if in.State != "" && in.State != "all" {
		q.Set("state", in.State)
	}

	status, hdr, body, err := h.jira.do(ctx, http.MethodGet, h.jira.agileBase()+"/board/"+strconv.Itoa(in.BoardID)+"/sprint", q, nil, nil)
	if err != nil {
		if errors.Is(err, errJiraHTMLOrRedirect) {
			return errorResult(fmt.Sprintf("Jira API returned HTML/redirect (likely login). status=%d location=%s\n%s", status, hdr.Get("Location"), jiraAuthHint(status, body))), nil
		}
		return errorResult(err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return errorResult(fmt.Sprintf("Jira API error (%d): %s\n%s", status, strings.TrimSpace(string(body)), jiraAuthHint(status, body))), nil
	}
	return jsonResult(mustUnmarshalAny(body)), nil
}

type jiraListSprintIssuesInput struct {
	SprintID int      `json:"sprint_id"`
	Fields   []string `json:"fields,omitempty"`
}

func (h *Handler) jiraListSprintIssues(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraListSprintIssuesInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if in.SprintID < 1 {
		return errorResult("sprint_id must be positive"), nil
	}

	total, issues, failure := h.fetchSprintIssues(ctx, in.SprintID, in.Fields)
	if failure != nil {
		return failure, nil
	}
	return jsonResult(map[string]any{"total": total, "issues": issues}), nil
}

// fetchSprintIssues pulls the issues of a sprint with the given field
// allow-list (default: sprintIssueFields) and trims each one. A non-nil
// failure is a ready-to-return tool error.
func (h *Handler) fetchSprintIssues(ctx context.Context, sprintID int, fields []string) (int, []map[string]any, *mcp.CallToolResult) {
	if len(fields) == 0 {
		fields = sprintIssueFields
	}
	q := url.Values{}
	q.Set("fields", strings.Join(fields, ","))

	status, hdr, body, err := h.jira.do(ctx, http.MethodGet, h.jira.agileBase()+"/sprint/"+strconv.Itoa(sprintID)+"/issue", q, nil, nil)
	if err != nil {
		if errors.Is(err, errJiraHTMLOrRedirect) {
			return 0, nil, errorResult(fmt.Sprintf("Jira API returned HTML/redirect (likely login). status=%d location=%s\n%s", status, hdr.Get("Location"), jiraAuthHint(status, body)))
		}
		return 0, nil, errorResult(err.Error())
	}
	if status < 200 || status >= 300 {
		return 0, nil, errorResult(fmt.Sprintf("Jira API error (%d): %s\n%s", status, strings.TrimSpace(string(body)), jiraAuthHint(status, body)))
	}

	var resp struct {
		Total  int              `json:"total"`
		Issues []map[string]any `json:"issues"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, nil, errorResult("Failed to parse Jira sprint issues response: " + err.Error())
	}
	trimmed := make([]map[string]any, 0, len(resp.Issues))
	for _, issue := range resp.Issues {
		trimmed = append(trimmed, trimSprintIssue(issue))
	}
	return resp.Total, trimmed, nil
}

type jiraGetCurrentSprintInput struct {
	BoardID       int   `json:"board_id"`
	IncludeIssues *bool `json:"include_issues,omitempty"`
}

func (h *Handler) jiraGetCurrentSprint(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraGetCurrentSprintInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if in.BoardID < 1 {
		return errorResult("board_id must be positive"), nil
	}
	includeIssues := true
	if in.IncludeIssues != nil {
		includeIssues = *in.IncludeIssues
	}

	q := url.Values{}
	q.Set("state", "active")
	status, hdr, body, err := h.jira.do(ctx, http.MethodGet, h.jira.agileBase()+"/board/"+strconv.Itoa(in.BoardID)+"/sprint", q, nil, nil)
	if err != nil {
		if errors.Is(err, errJiraHTMLOrRedirect) {
			return errorResult(fmt.Sprintf("Jira API returned HTML/redirect (likely login). status=%d location=%s\n%s", status, hdr.Get("Location"), jiraAuthHint(status, body))), nil
		}
		return errorResult(err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return errorResult(fmt.Sprintf("Jira API error (%d): %s\n%s", status, strings.TrimSpace(string(body)), jiraAuthHint(status, body))), nil
	}

	var resp struct {
		Values []map[string]any `json:"values"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return errorResult("Failed to parse Jira sprints response: " + err.Error()), nil
	}
	if len(resp.Values) == 0 {
		return jsonResult(map[string]any{
			"active_sprint": nil,
			"message":       fmt.Sprintf("no active sprint for board %d", in.BoardID),
		}), nil
	}

	sprint := resp.Values[0]
	out := map[string]any{"active_sprint": sprint}
	if includeIssues {
		id, ok := sprint["id"].(float64)
		if !ok {
			return errorResult("Jira sprint response is missing a numeric sprint id"), nil
		}
		total, issues, failure := h.fetchSprintIssues(ctx, int(id), nil)
		if failure != nil {
			return failure, nil
		}
		out["total"] = total
		out["issues"] = issues
	}
	return jsonResult(out), nil
}

type jiraListEpicIssuesInput struct {
	EpicKey string `json:"epic_key"`
}

func (h *Handler) jiraListEpicIssues(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraListEpicIssuesInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if strings.TrimSpace(in.EpicKey) == "" {
		return errorResult("epic_key is required"), nil
	}
	return h.searchIssues(ctx, fmt.Sprintf("%q = %s", "Epic Link", in.EpicKey), 100)
}

type jiraListUserIssuesInput struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	BoardID  int    `json:"board_id,omitempty"`
	Status   string `json:"status,omitempty"`
}

func (h *Handler) jiraListUserIssues(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraListUserIssuesInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if strings.TrimSpace(in.Username) == "" {
		return errorResult("username is required"), nil
	}
	role := in.Role
	if role == "" {
		role = "assignee"
	}

	var statusLabel string
	switch in.Status {
	case "", "all":
	case "open":
		statusLabel = "To Do"
	case "in_progress":
		statusLabel = h.cfg.InProgressStatus
	case "done":
		statusLabel = "Done"
	default:
		return errorResult("status must be one of: open, in_progress, done, all"), nil
	}

	return h.searchIssues(ctx, userIssuesJQL(role, in.Username, in.BoardID, statusLabel), 100)
}
