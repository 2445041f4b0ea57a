package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/golovatskygroup/mcp-atlas/internal/config"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

var errJiraHTMLOrRedirect = errors.New("jira api returned html/redirect (likely login page)")

// transitionComment is appended to every transition so the change is
// attributable when reading the issue history.
const transitionComment = "Transitioned via mcp-atlas"

type jiraClient struct {
	baseURL    string
	authHeader string
	c          *http.Client
}

func newJiraClient(cfg *config.Config) *jiraClient {
	return &jiraClient{
		baseURL:    cfg.JiraBaseURL,
		authHeader: cfg.AuthHeader(),
		c:          newHTTPClient(),
	}
}

func (j *jiraClient) apiBase() string {
	return j.baseURL + "/rest/api/2"
}

func (j *jiraClient) agileBase() string {
	return j.baseURL + "/rest/agile/1.0"
}

// mutationHeaders returns the extra headers Jira wants on state-changing
// calls. Without the token header some instances reject mutations with an
// XSRF check failure.
func mutationHeaders() map[string]string {
	return map[string]string{"X-Atlassian-Token": "no-check"}
}

func (j *jiraClient) do(ctx context.Context, method string, fullURL string, query url.Values, headers map[string]string, body []byte) (int, http.Header, []byte, error) {
	u := fullURL
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("User-Agent", "mcp-atlas")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if j.authHeader != "" {
		req.Header.Set("Authorization", j.authHeader)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := j.c.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, nil, err
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return resp.StatusCode, resp.Header, b, errJiraHTMLOrRedirect
	}
	if strings.Contains(ct, "text/html") || looksLikeHTML(b) {
		return resp.StatusCode, resp.Header, b, errJiraHTMLOrRedirect
	}
	return resp.StatusCode, resp.Header, b, nil
}

func jiraAuthHint(status int, body []byte) string {
	switch status {
	case http.StatusUnauthorized:
		return "Jira API returned 401. Check ATLASSIAN_EMAIL and ATLASSIAN_TOKEN."
	case http.StatusForbidden:
		return "Jira API returned 403. Likely missing permissions for this user."
	case http.StatusNotFound:
		return "Jira API returned 404. Issue/project may not exist or your user lacks access (some Jira instances mask permission issues as 404)."
	case http.StatusTooManyRequests:
		return "Jira API returned 429 (rate limited). Respect Retry-After and retry with backoff."
	default:
		if bytes.Contains(bytes.ToLower(body), []byte("captcha")) {
			return "Jira reported CAPTCHA/authentication denial; interactive login may be required to clear it."
		}
		return ""
	}
}

// --- Tool handlers ---

type jiraSearchIssuesInput struct {
	JQL   string `json:"jql"`
	Limit int    `json:"limit,omitempty"`
}

func (h *Handler) jiraSearchIssues(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraSearchIssuesInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if strings.TrimSpace(in.JQL) == "" {
		return errorResult("jql is required"), nil
	}
	if in.Limit == 0 {
		in.Limit = 10
	}
	if in.Limit < 1 {
		return errorResult("limit must be positive"), nil
	}
	return h.searchIssues(ctx, in.JQL, in.Limit)
}

// searchIssues runs a JQL search with the standard field allow-list and trims
// each hit. Shared by the plain search tool and the epic/user listings, which
// only differ in how the JQL is built.
func (h *Handler) searchIssues(ctx context.Context, jql string, limit int) (*mcp.CallToolResult, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", strconv.Itoa(limit))
	q.Set("fields", strings.Join(issueSearchFields, ","))
	q.Set("validateQuery", "strict")

	status, hdr, body, err := h.jira.do(ctx, http.MethodGet, h.jira.apiBase()+"/search", q, nil, nil)
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
		Total  int              `json:"total"`
		Issues []map[string]any `json:"issues"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return errorResult("Failed to parse Jira search response: " + err.Error()), nil
	}
	trimmed := make([]map[string]any, 0, len(resp.Issues))
	for _, issue := range resp.Issues {
		trimmed = append(trimmed, trimIssue(issue))
	}
	return jsonResult(map[string]any{"total": resp.Total, "issues": trimmed}), nil
}

type jiraGetIssueInput struct {
	IssueKey string `json:"issue_key"`
}

func (h *Handler) jiraGetIssue(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraGetIssueInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if strings.TrimSpace(in.IssueKey) == "" {
		return errorResult("issue_key is required"), nil
	}

	status, hdr, body, err := h.jira.do(ctx, http.MethodGet, h.jira.apiBase()+"/issue/"+url.PathEscape(in.IssueKey), nil, nil, nil)
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

type jiraCreateIssueInput struct {
	ProjectKey  string `json:"project_key"`
	IssueType   string `json:"issue_type"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

func (h *Handler) jiraCreateIssue(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraCreateIssueInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if strings.TrimSpace(in.ProjectKey) == "" {
		return errorResult("project_key is required"), nil
	}
	if strings.TrimSpace(in.IssueType) == "" {
		return errorResult("issue_type is required"), nil
	}
	if strings.TrimSpace(in.Summary) == "" {
		return errorResult("summary is required"), nil
	}
	priority := strings.TrimSpace(in.Priority)
	if priority == "" {
		priority = "3"
	}

	fields := map[string]any{
		"project":   map[string]any{"key": in.ProjectKey},
		"issuetype": map[string]any{"name": in.IssueType},
		"summary":   in.Summary,
		"priority":  map[string]any{"id": priority},
	}
	if doc := adfFromText(in.Description); doc != nil {
		fields["description"] = doc
	}
	payload, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return errorResult("Failed to encode issue payload: " + err.Error()), nil
	}

	status, hdr, body, err := h.jira.do(ctx, http.MethodPost, h.jira.apiBase()+"/issue", nil, mutationHeaders(), payload)
	if err != nil {
		if errors.Is(err, errJiraHTMLOrRedirect) {
			return errorResult(fmt.Sprintf("Jira API returned HTML/redirect (likely login). status=%d location=%s\n%s", status, hdr.Get("Location"), jiraAuthHint(status, body))), nil
		}
		return errorResult(err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return errorResult(fmt.Sprintf("Jira API error (%d): %s\n%s", status, strings.TrimSpace(string(body)), jiraAuthHint(status, body))), nil
	}
	// The create response is already just {id, key, self}.
	return jsonResult(mustUnmarshalAny(body)), nil
}

type jiraUpdateIssueInput struct {
	IssueKey    string `json:"issue_key"`
	Description string `json:"description,omitempty"`
}

func (h *Handler) jiraUpdateIssue(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraUpdateIssueInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if strings.TrimSpace(in.IssueKey) == "" {
		return errorResult("issue_key is required"), nil
	}

	doc := adfFromText(in.Description)
	if doc == nil {
		return jsonResult(map[string]any{"ok": true, "updated": false, "message": "nothing to update: description is empty"}), nil
	}
	payload, err := json.Marshal(map[string]any{"fields": map[string]any{"description": doc}})
	if err != nil {
		return errorResult("Failed to encode update payload: " + err.Error()), nil
	}

	status, hdr, body, err := h.jira.do(ctx, http.MethodPut, h.jira.apiBase()+"/issue/"+url.PathEscape(in.IssueKey), nil, mutationHeaders(), payload)
	if err != nil {
		if errors.Is(err, errJiraHTMLOrRedirect) {
			return errorResult(fmt.Sprintf("Jira API returned HTML/redirect (likely login). status=%d location=%s\n%s", status, hdr.Get("Location"), jiraAuthHint(status, body))), nil
		}
		return errorResult(err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return errorResult(fmt.Sprintf("Jira API error (%d): %s\n%s", status, strings.TrimSpace(string(body)), jiraAuthHint(status, body))), nil
	}
	if status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return jsonResult(map[string]any{"ok": true, "updated": true, "status": status}), nil
	}
	return jsonResult(mustUnmarshalAny(body)), nil
}

type jiraTransitionIssueInput struct {
	IssueKey     string `json:"issue_key"`
	TransitionID string `json:"transition_id"`
}

func (h *Handler) jiraTransitionIssue(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraTransitionIssueInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if strings.TrimSpace(in.IssueKey) == "" {
		return errorResult("issue_key is required"), nil
	}
	if strings.TrimSpace(in.TransitionID) == "" {
		return errorResult("transition_id is required"), nil
	}

	transitionsURL := h.jira.apiBase() + "/issue/" + url.PathEscape(in.IssueKey) + "/transitions"
	status, hdr, body, err := h.jira.do(ctx, http.MethodGet, transitionsURL, nil, nil, nil)
	if err != nil {
		if errors.Is(err, errJiraHTMLOrRedirect) {
			return errorResult(fmt.Sprintf("Jira API returned HTML/redirect (likely login). status=%d location=%s\n%s", status, hdr.Get("Location"), jiraAuthHint(status, body))), nil
		}
		return errorResult(err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return errorResult(fmt.Sprintf("Jira API error (%d): %s\n%s", status, strings.TrimSpace(string(body)), jiraAuthHint(status, body))), nil
	}

	var tr struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return errorResult("Failed to parse Jira transitions response: " + err.Error()), nil
	}
	valid := false
	available := make([]string, 0, len(tr.Transitions))
	for _, t := range tr.Transitions {
		available = append(available, fmt.Sprintf("%s (%s)", t.ID, t.Name))
		if t.ID == in.TransitionID {
			valid = true
		}
	}
	if !valid {
		list := strings.Join(available, ", ")
		if list == "" {
			list = "(none available)"
		}
		return errorResult(fmt.Sprintf("invalid transition id %q for %s; valid transitions: %s", in.TransitionID, in.IssueKey, list)), nil
	}

	payload, err := json.Marshal(map[string]any{
		"transition": map[string]any{"id": in.TransitionID},
		"update": map[string]any{
			"comment": []any{
				map[string]any{"add": map[string]any{"body": transitionComment}},
			},
		},
	})
	if err != nil {
		return errorResult("Failed to encode transition payload: " + err.Error()), nil
	}

	status, hdr, body, err = h.jira.do(ctx, http.MethodPost, transitionsURL, nil, mutationHeaders(), payload)
	if err != nil {
		if errors.Is(err, errJiraHTMLOrRedirect) {
			return errorResult(fmt.Sprintf("Jira API returned HTML/redirect (likely login). status=%d location=%s\n%s", status, hdr.Get("Location"), jiraAuthHint(status, body))), nil
		}
		return errorResult(err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return errorResult(fmt.Sprintf("Jira API error (%d): %s\n%s", status, strings.TrimSpace(string(body)), jiraAuthHint(status, body))), nil
	}
	if status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return jsonResult(map[string]any{"ok": true, "status": status}), nil
	}
	return jsonResult(mustUnmarshalAny(body)), nil
}
