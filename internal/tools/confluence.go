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

var errConfluenceHTMLOrRedirect = errors.New("confluence api returned html/redirect (likely login page)")

type confluenceClient struct {
	baseURL    string
	authHeader string
	c          *http.Client
}

func newConfluenceClient(cfg *config.Config) *confluenceClient {
	base := cfg.ConfluenceBaseURL
	// Cloud sites serve the REST API under /wiki; Server/DC directly under
	// the base URL.
	if cfg.ConfluenceCloud && !strings.HasSuffix(strings.ToLower(base), "/wiki") {
		base += "/wiki"
	}
	return &confluenceClient{
		baseURL:    base,
		authHeader: cfg.AuthHeader(),
		c:          newHTTPClient(),
	}
}

func (c *confluenceClient) apiBase() string {
	return c.baseURL + "/rest/api"
}

func (c *confluenceClient) do(ctx context.Context, method string, fullURL string, query url.Values, headers map[string]string, body []byte) (int, http.Header, []byte, error) {
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
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return resp.StatusCode, resp.Header, b, fmt.Errorf("confluence api returned redirect (likely login page): %w", errConfluenceHTMLOrRedirect)
	}
	if looksLikeHTML(b) {
		return resp.StatusCode, resp.Header, b, fmt.Errorf("confluence api returned html (likely login page): %w", errConfluenceHTMLOrRedirect)
	}
	return resp.StatusCode, resp.Header, b, nil
}

// --- Tool handlers ---

type confluenceSearchInput struct {
	CQL   string `json:"cql"`
	Limit int    `json:"limit,omitempty"`
}

func (h *Handler) confluenceSearch(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in confluenceSearchInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	in.CQL = strings.TrimSpace(in.CQL)
	if in.CQL == "" {
		return errorResult("cql is required"), nil
	}
	if in.Limit == 0 {
		in.Limit = 10
	}
	if in.Limit < 1 {
		return errorResult("limit must be positive"), nil
	}

	q := url.Values{}
	q.Set("cql", in.CQL)
	q.Set("limit", strconv.Itoa(in.Limit))

	status, _, body, err := h.confluence.do(ctx, http.MethodGet, h.confluence.apiBase()+"/search", q, nil, nil)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return errorResult(fmt.Sprintf("Confluence API error (%d): %s", status, strings.TrimSpace(string(body)))), nil
	}
	return jsonResult(mustUnmarshalAny(body)), nil
}

type confluenceGetPageInput struct {
	PageID    string `json:"page_id"`
	PlainText bool   `json:"plain_text,omitempty"`
}

func (h *Handler) confluenceGetPage(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in confluenceGetPageInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if strings.TrimSpace(in.PageID) == "" {
		return errorResult("page_id is required"), nil
	}

	q := url.Values{}
	q.Set("expand", "body.storage,version,space")
	status, _, body, err := h.confluence.do(ctx, http.MethodGet, h.confluence.apiBase()+"/content/"+url.PathEscape(in.PageID), q, nil, nil)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return errorResult(fmt.Sprintf("Confluence API error (%d): %s", status, strings.TrimSpace(string(body)))), nil
	}
	if !in.PlainText {
		return jsonResult(mustUnmarshalAny(body)), nil
	}

	page, _ := mustUnmarshalAny(body).(map[string]any)
	text, err := storageToText(storageBody(page))
	if err != nil {
		return errorResult("Failed to convert storage body to text: " + err.Error()), nil
	}
	return jsonResult(map[string]any{"page": page, "body_text": text}), nil
}

// storageBody digs the storage-format body out of a content response.
func storageBody(page map[string]any) string {
	body, _ := page["body"].(map[string]any)
	storage, _ := body["storage"].(map[string]any)
	value, _ := storage["value"].(string)
	return value
}

type confluenceCreatePageInput struct {
	SpaceKey string `json:"space_key"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	ParentID string `json:"parent_id,omitempty"`
}

func (h *Handler) confluenceCreatePage(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in confluenceCreatePageInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if strings.TrimSpace(in.SpaceKey) == "" {
		return errorResult("space_key is required"), nil
	}
	if strings.TrimSpace(in.Title) == "" {
		return errorResult("title is required"), nil
	}
	if strings.TrimSpace(in.Body) == "" {
		return errorResult("body is required"), nil
	}

	page := map[string]any{
		"type":  "page",
		"title": in.Title,
		"space": map[string]any{"key": in.SpaceKey},
		"body": map[string]any{
			"storage": map[string]any{"value": in.Body, "representation": "storage"},
		},
	}
	if strings.TrimSpace(in.ParentID) != "" {
		page["ancestors"] = []any{map[string]any{"id": in.ParentID}}
	}
	payload, err := json.Marshal(page)
	if err != nil {
		return errorResult("Failed to encode page payload: " + err.Error()), nil
	}

	status, _, body, err := h.confluence.do(ctx, http.MethodPost, h.confluence.apiBase()+"/content", nil, mutationHeaders(), payload)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return errorResult(fmt.Sprintf("Confluence API error (%d): %s", status, strings.TrimSpace(string(body)))), nil
	}
	return jsonResult(mustUnmarshalAny(body)), nil
}

type confluenceUpdatePageInput struct {
	PageID string `json:"page_id"`
	Body   string `json:"body"`
	Title  string `json:"title,omitempty"`
}

func (h *Handler) confluenceUpdatePage(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in confluenceUpdatePageInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	if strings.TrimSpace(in.PageID) == "" {
		return errorResult("page_id is required"), nil
	}
	if strings.TrimSpace(in.Body) == "" {
		return errorResult("body is required"), nil
	}

	// Confluence rejects updates whose version is not exactly current+1, and
	// drops title/space/position when they are left out of the PUT. Read the
	// current page first and resupply everything the caller did not change.
	q := url.Values{}
	q.Set("expand", "version,space,ancestors")
	status, _, body, err := h.confluence.do(ctx, http.MethodGet, h.confluence.apiBase()+"/content/"+url.PathEscape(in.PageID), q, nil, nil)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return errorResult(fmt.Sprintf("Confluence API error (%d): %s", status, strings.TrimSpace(string(body)))), nil
	}
	current, ok := mustUnmarshalAny(body).(map[string]any)
	if !ok {
		return errorResult("Unexpected Confluence content response shape"), nil
	}

	currentVersion := 0
	if ver, ok := current["version"].(map[string]any); ok {
		if n, ok := ver["number"].(float64); ok {
			currentVersion = int(n)
		}
	}
	if currentVersion < 1 {
		return errorResult("Confluence content response is missing a version number"), nil
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title, _ = current["title"].(string)
	}

	page := map[string]any{
		"id":    in.PageID,
		"type":  "page",
		"title": title,
		"body": map[string]any{
			"storage": map[string]any{"value": in.Body, "representation": "storage"},
		},
		"version": map[string]any{"number": currentVersion + 1},
	}
	if space, ok := current["space"].(map[string]any); ok {
		if key, ok := space["key"].(string); ok && key != "" {
			page["space"] = map[string]any{"key": key}
		}
	}
	if ancestors := ancestorRefs(current); len(ancestors) > 0 {
		page["ancestors"] = ancestors
	}
	payload, err := json.Marshal(page)
	if err != nil {
		return errorResult("Failed to encode page payload: " + err.Error()), nil
	}

	status, _, body, err = h.confluence.do(ctx, http.MethodPut, h.confluence.apiBase()+"/content/"+url.PathEscape(in.PageID), nil, mutationHeaders(), payload)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return errorResult(fmt.Sprintf("Confluence API error (%d): %s", status, strings.TrimSpace(string(body)))), nil
	}
	return jsonResult(mustUnmarshalAny(body)), nil
}

// ancestorRefs reduces a content response's ancestors to bare id references,
// the shape the update endpoint accepts.
func ancestorRefs(current map[string]any) []any {
	raw, _ := current["ancestors"].([]any)
	refs := make([]any, 0, len(raw))
	for _, a := range raw {
		anc, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := anc["id"].(string); ok && id != "" {
			refs = append(refs, map[string]any{"id": id})
		}
	}
	return refs
}
