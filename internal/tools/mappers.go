package tools

import (
	"fmt"
	"strings"
)

// issueSearchFields is the field allow-list JQL searches request from the
// backend. It matches what trimIssue keeps.
var issueSearchFields = []string{"summary", "description", "status", "issuetype", "priority", "assignee", "updated"}

// sprintIssueFields is the default allow-list for sprint issue fetches.
var sprintIssueFields = []string{"summary", "status", "assignee", "priority", "issuetype"}

// adfFromText wraps plain text in the single-paragraph rich-text document
// Jira expects for long-text fields. Empty input yields nil so callers can
// leave the field out entirely instead of writing an empty document.
func adfFromText(text string) map[string]any {
	if text == "" {
		return nil
	}
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": text},
				},
			},
		},
	}
}

// trimIssue reduces a Jira issue to the fields callers actually read. Nested
// objects collapse to their display name; fields the backend did not return
// stay absent rather than null. Feeding an already-trimmed issue back in
// returns it unchanged.
func trimIssue(raw map[string]any) map[string]any {
	out := map[string]any{}
	if key, ok := raw["key"].(string); ok && key != "" {
		out["key"] = key
	}
	fields, _ := raw["fields"].(map[string]any)
	if fields == nil {
		fields = raw
	}
	if v, ok := fields["summary"].(string); ok && v != "" {
		out["summary"] = v
	}
	if v := flattenRichText(fields["description"]); v != "" {
		out["description"] = v
	}
	if v := pickName(fields, "status"); v != "" {
		out["status"] = v
	}
	if v := pickName(fields, "issuetype", "type"); v != "" {
		out["type"] = v
	}
	if v := pickName(fields, "priority"); v != "" {
		out["priority"] = v
	}
	if v := pickName(fields, "assignee"); v != "" {
		out["assignee"] = v
	}
	if v, ok := fields["updated"].(string); ok && v != "" {
		out["updated"] = v
	}
	return out
}

// trimSprintIssue is the sprint-scoped variant of trimIssue: the same
// collapsing rules over the smaller sprint field set.
func trimSprintIssue(raw map[string]any) map[string]any {
	out := map[string]any{}
	if key, ok := raw["key"].(string); ok && key != "" {
		out["key"] = key
	}
	fields, _ := raw["fields"].(map[string]any)
	if fields == nil {
		fields = raw
	}
	if v, ok := fields["summary"].(string); ok && v != "" {
		out["summary"] = v
	}
	if v := pickName(fields, "status"); v != "" {
		out["status"] = v
	}
	if v := pickName(fields, "assignee"); v != "" {
		out["assignee"] = v
	}
	if v := pickName(fields, "priority"); v != "" {
		out["priority"] = v
	}
	if v := pickName(fields, "issuetype", "type"); v != "" {
		out["type"] = v
	}
	return out
}

// pickName resolves the first of the given keys to a display string: plain
// strings pass through, objects collapse to their name or displayName.
func pickName(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if name, ok := v["name"].(string); ok && name != "" {
				return name
			}
			if name, ok := v["displayName"].(string); ok && name != "" {
				return name
			}
		}
	}
	return ""
}

// flattenRichText converts a description value to plain text. Plain strings
// pass through; rich-text documents collapse to their text runs, with
// paragraph-level nodes separated by newlines.
func flattenRichText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		var parts []string
		content, _ := t["content"].([]any)
		for _, node := range content {
			if s := flattenRichTextNode(node); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func flattenRichTextNode(v any) string {
	node, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if text, ok := node["text"].(string); ok {
		return text
	}
	var b strings.Builder
	content, _ := node["content"].([]any)
	for _, child := range content {
		b.WriteString(flattenRichTextNode(child))
	}
	return b.String()
}

// userIssuesJQL builds the JQL for user-scoped issue listings. The clause
// order is fixed: user match, then board, then status.
func userIssuesJQL(role, username string, boardID int, statusLabel string) string {
	escaped := strings.ReplaceAll(username, `'`, `\'`)
	clauses := []string{fmt.Sprintf("%s = '%s'", role, escaped)}
	if boardID > 0 {
		clauses = append(clauses, fmt.Sprintf("board = %d", boardID))
	}
	if statusLabel != "" {
		clauses = append(clauses, fmt.Sprintf("status = '%s'", statusLabel))
	}
	return strings.Join(clauses, " AND ")
}
