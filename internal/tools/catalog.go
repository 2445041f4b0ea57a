package tools

import (
	"encoding/json"

	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

// Catalog returns the fixed tool set the gateway advertises. The order is
// stable: clients see the same list, in the same order, on every call.
func Catalog() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "confluence_search",
			Description: "Search Confluence content with a CQL query. Returns the raw result list from the backend.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"cql": {"type": "string", "description": "CQL query (e.g., 'type=page AND space=DEV AND text ~ \"retro\"')"},
					"limit": {"type": "integer", "description": "Max results (default: 10)", "default": 10}
				},
				"required": ["cql"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "confluence_get_page",
			Description: "Get a Confluence page by id, including its storage-format body, version and space. Set plain_text=true to also get the body flattened to readable text.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"page_id": {"type": "string", "description": "Numeric page id (e.g., '123456')"},
					"plain_text": {"type": "boolean", "description": "Also return the body converted from storage format to plain text", "default": false}
				},
				"required": ["page_id"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "confluence_create_page",
			Description: "Create a Confluence page in a space. The body must be Confluence storage format (XHTML). Pass parent_id to create the page under an existing one.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"space_key": {"type": "string", "description": "Space key (e.g., 'DEV')"},
					"title": {"type": "string", "description": "Page title"},
					"body": {"type": "string", "description": "Page body in storage format"},
					"parent_id": {"type": "string", "description": "Optional parent page id"}
				},
				"required": ["space_key", "title", "body"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "confluence_update_page",
			Description: "Replace the body of an existing Confluence page. The current page is fetched first; the update keeps its title, space and position unless a new title is given, and bumps the version number.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"page_id": {"type": "string", "description": "Id of the page to update"},
					"body": {"type": "string", "description": "New page body in storage format"},
					"title": {"type": "string", "description": "Optional new title (default: keep current)"}
				},
				"required": ["page_id", "body"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "jira_search_issues",
			Description: "Search Jira issues with a JQL query. Returns the total hit count and a trimmed view of each issue (key, summary, description, status, type, priority, assignee, updated).",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"jql": {"type": "string", "description": "JQL query (e.g., 'project = CORE AND status = \"In Progress\"')"},
					"limit": {"type": "integer", "description": "Max results (default: 10)", "default": 10}
				},
				"required": ["jql"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "jira_get_issue",
			Description: "Get a single Jira issue by key with all fields, untrimmed.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"issue_key": {"type": "string", "description": "Issue key (e.g., 'CORE-123')"}
				},
				"required": ["issue_key"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "jira_create_issue",
			Description: "Create a Jira issue. The description, when given, is converted to a rich-text document. Priority is a numeric priority id (default: '3', usually Medium).",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"project_key": {"type": "string", "description": "Project key (e.g., 'CORE')"},
					"issue_type": {"type": "string", "description": "Issue type name (e.g., 'Task', 'Bug', 'Story')"},
					"summary": {"type": "string", "description": "Issue summary"},
					"description": {"type": "string", "description": "Optional plain-text description"},
					"priority": {"type": "string", "description": "Optional priority id (default: '3')"}
				},
				"required": ["project_key", "issue_type", "summary"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "jira_update_issue",
			Description: "Update the description of a Jira issue. The text is converted to a rich-text document. Without a description the call is a no-op and nothing is sent to the backend.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"issue_key": {"type": "string", "description": "Issue key (e.g., 'CORE-123')"},
					"description": {"type": "string", "description": "New plain-text description"}
				},
				"required": ["issue_key"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "jira_transition_issue",
			Description: "Move a Jira issue through a workflow transition. The transition id is checked against the transitions currently available for the issue; an invalid id fails locally and lists the valid ones.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"issue_key": {"type": "string", "description": "Issue key (e.g., 'CORE-123')"},
					"transition_id": {"type": "string", "description": "Transition id (see the error message or the issue's transitions for valid ids)"}
				},
				"required": ["issue_key", "transition_id"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "jira_list_board_sprints",
			Description: "List the sprints of an agile board, optionally filtered by state (default: all states).",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"board_id": {"type": "integer", "description": "Agile board id"},
					"state": {"type": "string", "description": "Sprint state filter (default: all)", "enum": ["active", "future", "closed", "all"], "default": "all"}
				},
				"required": ["board_id"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "jira_list_sprint_issues",
			Description: "List the issues in a sprint, trimmed to a compact shape. The default field set is summary, status, assignee, priority and type; pass fields to override it.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"sprint_id": {"type": "integer", "description": "Sprint id (from jira_list_board_sprints)"},
					"fields": {"type": "array", "items": {"type": "string"}, "description": "Optional field allow-list (default: summary, status, assignee, priority, issuetype)"}
				},
				"required": ["sprint_id"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "jira_get_current_sprint",
			Description: "Get the active sprint of a board, with its issues unless include_issues=false. Boards with no active sprint return an explicit indicator instead of an error.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"board_id": {"type": "integer", "description": "Agile board id"},
					"include_issues": {"type": "boolean", "description": "Also fetch the sprint's issues (default: true)", "default": true}
				},
				"required": ["board_id"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "jira_list_epic_issues",
			Description: "List the issues linked to an epic, trimmed to the standard search shape.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"epic_key": {"type": "string", "description": "Epic issue key (e.g., 'CORE-42')"}
				},
				"required": ["epic_key"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "jira_list_user_issues",
			Description: "List the issues assigned to or reported by a user, optionally narrowed to a board and a status bucket (open, in_progress, done).",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"username": {"type": "string", "description": "Username as known to Jira"},
					"role": {"type": "string", "description": "Match as assignee or reporter (default: assignee)", "enum": ["assignee", "reporter"], "default": "assignee"},
					"board_id": {"type": "integer", "description": "Optional board id to narrow the search"},
					"status": {"type": "string", "description": "Status bucket (default: all)", "enum": ["open", "in_progress", "done", "all"], "default": "all"}
				},
				"required": ["username"],
				"additionalProperties": false
			}`),
		},
	}
}
