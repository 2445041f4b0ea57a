package server

import (
	"encoding/json"
	"fmt"

	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

// The audit log doubles as the server's only resource: clients can read back
// recent tool-call history without a dedicated tool.
const auditResourceURI = "audit://recent"

// recentWindow bounds how much history a resource read returns.
const recentWindow = 50

type listResourcesResult struct {
	Resources []resource `json:"resources"`
}

type resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

type readResourceParams struct {
	URI string `json:"uri"`
}

type readResourceResult struct {
	Contents []mcp.ContentBlock `json:"contents"`
}

func (s *Server) handleListResources(req *mcp.Request) *mcp.Response {
	var res []resource
	if s.calls != nil {
		res = append(res, resource{
			URI:         auditResourceURI,
			Name:        "recent_tool_calls",
			Description: fmt.Sprintf("The last %d tool calls handled by this gateway", recentWindow),
			MimeType:    "application/json",
		})
	}

	resp, err := mcp.NewResponse(req.ID, listResourcesResult{Resources: res})
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handleReadResource(req *mcp.Request) *mcp.Response {
	var params readResourceParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "Invalid params: "+err.Error())
	}
	if params.URI != auditResourceURI {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, fmt.Sprintf("Unsupported resource URI: %s", params.URI))
	}
	if s.calls == nil {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "No audit log configured")
	}

	entries, err := s.calls.Recent(s.ctx, recentWindow)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}

	result := readResourceResult{Contents: []mcp.ContentBlock{{Type: "text", Text: string(b), URI: params.URI}}}
	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}
