package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golovatskygroup/mcp-atlas/internal/audit"
	"github.com/golovatskygroup/mcp-atlas/internal/config"
	"github.com/golovatskygroup/mcp-atlas/internal/registry"
	"github.com/golovatskygroup/mcp-atlas/internal/tools"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

// Server is the stdio JSON-RPC loop in front of the Confluence and Jira tool
// handlers.
type Server struct {
	transport *mcp.Transport
	registry  *registry.Registry
	handler   *tools.Handler
	calls     *audit.Store
	ctx       context.Context
}

// New creates a gateway server from a validated configuration.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	reg := registry.New(tools.Catalog())

	var calls *audit.Store
	if cfg.AuditDB != "" {
		var err error
		calls, err = audit.Open(cfg.AuditDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	return &Server{
		transport: mcp.NewTransport(os.Stdin, os.Stdout),
		registry:  reg,
		handler:   tools.NewHandler(cfg, reg),
		calls:     calls,
		ctx:       ctx,
	}, nil
}

// Close releases the audit log, if one is open.
func (s *Server) Close() error {
	return s.calls.Close()
}

// Run starts the server main loop.
func (s *Server) Run() error {
	logf("Serving %d tools", len(s.registry.Names()))

	for {
		req, err := s.transport.ReadMessage()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if errors.Is(err, mcp.ErrParse) {
				if werr := s.transport.WriteResponse(mcp.NewErrorResponse(nil, mcp.ParseError, err.Error())); werr != nil {
					logf("Error writing response: %v", werr)
				}
				continue
			}
			logf("Error reading message: %v", err)
			continue
		}

		resp := s.handleRequest(req)
		if resp != nil {
			if err := s.transport.WriteResponse(resp); err != nil {
				logf("Error writing response: %v", err)
			}
		}
	}
}

func (s *Server) handleRequest(req *mcp.Request) *mcp.Response {
	if req.Method == "" {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidRequest, "Missing method")
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// No response needed for notifications
		return nil
	case "tools/list":
		return s.handleListTools(req)
	case "tools/call":
		return s.handleCallTool(req)
	case "resources/list":
		return s.handleListResources(req)
	case "resources/read":
		return s.handleReadResource(req)
	case "ping":
		return s.handlePing(req)
	default:
		return mcp.NewErrorResponse(req.ID, mcp.MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req *mcp.Request) *mcp.Response {
	result := mcp.InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{
				ListChanged: false,
			},
		},
		ServerInfo: mcp.ServerInfo{
			Name:    "mcp-atlas",
			Version: "1.0.0",
		},
		Instructions: s.buildInstructions(),
	}

	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handleListTools(req *mcp.Request) *mcp.Response {
	result := mcp.ListToolsResult{
		Tools: s.registry.List(),
	}

	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handleCallTool(req *mcp.Request) *mcp.Response {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "Invalid params: "+err.Error())
	}

	started := time.Now()
	result, err := s.handler.Dispatch(s.ctx, params.Name, params.Arguments)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	s.record(params, result, time.Since(started))

	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

// record writes the call to the audit log. Failures are logged to stderr and
// never affect the response.
func (s *Server) record(params mcp.CallToolParams, result *mcp.CallToolResult, took time.Duration) {
	if s.calls == nil {
		return
	}
	e := audit.Entry{
		Tool:       params.Name,
		Arguments:  string(params.Arguments),
		OK:         !result.IsError,
		DurationMS: took.Milliseconds(),
	}
	if result.IsError && len(result.Content) > 0 {
		e.Message = result.Content[0].Text
	}
	if err := s.calls.Record(s.ctx, e); err != nil {
		logf("Error recording tool call: %v", err)
	}
}

func (s *Server) handlePing(req *mcp.Request) *mcp.Response {
	resp, _ := mcp.NewResponse(req.ID, map[string]any{})
	return resp
}

func (s *Server) buildInstructions() string {
	var sb strings.Builder
	sb.WriteString("Atlassian gateway: a fixed set of Confluence and Jira tools over one authenticated account.\n\n")
	sb.WriteString("Available tools:\n")

	for _, t := range s.registry.List() {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
	}

	return sb.String()
}

func logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[mcp-atlas] "+format+"\n", args...)
}
