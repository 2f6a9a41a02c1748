// Package mcp exposes the workflow procedures as MCP tools so agents can
// read and edit graphs over the streamable HTTP transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"nodebase/backend/internal/apperror"
	"nodebase/backend/internal/auth"
	"nodebase/backend/internal/services"
	"nodebase/backend/pkg/models"
)

// EndpointPath is where the streamable HTTP transport is mounted.
const EndpointPath = "/mcp"

// WorkflowService is the procedure surface the tools call.
type WorkflowService interface {
	Create(ctx context.Context, caller auth.Identity) (*models.Workflow, error)
	Remove(ctx context.Context, caller auth.Identity, id string) (*models.Workflow, error)
	Rename(ctx context.Context, caller auth.Identity, id, name string) (*models.Workflow, error)
	GetOne(ctx context.Context, caller auth.Identity, id string) (*models.Graph, error)
	GetMany(ctx context.Context, caller auth.Identity, q services.ListQuery) (*models.Page[*models.Workflow], error)
	ReplaceGraph(ctx context.Context, caller auth.Identity, id string, in services.ReplaceGraphInput) (*models.Workflow, error)
}

type Server struct {
	mcpServer *server.MCPServer
	workflows WorkflowService
}

func NewServer(workflows WorkflowService, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Nodebase Workflows",
			version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
		workflows: workflows,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP transport. The caller identity placed
// on the request by the auth middleware is carried into every tool call.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer,
		server.WithEndpointPath(EndpointPath),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return auth.WithIdentity(ctx, auth.FromContext(r.Context()))
		}),
	)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_workflow",
			mcp.WithDescription("Create a workflow with a generated name and a single INITIAL node. Requires a premium subscription."),
		),
		s.handleCreate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List your workflows, most recently updated first"),
			mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
			mcp.WithNumber("pageSize", mcp.Description("Items per page, clamped to [1, 100]")),
			mcp.WithString("search", mcp.Description("Case-insensitive substring of the workflow name")),
		),
		s.handleList,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_workflow",
			mcp.WithDescription("Get a workflow with its nodes and edges"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleGet,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"rename_workflow",
			mcp.WithDescription("Rename a workflow"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithString("name", mcp.Required(), mcp.Description("The new, non-empty name")),
		),
		s.handleRename,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"remove_workflow",
			mcp.WithDescription("Delete a workflow and its whole graph"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleRemove,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"replace_workflow_graph",
			mcp.WithDescription("Replace every node and edge of a workflow in one step. Returns the workflow as it was before the replacement."),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithArray("nodes", mcp.Required(),
				mcp.Description("Nodes: {id, type, position: {x, y}, data}"),
				mcp.Items(map[string]any{
					"type":     "object",
					"required": []string{"id", "position"},
					"properties": map[string]any{
						"id":       map[string]any{"type": "string"},
						"type":     map[string]any{"type": "string"},
						"position": map[string]any{"type": "object"},
						"data":     map[string]any{"type": "object"},
					},
				}),
			),
			mcp.WithArray("edges", mcp.Required(),
				mcp.Description("Edges: {source, target, sourceHandle, targetHandle}"),
				mcp.Items(map[string]any{
					"type":     "object",
					"required": []string{"source", "target"},
					"properties": map[string]any{
						"source":       map[string]any{"type": "string"},
						"target":       map[string]any{"type": "string"},
						"sourceHandle": map[string]any{"type": "string"},
						"targetHandle": map[string]any{"type": "string"},
					},
				}),
			),
		),
		s.handleReplaceGraph,
	)
}

func caller(ctx context.Context) auth.Identity {
	return auth.FromContext(ctx)
}

// result renders v as JSON text, or err as a tool error "kind: message".
func result(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		appErr := apperror.As(err)
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", appErr.Kind, appErr.Message)), nil
	}
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.workflows.Create(ctx, caller(ctx)))
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := services.ListQuery{
		Page:     request.GetInt("page", 0),
		PageSize: request.GetInt("pageSize", 0),
		Search:   request.GetString("search", ""),
	}
	return result(s.workflows.GetMany(ctx, caller(ctx), q))
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}
	return result(s.workflows.GetOne(ctx, caller(ctx), id))
}

func (s *Server) handleRename(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}
	return result(s.workflows.Rename(ctx, caller(ctx), id, name))
}

func (s *Server) handleRemove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}
	return result(s.workflows.Remove(ctx, caller(ctx), id))
}

type replaceGraphArgs struct {
	ID string `json:"id"`
	services.ReplaceGraphInput
}

func (s *Server) handleReplaceGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args replaceGraphArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}
	if args.ID == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}
	return result(s.workflows.ReplaceGraph(ctx, caller(ctx), args.ID, args.ReplaceGraphInput))
}
