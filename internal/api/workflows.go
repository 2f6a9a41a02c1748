// Package api contains the HTTP handlers for the workflow service
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"nodebase/backend/internal/apperror"
	"nodebase/backend/internal/auth"
	"nodebase/backend/internal/services"
	"nodebase/backend/pkg/models"
)

// WorkflowService is the procedure surface the REST handlers call.
type WorkflowService interface {
	Create(ctx context.Context, caller auth.Identity) (*models.Workflow, error)
	Remove(ctx context.Context, caller auth.Identity, id string) (*models.Workflow, error)
	Rename(ctx context.Context, caller auth.Identity, id, name string) (*models.Workflow, error)
	GetOne(ctx context.Context, caller auth.Identity, id string) (*models.Graph, error)
	GetMany(ctx context.Context, caller auth.Identity, q services.ListQuery) (*models.Page[*models.Workflow], error)
	ReplaceGraph(ctx context.Context, caller auth.Identity, id string, in services.ReplaceGraphInput) (*models.Workflow, error)
}

// RenameRequest is the body of PATCH /workflows/{id}.
type RenameRequest struct {
	Name string `json:"name"`
}

// Server implements ServerInterface on top of the workflow service.
type Server struct {
	svc WorkflowService
}

// NewServer creates a new Server.
func NewServer(svc WorkflowService) *Server {
	return &Server{svc: svc}
}

func caller(c echo.Context) (context.Context, auth.Identity) {
	ctx := c.Request().Context()
	return ctx, auth.FromContext(ctx)
}

// ListWorkflows returns one page of the caller's workflows
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context, params ListWorkflowsParams) error {
	ctx, id := caller(c)

	var q services.ListQuery
	if params.Page != nil {
		q.Page = *params.Page
	}
	if params.PageSize != nil {
		q.PageSize = *params.PageSize
	}
	if params.Search != nil {
		q.Search = *params.Search
	}

	page, err := s.svc.GetMany(ctx, id, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// CreateWorkflow creates a workflow with a generated name
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	ctx, id := caller(c)

	wf, err := s.svc.Create(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, wf)
}

// GetWorkflow returns the workflow with its nodes and edges
// (GET /api/v1/workflows/{id})
func (s *Server) GetWorkflow(c echo.Context, workflowID string) error {
	ctx, id := caller(c)

	g, err := s.svc.GetOne(ctx, id, workflowID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

// RenameWorkflow changes the workflow name
// (PATCH /api/v1/workflows/{id})
func (s *Server) RenameWorkflow(c echo.Context, workflowID string) error {
	ctx, id := caller(c)

	var req RenameRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}

	wf, err := s.svc.Rename(ctx, id, workflowID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

// DeleteWorkflow removes the workflow and its graph
// (DELETE /api/v1/workflows/{id})
func (s *Server) DeleteWorkflow(c echo.Context, workflowID string) error {
	ctx, id := caller(c)

	wf, err := s.svc.Remove(ctx, id, workflowID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

// ReplaceWorkflowGraph replaces every node and edge of the workflow. The
// response is the workflow as it was before the replacement.
// (PUT /api/v1/workflows/{id}/graph)
func (s *Server) ReplaceWorkflowGraph(c echo.Context, workflowID string) error {
	ctx, id := caller(c)

	var in services.ReplaceGraphInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body")
	}

	wf, err := s.svc.ReplaceGraph(ctx, id, workflowID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}
