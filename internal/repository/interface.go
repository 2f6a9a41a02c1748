package repository

import (
	"context"

	"nodebase/backend/pkg/models"
)

// WorkflowFilter is the predicate shared by ListWorkflows and
// CountWorkflows so a page and its total are computed over the same rows.
type WorkflowFilter struct {
	OwnerID string
	// Search is matched case-insensitively as a literal substring of the name.
	Search string
	Limit  int
	Offset int
}

// WorkflowStore persists workflows and their graphs. Every lookup is
// scoped by (id, ownerID); a workflow owned by someone else is reported as
// not found.
type WorkflowStore interface {
	// CreateWorkflow inserts wf and its seed node atomically. ID and
	// timestamps on wf are filled in.
	CreateWorkflow(ctx context.Context, wf *models.Workflow, seed models.Node) error
	// GetWorkflow returns workflow metadata.
	GetWorkflow(ctx context.Context, id, ownerID string) (*models.Workflow, error)
	// GetGraph returns the workflow with all of its nodes and connections.
	GetGraph(ctx context.Context, id, ownerID string) (*models.Graph, error)
	// ListWorkflows returns one page ordered by most recently updated.
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*models.Workflow, error)
	// CountWorkflows counts all rows matching filter, ignoring Limit/Offset.
	CountWorkflows(ctx context.Context, filter WorkflowFilter) (int, error)
	// RenameWorkflow sets the name and bumps updated_at.
	RenameWorkflow(ctx context.Context, id, ownerID, name string) (*models.Workflow, error)
	// DeleteWorkflow removes the workflow and, by cascade, its graph.
	DeleteWorkflow(ctx context.Context, id, ownerID string) (*models.Workflow, error)
	// ReplaceGraph swaps the whole node and connection set in one
	// transaction and returns the workflow as it was before the swap.
	ReplaceGraph(ctx context.Context, id, ownerID string, nodes []models.Node, conns []models.Connection) (*models.Workflow, error)
}

// TenantStore persists the identities that own workflows.
type TenantStore interface {
	GetTenantBySubject(ctx context.Context, subject string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	UpdateTenantTier(ctx context.Context, id string, tier models.Tier) error
}

// Repository is the full persistence surface used by the server.
type Repository interface {
	WorkflowStore
	TenantStore
	Ping(ctx context.Context) error
}
