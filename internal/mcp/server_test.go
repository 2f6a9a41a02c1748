package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nodebase/backend/internal/apperror"
	"nodebase/backend/internal/auth"
	"nodebase/backend/internal/services"
	"nodebase/backend/pkg/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, caller auth.Identity) (*models.Workflow, error) {
	args := m.Called(ctx, caller)
	return workflowOrNil(args.Get(0)), args.Error(1)
}

func (m *MockService) Remove(ctx context.Context, caller auth.Identity, id string) (*models.Workflow, error) {
	args := m.Called(ctx, caller, id)
	return workflowOrNil(args.Get(0)), args.Error(1)
}

func (m *MockService) Rename(ctx context.Context, caller auth.Identity, id, name string) (*models.Workflow, error) {
	args := m.Called(ctx, caller, id, name)
	return workflowOrNil(args.Get(0)), args.Error(1)
}

func (m *MockService) GetOne(ctx context.Context, caller auth.Identity, id string) (*models.Graph, error) {
	args := m.Called(ctx, caller, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Graph), args.Error(1)
}

func (m *MockService) GetMany(ctx context.Context, caller auth.Identity, q services.ListQuery) (*models.Page[*models.Workflow], error) {
	args := m.Called(ctx, caller, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Page[*models.Workflow]), args.Error(1)
}

func (m *MockService) ReplaceGraph(ctx context.Context, caller auth.Identity, id string, in services.ReplaceGraphInput) (*models.Workflow, error) {
	args := m.Called(ctx, caller, id, in)
	return workflowOrNil(args.Get(0)), args.Error(1)
}

func workflowOrNil(v any) *models.Workflow {
	if v == nil {
		return nil
	}
	return v.(*models.Workflow)
}

var tenant = auth.Identity{CallerID: "tenant-a", Tier: models.TierPremium, Authenticated: true}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content type %T", res.Content[0])
	return ""
}

func identityCtx() context.Context {
	return auth.WithIdentity(context.Background(), tenant)
}

func TestHandleCreate(t *testing.T) {
	svc := new(MockService)
	svc.On("Create", mock.Anything, tenant).Return(&models.Workflow{ID: "wf-1", Name: "brave-quiet-otter"}, nil)
	s := NewServer(svc, "test")

	res, err := s.handleCreate(identityCtx(), callRequest("create_workflow", nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var wf models.Workflow
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &wf))
	assert.Equal(t, "brave-quiet-otter", wf.Name)
}

func TestHandleCreate_ForbiddenIsToolError(t *testing.T) {
	svc := new(MockService)
	svc.On("Create", mock.Anything, mock.Anything).Return(nil, apperror.ErrForbidden.WithMessage("creating workflows requires a premium subscription"))
	s := NewServer(svc, "test")

	res, err := s.handleCreate(context.Background(), callRequest("create_workflow", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "forbidden: creating workflows requires a premium subscription", text(t, res))
}

func TestHandleList(t *testing.T) {
	svc := new(MockService)
	svc.On("GetMany", mock.Anything, tenant, services.ListQuery{Page: 2, PageSize: 10, Search: "sync"}).
		Return(models.NewPage([]*models.Workflow{}, 2, 10, 0), nil)
	s := NewServer(svc, "test")

	res, err := s.handleList(identityCtx(), callRequest("list_workflows", map[string]any{
		"page": float64(2), "pageSize": float64(10), "search": "sync",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), `"items":[]`)
	svc.AssertExpectations(t)
}

func TestHandleGet_MissingID(t *testing.T) {
	s := NewServer(new(MockService), "test")

	res, err := s.handleGet(identityCtx(), callRequest("get_workflow", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleGet_NotFound(t *testing.T) {
	svc := new(MockService)
	svc.On("GetOne", mock.Anything, tenant, "wf-x").Return(nil, apperror.ErrNotFound)
	s := NewServer(svc, "test")

	res, err := s.handleGet(identityCtx(), callRequest("get_workflow", map[string]any{"id": "wf-x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "not_found: workflow not found", text(t, res))
}

func TestHandleRenameAndRemove(t *testing.T) {
	svc := new(MockService)
	svc.On("Rename", mock.Anything, tenant, "wf-1", "Renamed").Return(&models.Workflow{ID: "wf-1", Name: "Renamed"}, nil)
	svc.On("Remove", mock.Anything, tenant, "wf-1").Return(&models.Workflow{ID: "wf-1"}, nil)
	s := NewServer(svc, "test")

	res, err := s.handleRename(identityCtx(), callRequest("rename_workflow", map[string]any{"id": "wf-1", "name": "Renamed"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleRemove(identityCtx(), callRequest("remove_workflow", map[string]any{"id": "wf-1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	svc.AssertExpectations(t)
}

func TestHandleReplaceGraph_BindsPayload(t *testing.T) {
	svc := new(MockService)
	svc.On("ReplaceGraph", mock.Anything, tenant, "wf-1", mock.MatchedBy(func(in services.ReplaceGraphInput) bool {
		return len(in.Nodes) == 2 && in.Nodes[1].Type == models.NodeTypeHTTPRequest &&
			in.Nodes[1].Position != nil && in.Nodes[1].Position.Y == 40 &&
			len(in.Edges) == 1 && in.Edges[0].Target == "b"
	})).Return(&models.Workflow{ID: "wf-1"}, nil)
	s := NewServer(svc, "test")

	res, err := s.handleReplaceGraph(identityCtx(), callRequest("replace_workflow_graph", map[string]any{
		"id": "wf-1",
		"nodes": []any{
			map[string]any{"id": "a", "type": "MANUAL_TRIGGER", "position": map[string]any{"x": 0, "y": 0}},
			map[string]any{"id": "b", "type": "HTTP_REQUEST", "position": map[string]any{"x": 20, "y": 40}},
		},
		"edges": []any{map[string]any{"source": "a", "target": "b"}},
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError, text(t, res))
	svc.AssertExpectations(t)
}

func TestHandleReplaceGraph_ConflictIsToolError(t *testing.T) {
	svc := new(MockService)
	svc.On("ReplaceGraph", mock.Anything, tenant, "wf-1", mock.Anything).Return(nil, apperror.Conflict("edges[0]: target node \"z\" is not part of the graph"))
	s := NewServer(svc, "test")

	res, err := s.handleReplaceGraph(identityCtx(), callRequest("replace_workflow_graph", map[string]any{
		"id":    "wf-1",
		"nodes": []any{},
		"edges": []any{map[string]any{"source": "a", "target": "z"}},
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "conflict: ")
}

func TestToolsAreRegistered(t *testing.T) {
	s := NewServer(new(MockService), "test")

	msg := s.GetMCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	for _, name := range []string{
		"create_workflow", "list_workflows", "get_workflow",
		"rename_workflow", "remove_workflow", "replace_workflow_graph",
	} {
		assert.Contains(t, string(raw), `"`+name+`"`)
	}
	assert.NotNil(t, s.Handler())
}
