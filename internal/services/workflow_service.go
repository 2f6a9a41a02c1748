package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"nodebase/backend/internal/apperror"
	"nodebase/backend/internal/auth"
	"nodebase/backend/internal/config"
	"nodebase/backend/internal/observability"
	"nodebase/backend/internal/policy"
	"nodebase/backend/internal/repository"
	"nodebase/backend/internal/slug"
	"nodebase/backend/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// WorkflowService is the workflow procedure surface: every operation checks
// the caller, then talks to the store.
type WorkflowService struct {
	store      repository.WorkflowStore
	slugs      slug.Generator
	pagination config.Pagination
	metrics    *observability.Metrics
	logger     Logger
	newID      func() string
}

// NewWorkflowService creates a new WorkflowService. metrics may be nil.
func NewWorkflowService(
	store repository.WorkflowStore,
	slugs slug.Generator,
	pagination config.Pagination,
	metrics *observability.Metrics,
	logger Logger,
) *WorkflowService {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &WorkflowService{
		store:      store,
		slugs:      slugs,
		pagination: pagination,
		metrics:    metrics,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

func (s *WorkflowService) start(ctx context.Context, op string, caller auth.Identity) (context.Context, trace.Span, time.Time) {
	ctx, span := observability.Tracer().Start(ctx, "WorkflowService."+op,
		trace.WithAttributes(attribute.String("caller.id", caller.CallerID)),
	)
	return ctx, span, time.Now()
}

// finish classifies err, records the outcome and ends the span. Storage
// causes are logged here and never leave the service.
func (s *WorkflowService) finish(ctx context.Context, span trace.Span, op string, started time.Time, err error) error {
	defer span.End()
	if err == nil {
		s.metrics.Record(ctx, op, started, nil)
		return nil
	}

	appErr := apperror.As(err)
	s.metrics.Record(ctx, op, started, appErr)
	span.SetAttributes(attribute.String("error.kind", string(appErr.Kind)))
	if appErr.Kind == apperror.KindStore {
		span.RecordError(err)
		span.SetStatus(codes.Error, appErr.Message)
		s.logger.Error("workflow operation failed", "operation", op, "error", err)
	} else {
		s.logger.Debug("workflow operation rejected", "operation", op, "kind", appErr.Kind, "reason", appErr.Message)
	}
	return appErr
}

// Create makes a new workflow with a generated name and a single INITIAL
// node at the origin. Only premium callers may create.
func (s *WorkflowService) Create(ctx context.Context, caller auth.Identity) (wf *models.Workflow, err error) {
	ctx, span, started := s.start(ctx, "create", caller)
	defer func() { err = s.finish(ctx, span, "create", started, err) }()

	if err := policy.RequirePremium(caller); err != nil {
		return nil, err
	}

	wf = &models.Workflow{
		ID:      s.newID(),
		OwnerID: caller.CallerID,
		Name:    s.slugs.Generate(),
	}
	seed := models.Node{
		ID:         s.newID(),
		WorkflowID: wf.ID,
		Type:       models.NodeTypeInitial,
		Name:       string(models.NodeTypeInitial),
		Position:   models.Position{X: 0, Y: 0},
		Data:       models.NodeData{},
	}
	if err := s.store.CreateWorkflow(ctx, wf, seed); err != nil {
		return nil, err
	}

	s.logger.Info("workflow created", "workflow_id", wf.ID, "owner_id", wf.OwnerID, "name", wf.Name)
	return wf, nil
}

// Remove deletes a workflow and its graph, returning the deleted row.
func (s *WorkflowService) Remove(ctx context.Context, caller auth.Identity, id string) (wf *models.Workflow, err error) {
	ctx, span, started := s.start(ctx, "remove", caller)
	defer func() { err = s.finish(ctx, span, "remove", started, err) }()

	if err := policy.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	wf, err = s.store.DeleteWorkflow(ctx, id, caller.CallerID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("workflow removed", "workflow_id", wf.ID, "owner_id", wf.OwnerID)
	return wf, nil
}

// Rename sets a new, non-blank name.
func (s *WorkflowService) Rename(ctx context.Context, caller auth.Identity, id, name string) (wf *models.Workflow, err error) {
	ctx, span, started := s.start(ctx, "rename", caller)
	defer func() { err = s.finish(ctx, span, "rename", started, err) }()

	if err := policy.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("name must not be empty")
	}
	if len(name) > MaxNameLength {
		return nil, apperror.Validation("name must be at most %d characters", MaxNameLength)
	}
	return s.store.RenameWorkflow(ctx, id, caller.CallerID, name)
}

// GetOne returns the workflow with its graph in editor shape.
func (s *WorkflowService) GetOne(ctx context.Context, caller auth.Identity, id string) (g *models.Graph, err error) {
	ctx, span, started := s.start(ctx, "getOne", caller)
	defer func() { err = s.finish(ctx, span, "getOne", started, err) }()

	if err := policy.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	return s.store.GetGraph(ctx, id, caller.CallerID)
}

// GetMany returns one page of the caller's workflows, most recently updated
// first. The page and the total are computed concurrently over one filter.
func (s *WorkflowService) GetMany(ctx context.Context, caller auth.Identity, q ListQuery) (page *models.Page[*models.Workflow], err error) {
	ctx, span, started := s.start(ctx, "getMany", caller)
	defer func() { err = s.finish(ctx, span, "getMany", started, err) }()

	if err := policy.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	if q.Page < 0 {
		return nil, apperror.Validation("page must be >= 1, got %d", q.Page)
	}
	pageNum := q.Page
	if pageNum == 0 {
		pageNum = s.pagination.DefaultPage
	}
	pageSize := s.clampPageSize(q.PageSize)
	if pageNum-1 > math.MaxInt/pageSize {
		return nil, apperror.Validation("page %d is out of range", pageNum)
	}

	filter := repository.WorkflowFilter{
		OwnerID: caller.CallerID,
		Search:  q.Search,
		Limit:   pageSize,
		Offset:  (pageNum - 1) * pageSize,
	}
	span.SetAttributes(
		attribute.Int("page", pageNum),
		attribute.Int("page_size", pageSize),
	)

	var (
		items []*models.Workflow
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.store.ListWorkflows(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.CountWorkflows(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return models.NewPage(items, pageNum, pageSize, total), nil
}

func (s *WorkflowService) clampPageSize(size int) int {
	p := s.pagination
	if size == 0 {
		return p.DefaultPageSize
	}
	if size < p.MinPageSize {
		return p.MinPageSize
	}
	if size > p.MaxPageSize {
		return p.MaxPageSize
	}
	return size
}

// ReplaceGraph swaps the whole graph of a workflow. The payload is
// validated before any store call and the swap is all-or-nothing. The
// returned workflow is the row as it was before the replacement; callers
// that need the new state re-read it with GetOne.
func (s *WorkflowService) ReplaceGraph(ctx context.Context, caller auth.Identity, id string, in ReplaceGraphInput) (wf *models.Workflow, err error) {
	ctx, span, started := s.start(ctx, "replaceGraph", caller)
	defer func() { err = s.finish(ctx, span, "replaceGraph", started, err) }()

	if err := policy.RequireAuthenticated(caller); err != nil {
		return nil, err
	}

	nodes, conns, err := buildGraph(id, in, s.newID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("graph.nodes", len(nodes)),
		attribute.Int("graph.edges", len(conns)),
	)

	// Fast fail for missing or foreign workflows; the store re-checks under lock.
	if _, err := s.store.GetWorkflow(ctx, id, caller.CallerID); err != nil {
		return nil, err
	}

	wf, err = s.store.ReplaceGraph(ctx, id, caller.CallerID, nodes, conns)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordGraphSize(ctx, len(nodes))
	s.logger.Debug("workflow graph replaced", "workflow_id", id, "nodes", len(nodes), "edges", len(conns))
	return wf, nil
}
