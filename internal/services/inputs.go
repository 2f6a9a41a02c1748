package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"nodebase/backend/internal/apperror"
	"nodebase/backend/pkg/models"
)

// MaxNameLength bounds workflow names.
const MaxNameLength = 255

// ListQuery selects one page of the caller's workflows. Zero values mean
// "use the default".
type ListQuery struct {
	Page     int
	PageSize int
	Search   string
}

// NodeInput is a node as sent by the graph editor.
type NodeInput struct {
	ID       string           `json:"id" validate:"required,max=255"`
	Type     models.NodeType  `json:"type,omitempty" validate:"omitempty,max=64"`
	Position *models.Position `json:"position" validate:"required"`
	Data     models.NodeData  `json:"data,omitempty"`
}

// EdgeInput is an edge as sent by the graph editor. Any id the editor
// assigned is ignored; stored edges get fresh ids.
type EdgeInput struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty" validate:"max=64"`
	TargetHandle string `json:"targetHandle,omitempty" validate:"max=64"`
}

// ReplaceGraphInput is the full desired graph of a workflow.
type ReplaceGraphInput struct {
	Nodes []NodeInput `json:"nodes" validate:"dive"`
	Edges []EdgeInput `json:"edges" validate:"dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validationError turns validator output into a single ValidationError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return apperror.Validation("%s", strings.Join(msgs, "; "))
}

type edgeKey struct {
	from, to, out, in string
}

// buildGraph validates the payload and maps it to storage rows. Nothing is
// written when it fails.
func buildGraph(workflowID string, in ReplaceGraphInput, newID func() string) ([]models.Node, []models.Connection, error) {
	if err := validate.Struct(in); err != nil {
		return nil, nil, validationError(err)
	}

	nodes := make([]models.Node, 0, len(in.Nodes))
	seen := make(map[string]struct{}, len(in.Nodes))
	for i, n := range in.Nodes {
		if _, dup := seen[n.ID]; dup {
			return nil, nil, apperror.Validation("nodes[%d]: duplicate node id %q", i, n.ID)
		}
		seen[n.ID] = struct{}{}

		typ := models.NodeType(strings.TrimSpace(string(n.Type)))
		if typ == "" {
			typ = models.NodeTypeUnknown
		}
		data := n.Data
		if data == nil {
			data = models.NodeData{}
		}
		if _, err := models.DecodeNodeData(typ, data); err != nil {
			return nil, nil, apperror.Validation("nodes[%d]: %v", i, err)
		}

		nodes = append(nodes, models.Node{
			ID:         n.ID,
			WorkflowID: workflowID,
			Type:       typ,
			Name:       string(typ),
			Position:   *n.Position,
			Data:       data,
		})
	}

	conns := make([]models.Connection, 0, len(in.Edges))
	edges := make(map[edgeKey]struct{}, len(in.Edges))
	for i, e := range in.Edges {
		if _, ok := seen[e.Source]; !ok {
			return nil, nil, apperror.Conflict("edges[%d]: source node %q is not part of the graph", i, e.Source)
		}
		if _, ok := seen[e.Target]; !ok {
			return nil, nil, apperror.Conflict("edges[%d]: target node %q is not part of the graph", i, e.Target)
		}

		c := models.Connection{
			ID:         newID(),
			WorkflowID: workflowID,
			FromNodeID: e.Source,
			ToNodeID:   e.Target,
			FromOutput: portOrDefault(e.SourceHandle),
			ToInput:    portOrDefault(e.TargetHandle),
		}
		key := edgeKey{c.FromNodeID, c.ToNodeID, c.FromOutput, c.ToInput}
		if _, dup := edges[key]; dup {
			return nil, nil, apperror.Validation("edges[%d]: duplicate edge %s:%s -> %s:%s", i, c.FromNodeID, c.FromOutput, c.ToNodeID, c.ToInput)
		}
		edges[key] = struct{}{}
		conns = append(conns, c)
	}
	return nodes, conns, nil
}

func portOrDefault(p string) string {
	if strings.TrimSpace(p) == "" {
		return models.DefaultPort
	}
	return p
}
