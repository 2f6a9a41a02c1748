package models

import (
	"time"
)

// DefaultPort is the handle name used when an edge omits sourceHandle or targetHandle.
const DefaultPort = "main"

// NodeType is the kind of a node. The known kinds below are validated
// against typed payloads; any other non-empty identifier is stored as-is.
type NodeType string

const (
	NodeTypeInitial       NodeType = "INITIAL"
	NodeTypeManualTrigger NodeType = "MANUAL_TRIGGER"
	NodeTypeHTTPRequest   NodeType = "HTTP_REQUEST"

	// NodeTypeUnknown is stored when the editor sends a node without a type.
	NodeTypeUnknown NodeType = "unknown"
)

// Workflow is the top-level persisted unit: a tenant-owned graph.
type Workflow struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Position is a 2D editor coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the open-ended payload carried by a node.
type NodeData map[string]any

// Node is a stored vertex. ID is chosen by the editor and is unique within
// its workflow.
type Node struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflowId"`
	Type       NodeType  `json:"type"`
	Name       string    `json:"name"`
	Position   Position  `json:"position"`
	Data       NodeData  `json:"data"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Connection is a stored directed edge between two nodes of one workflow.
type Connection struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflowId"`
	FromNodeID string    `json:"fromNodeId"`
	ToNodeID   string    `json:"toNodeId"`
	FromOutput string    `json:"fromOutput"`
	ToInput    string    `json:"toInput"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// GraphNode is a node in the shape the graph editor consumes.
type GraphNode struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// GraphEdge is a connection in the shape the graph editor consumes.
type GraphEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

// Graph is a workflow together with its full node and edge sets.
type Graph struct {
	Workflow
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// NewGraph reshapes stored rows into the editor representation.
func NewGraph(wf Workflow, nodes []Node, conns []Connection) *Graph {
	g := &Graph{
		Workflow: wf,
		Nodes:    make([]GraphNode, 0, len(nodes)),
		Edges:    make([]GraphEdge, 0, len(conns)),
	}
	for _, n := range nodes {
		data := n.Data
		if data == nil {
			data = NodeData{}
		}
		g.Nodes = append(g.Nodes, GraphNode{
			ID:       n.ID,
			Type:     n.Type,
			Position: n.Position,
			Data:     data,
		})
	}
	for _, c := range conns {
		g.Edges = append(g.Edges, GraphEdge{
			ID:           c.ID,
			Source:       c.FromNodeID,
			Target:       c.ToNodeID,
			SourceHandle: c.FromOutput,
			TargetHandle: c.ToInput,
		})
	}
	return g
}
