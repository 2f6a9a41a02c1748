package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNodeData_HTTPRequest(t *testing.T) {
	v, err := DecodeNodeData(NodeTypeHTTPRequest, NodeData{
		"endpoint": "https://example.com/hook",
		"method":   "POST",
		"body":     `{"a":1}`,
	})
	require.NoError(t, err)

	data, ok := v.(*HTTPRequestData)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/hook", data.Endpoint)
	assert.Equal(t, "POST", data.Method)
}

func TestDecodeNodeData_HTTPRequestEmptyIsValid(t *testing.T) {
	_, err := DecodeNodeData(NodeTypeHTTPRequest, nil)
	assert.NoError(t, err)
}

func TestDecodeNodeData_RejectsBadMethod(t *testing.T) {
	_, err := DecodeNodeData(NodeTypeHTTPRequest, NodeData{"method": "TRACE"})
	assert.Error(t, err)
}

func TestDecodeNodeData_RejectsWrongFieldType(t *testing.T) {
	_, err := DecodeNodeData(NodeTypeHTTPRequest, NodeData{"endpoint": 42})
	assert.Error(t, err)
}

func TestDecodeNodeData_UnknownKindPassesThrough(t *testing.T) {
	in := NodeData{"anything": []any{1, "two"}}
	v, err := DecodeNodeData("custom-kind", in)
	require.NoError(t, err)
	assert.Equal(t, in, v)
}

func TestNewPage(t *testing.T) {
	p := NewPage([]string{"a", "b"}, 2, 10, 25)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNextPage)
	assert.True(t, p.HasPreviousPage)

	empty := NewPage[string](nil, 1, 10, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNextPage)
	assert.False(t, empty.HasPreviousPage)
}

func TestNewGraph_DefaultsData(t *testing.T) {
	g := NewGraph(Workflow{ID: "wf"}, []Node{{ID: "n1", Type: NodeTypeInitial}}, []Connection{
		{ID: "c1", FromNodeID: "n1", ToNodeID: "n1", FromOutput: "main", ToInput: "main"},
	})
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, NodeData{}, g.Nodes[0].Data)
	assert.Equal(t, Position{}, g.Nodes[0].Position)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, GraphEdge{ID: "c1", Source: "n1", Target: "n1", SourceHandle: "main", TargetHandle: "main"}, g.Edges[0])
}
