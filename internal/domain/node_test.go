package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeTypeBucket(t *testing.T) {
	tests := []struct {
		in   NodeType
		want NodeType
	}{
		{NodeTypeSource, NodeTypeSource},
		{NodeTypeSink, NodeTypeSink},
		{NodeTypeGhost, NodeTypeGhost},
		{NodeTypeOther, NodeTypeOther},
		{"depot", NodeTypeOther},
		{"", NodeTypeOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Bucket(), "NodeType(%q).Bucket()", tt.in)
	}
}

func TestNodeJSON(t *testing.T) {
	t.Run("keeps unknown fields as attributes", func(t *testing.T) {
		var n Node
		err := json.Unmarshal([]byte(`{"id":"Kamppi","type":"sink","demand":200,"zone":"A","lines":[1,2]}`), &n)
		require.NoError(t, err)

		assert.Equal(t, "Kamppi", n.ID)
		assert.Equal(t, NodeTypeSink, n.Type)
		require.NotNil(t, n.Demand)
		assert.Equal(t, 200.0, *n.Demand)
		assert.Equal(t, "A", n.Attributes["zone"])
		assert.Len(t, n.Attributes, 2)
	})

	t.Run("accepts numeric ids", func(t *testing.T) {
		var n Node
		require.NoError(t, json.Unmarshal([]byte(`{"id":42}`), &n))
		assert.Equal(t, "42", n.ID)
		assert.Nil(t, n.Attributes)
	})

	t.Run("rejects non scalar ids", func(t *testing.T) {
		var n Node
		assert.Error(t, json.Unmarshal([]byte(`{"id":{"x":1}}`), &n))
	})

	t.Run("flattens attributes on encode", func(t *testing.T) {
		n := NewNode("A", NodeTypeGhost).WithDemand(0)
		n.SetAttribute("zone", "B")

		data, err := json.Marshal(n)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"A","type":"ghost","demand":0,"zone":"B"}`, string(data))
	})
}

func TestEdgeJSON(t *testing.T) {
	var e Edge
	err := json.Unmarshal([]byte(`{"source":"A","target":"B","capacity":100,"max_capacity":100,"length":3.5}`), &e)
	require.NoError(t, err)

	assert.Equal(t, "A", e.Source)
	assert.Equal(t, "B", e.Target)
	require.NotNil(t, e.Capacity)
	assert.Equal(t, 100.0, *e.Capacity)
	require.NotNil(t, e.Length)
	assert.Equal(t, 3.5, *e.Length)
	v, ok := e.GetAttribute("max_capacity")
	assert.True(t, ok)
	assert.Equal(t, 100.0, v)

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"A","target":"B","capacity":100,"max_capacity":100,"length":3.5}`, string(data))
}

func TestNetworkSummary(t *testing.T) {
	net := NewNetwork()
	net.AddNode(*NewNode("Depot_West", NodeTypeSource).WithDemand(-300))
	net.AddNode(*NewNode("Kamppi", NodeTypeSink).WithDemand(200))
	net.AddNode(*NewNode("Pasila", NodeTypeSink).WithDemand(150))
	net.AddNode(*NewNode("Transfer_1", NodeTypeGhost).WithDemand(0))
	net.AddEdge(*NewEdge("Depot_West", "Kamppi"))
	net.AddEdge(*NewEdge("Kamppi", "Transfer_1"))

	s := net.Summary()
	assert.Equal(t, TopologySummary{TotalLines: 2, TotalNodes: 4, Sources: 1, Sinks: 2, PeakLoad: 350}, s)
}

func TestNetworkFilter(t *testing.T) {
	net := NewNetwork()
	net.AddNode(*NewNode("D", NodeTypeSource))
	net.AddNode(*NewNode("K", NodeTypeSink))
	net.AddNode(*NewNode("T", NodeTypeGhost))
	net.AddEdge(*NewEdge("D", "K"))
	net.AddEdge(*NewEdge("K", "T"))

	t.Run("nil keeps everything", func(t *testing.T) {
		out := net.Filter(nil)
		assert.Len(t, out.Nodes, 3)
		assert.Len(t, out.Edges, 2)
	})

	t.Run("drops edges to filtered nodes", func(t *testing.T) {
		out := net.Filter(map[NodeType]bool{NodeTypeSource: true, NodeTypeSink: true})
		assert.Len(t, out.Nodes, 2)
		require.Len(t, out.Edges, 1)
		assert.Equal(t, "D", out.Edges[0].Source)
	})
}

func TestNetworkFingerprint(t *testing.T) {
	a := NewNetwork()
	a.AddNode(*NewNode("A", ""))
	b := NewNetwork()
	b.AddNode(*NewNode("A", ""))

	assert.NotEmpty(t, a.Fingerprint())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.AddNode(*NewNode("B", ""))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
