package domain

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// Network is one topology snapshot from the network data provider
type Network struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NewNetwork creates an empty network with initialized collections
func NewNetwork() *Network {
	return &Network{
		Nodes: make([]Node, 0),
		Edges: make([]Edge, 0),
	}
}

// AddNode adds a node to the network
func (n *Network) AddNode(node Node) {
	n.Nodes = append(n.Nodes, node)
}

// AddEdge adds an edge to the network
func (n *Network) AddEdge(edge Edge) {
	n.Edges = append(n.Edges, edge)
}

// Fingerprint returns a short content hash of the snapshot.
// Two snapshots with equal content share a fingerprint.
func (n *Network) Fingerprint() string {
	data, err := json.Marshal(n)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:12])
}

// TopologySummary is the structural summary of a network
type TopologySummary struct {
	TotalLines int     `json:"total_lines"`
	TotalNodes int     `json:"total_nodes"`
	Sources    int     `json:"sources"`
	Sinks      int     `json:"sinks"`
	PeakLoad   float64 `json:"peak_load"` // Sum of positive demands
}

// Summary computes the structural summary
func (n *Network) Summary() TopologySummary {
	s := TopologySummary{
		TotalLines: len(n.Edges),
		TotalNodes: len(n.Nodes),
	}
	for i := range n.Nodes {
		switch n.Nodes[i].Type {
		case NodeTypeSource:
			s.Sources++
		case NodeTypeSink:
			s.Sinks++
		}
		s.PeakLoad += n.Nodes[i].PositiveDemand()
	}
	return s
}

// Filter keeps nodes whose type bucket is allowed and the edges between them.
// A nil allowed set keeps everything.
func (n *Network) Filter(allowed map[NodeType]bool) *Network {
	if allowed == nil {
		return &Network{Nodes: n.Nodes, Edges: n.Edges}
	}

	out := NewNetwork()
	kept := make(map[string]struct{}, len(n.Nodes))
	for _, node := range n.Nodes {
		if allowed[node.Type.Bucket()] {
			out.AddNode(node)
			kept[node.ID] = struct{}{}
		}
	}
	for _, edge := range n.Edges {
		_, okSource := kept[edge.Source]
		_, okTarget := kept[edge.Target]
		if okSource && okTarget {
			out.AddEdge(edge)
		}
	}
	return out
}
