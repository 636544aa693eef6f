package domain

import (
	"fmt"
	"strconv"
)

// RenderNode is a node as handed to the renderer and layout engine
type RenderNode struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Type       NodeType       `json:"type,omitempty"`
	Demand     *float64       `json:"demand,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// EndpointID implements the identifier contract used by edge lookups
func (n RenderNode) EndpointID() string {
	return n.ID
}

// Tooltip returns the hover label: "id (type)" plus a signed demand line
func (n RenderNode) Tooltip() string {
	tooltip := n.ID
	if n.Type != "" {
		tooltip += fmt.Sprintf(" (%s)", n.Type)
	}
	if n.Demand != nil {
		sign := ""
		if *n.Demand > 0 {
			sign = "+"
		}
		tooltip += "\nDemand: " + sign + strconv.FormatFloat(*n.Demand, 'f', -1, 64)
	}
	return tooltip
}

// RenderLink is an edge whose endpoints are both known to exist
type RenderLink struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Length     *float64       `json:"length,omitempty"`
	Capacity   *float64       `json:"capacity,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Endpoints returns the raw identifier form of both endpoints
func (l RenderLink) Endpoints() (any, any) {
	return l.Source, l.Target
}

// RenderGraph is the renderer input produced by Normalize
type RenderGraph struct {
	Nodes []RenderNode `json:"nodes"`
	Links []RenderLink `json:"links"`
}

// Normalize converts raw nodes and edges to renderer input.
//
// Edges referencing a node that is not in nodes are dropped. Nodes with an
// empty id are dropped, and when an id repeats the first occurrence wins.
// Nil input yields empty, non-nil slices.
func Normalize(nodes []Node, edges []Edge) ([]RenderNode, []RenderLink) {
	renderNodes := make([]RenderNode, 0, len(nodes))
	known := make(map[string]struct{}, len(nodes))

	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		if _, dup := known[n.ID]; dup {
			continue
		}
		known[n.ID] = struct{}{}
		renderNodes = append(renderNodes, RenderNode{
			ID:         n.ID,
			Label:      n.ID,
			Type:       n.Type,
			Demand:     n.Demand,
			Attributes: n.Attributes,
		})
	}

	renderLinks := make([]RenderLink, 0, len(edges))
	for _, e := range edges {
		if _, ok := known[e.Source]; !ok {
			continue
		}
		if _, ok := known[e.Target]; !ok {
			continue
		}
		renderLinks = append(renderLinks, RenderLink{
			Source:     e.Source,
			Target:     e.Target,
			Length:     e.Length,
			Capacity:   e.Capacity,
			Attributes: e.Attributes,
		})
	}

	return renderNodes, renderLinks
}

// NormalizeNetwork is Normalize applied to a whole snapshot.
// A nil network yields an empty graph.
func NormalizeNetwork(n *Network) RenderGraph {
	if n == nil {
		nodes, links := Normalize(nil, nil)
		return RenderGraph{Nodes: nodes, Links: links}
	}
	nodes, links := Normalize(n.Nodes, n.Edges)
	return RenderGraph{Nodes: nodes, Links: links}
}
