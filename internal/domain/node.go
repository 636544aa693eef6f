package domain

import (
	"encoding/json"
	"fmt"
)

// NodeType represents the classification of a topology node
type NodeType string

const (
	NodeTypeSource NodeType = "source" // Generation / depot
	NodeTypeSink   NodeType = "sink"   // Consumption / demand point
	NodeTypeGhost  NodeType = "ghost"  // Transfer or storage
	NodeTypeOther  NodeType = "other"
)

// NodeTypes lists the node buckets in display order
var NodeTypes = []NodeType{NodeTypeSource, NodeTypeSink, NodeTypeGhost, NodeTypeOther}

// Bucket maps any node type onto one of the four known buckets.
// Unknown and empty types fall into NodeTypeOther.
func (t NodeType) Bucket() NodeType {
	switch t {
	case NodeTypeSource, NodeTypeSink, NodeTypeGhost:
		return t
	default:
		return NodeTypeOther
	}
}

// Node represents a facility or station in the network
type Node struct {
	ID     string
	Type   NodeType
	Demand *float64

	// Attributes holds provider fields the core does not interpret
	Attributes map[string]any
}

// NewNode creates a new node with an initialized attribute bag
func NewNode(id string, nodeType NodeType) *Node {
	return &Node{
		ID:         id,
		Type:       nodeType,
		Attributes: make(map[string]any),
	}
}

// WithDemand sets the node demand and returns the node
func (n *Node) WithDemand(demand float64) *Node {
	n.Demand = &demand
	return n
}

// SetAttribute sets an extra attribute value
func (n *Node) SetAttribute(key string, value any) {
	if n.Attributes == nil {
		n.Attributes = make(map[string]any)
	}
	n.Attributes[key] = value
}

// GetAttribute gets an extra attribute value
func (n *Node) GetAttribute(key string) (any, bool) {
	if n.Attributes == nil {
		return nil, false
	}
	val, ok := n.Attributes[key]
	return val, ok
}

// PositiveDemand returns the demand if it is positive, otherwise 0
func (n *Node) PositiveDemand() float64 {
	if n.Demand != nil && *n.Demand > 0 {
		return *n.Demand
	}
	return 0
}

type nodeFields struct {
	ID     json.RawMessage `json:"id"`
	Type   NodeType        `json:"type"`
	Demand *float64        `json:"demand"`
}

var nodeKnownFields = []string{"id", "type", "demand"}

// UnmarshalJSON decodes the fixed schema and keeps everything else as attributes
func (n *Node) UnmarshalJSON(data []byte) error {
	var f nodeFields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode node: %w", err)
	}
	id, err := decodeIdentifier(f.ID)
	if err != nil {
		return fmt.Errorf("decode node id: %w", err)
	}
	attrs, err := extraFields(data, nodeKnownFields...)
	if err != nil {
		return fmt.Errorf("decode node attributes: %w", err)
	}

	n.ID = id
	n.Type = f.Type
	n.Demand = f.Demand
	n.Attributes = attrs
	return nil
}

// MarshalJSON flattens attributes back next to the fixed fields
func (n Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Attributes)+len(nodeKnownFields))
	for k, v := range n.Attributes {
		out[k] = v
	}
	out["id"] = n.ID
	if n.Type != "" {
		out["type"] = n.Type
	}
	if n.Demand != nil {
		out["demand"] = *n.Demand
	}
	return json.Marshal(out)
}
