package domain

import (
	"encoding/json"
	"fmt"
)

// Edge represents a link between two nodes as delivered by the network provider
type Edge struct {
	Source   string
	Target   string
	Length   *float64
	Capacity *float64

	// Attributes holds provider fields the core does not interpret
	Attributes map[string]any
}

// NewEdge creates a new edge
func NewEdge(source, target string) *Edge {
	return &Edge{
		Source:     source,
		Target:     target,
		Attributes: make(map[string]any),
	}
}

// WithCapacity sets the edge capacity and returns the edge
func (e *Edge) WithCapacity(capacity float64) *Edge {
	e.Capacity = &capacity
	return e
}

// WithLength sets the edge length and returns the edge
func (e *Edge) WithLength(length float64) *Edge {
	e.Length = &length
	return e
}

// SetAttribute sets an extra attribute value
func (e *Edge) SetAttribute(key string, value any) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = value
}

// GetAttribute gets an extra attribute value
func (e *Edge) GetAttribute(key string) (any, bool) {
	if e.Attributes == nil {
		return nil, false
	}
	val, ok := e.Attributes[key]
	return val, ok
}

type edgeFields struct {
	Source   json.RawMessage `json:"source"`
	Target   json.RawMessage `json:"target"`
	Length   *float64        `json:"length"`
	Capacity *float64        `json:"capacity"`
}

var edgeKnownFields = []string{"source", "target", "length", "capacity"}

// UnmarshalJSON decodes the fixed schema and keeps everything else as attributes
func (e *Edge) UnmarshalJSON(data []byte) error {
	var f edgeFields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode edge: %w", err)
	}
	source, err := decodeIdentifier(f.Source)
	if err != nil {
		return fmt.Errorf("decode edge source: %w", err)
	}
	target, err := decodeIdentifier(f.Target)
	if err != nil {
		return fmt.Errorf("decode edge target: %w", err)
	}
	attrs, err := extraFields(data, edgeKnownFields...)
	if err != nil {
		return fmt.Errorf("decode edge attributes: %w", err)
	}

	e.Source = source
	e.Target = target
	e.Length = f.Length
	e.Capacity = f.Capacity
	e.Attributes = attrs
	return nil
}

// MarshalJSON flattens attributes back next to the fixed fields
func (e Edge) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Attributes)+len(edgeKnownFields))
	for k, v := range e.Attributes {
		out[k] = v
	}
	out["source"] = e.Source
	out["target"] = e.Target
	if e.Length != nil {
		out["length"] = *e.Length
	}
	if e.Capacity != nil {
		out["capacity"] = *e.Capacity
	}
	return json.Marshal(out)
}
