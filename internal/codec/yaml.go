package codec

import (
	"fmt"
	"io"

	"opsmap/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlNetwork represents the YAML structure for a network
type yamlNetwork struct {
	Nodes []yamlNode `yaml:"nodes"`
	Edges []yamlEdge `yaml:"edges"`
}

type yamlNode struct {
	ID     string         `yaml:"id"`
	Type   string         `yaml:"type,omitempty"`
	Demand *float64       `yaml:"demand,omitempty"`
	Extra  map[string]any `yaml:",inline"`
}

type yamlEdge struct {
	Source   string         `yaml:"source"`
	Target   string         `yaml:"target"`
	Length   *float64       `yaml:"length,omitempty"`
	Capacity *float64       `yaml:"capacity,omitempty"`
	Extra    map[string]any `yaml:",inline"`
}

// Parse imports a network from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*domain.Network, error) {
	var yn yamlNetwork
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&yn); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	network := domain.NewNetwork()

	for _, n := range yn.Nodes {
		network.AddNode(domain.Node{
			ID:         n.ID,
			Type:       domain.NodeType(n.Type),
			Demand:     n.Demand,
			Attributes: nonEmpty(n.Extra),
		})
	}

	for _, e := range yn.Edges {
		network.AddEdge(domain.Edge{
			Source:     e.Source,
			Target:     e.Target,
			Length:     e.Length,
			Capacity:   e.Capacity,
			Attributes: nonEmpty(e.Extra),
		})
	}

	return network, nil
}

// Export exports a network to YAML
func (c *YAMLCodec) Export(network *domain.Network, w io.Writer) error {
	yn := yamlNetwork{
		Nodes: make([]yamlNode, 0, len(network.Nodes)),
		Edges: make([]yamlEdge, 0, len(network.Edges)),
	}

	for _, n := range network.Nodes {
		yn.Nodes = append(yn.Nodes, yamlNode{
			ID:     n.ID,
			Type:   string(n.Type),
			Demand: n.Demand,
			Extra:  n.Attributes,
		})
	}

	for _, e := range network.Edges {
		yn.Edges = append(yn.Edges, yamlEdge{
			Source:   e.Source,
			Target:   e.Target,
			Length:   e.Length,
			Capacity: e.Capacity,
			Extra:    e.Attributes,
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yn); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

func nonEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}
