package stats

import (
	"io"

	"gopkg.in/yaml.v3"
)

// yamlNode mirrors Node for the YAML surface, following the teacher's own
// yaml-tagged-struct convention (core/program.go's YAMLTile/YAMLEntry):
// lower_snake tags on an otherwise plain exported struct, with slices
// omitted when empty so a scalar counter's YAML stays a single line.
type yamlNode struct {
	Name      string      `yaml:"name"`
	Histogram []string    `yaml:"histogram,omitempty"`
	Value     uint64      `yaml:"value,omitempty"`
	Buckets   []uint64    `yaml:"buckets,omitempty"`
	Children  []*yamlNode `yaml:"children,omitempty"`
}

func toYAML(n *Node) *yamlNode {
	y := &yamlNode{Name: n.Name, Histogram: n.Histogram, Value: n.Value, Buckets: n.Buckets}
	for _, c := range n.Children {
		y.Children = append(y.Children, toYAML(c))
	}
	return y
}

func fromYAML(y *yamlNode) *Node {
	n := &Node{Name: y.Name, Histogram: y.Histogram, Value: y.Value, Buckets: y.Buckets}
	for _, c := range y.Children {
		n.Children = append(n.Children, fromYAML(c))
	}
	return n
}

// WriteYAML emits root as YAML (spec §6: "an implementation may emit YAML
// directly instead" of the binary container), for the --yamlstats path.
func WriteYAML(w io.Writer, root *Node) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(toYAML(root))
}

// ReadYAML parses a tree written by WriteYAML.
func ReadYAML(r io.Reader) (*Node, error) {
	var y yamlNode
	if err := yaml.NewDecoder(r).Decode(&y); err != nil {
		return nil, err
	}
	return fromYAML(&y), nil
}
