package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/born-ml/odla/internal/layout"
	"github.com/born-ml/odla/internal/tensor"
)

// Graph is a parsed graph description.
type Graph struct {
	Name         string
	Layout       layout.Convention // activations of 4D operators
	KernelLayout layout.Convention // convolution weights
	Inputs       []Tensor
	Initializers []Tensor
	Nodes        []*Node
	Outputs      []string
}

// Tensor describes a named graph input or initializer.
type Tensor struct {
	Name  string
	Type  tensor.DataType
	Shape tensor.Shape
	Data  []byte // initializers only
}

type graphJSON struct {
	Name         string       `json:"name"`
	Layout       string       `json:"layout"`
	KernelLayout string       `json:"kernel_layout"`
	Inputs       []tensorJSON `json:"inputs"`
	Initializers []tensorJSON `json:"initializers"`
	Nodes        []nodeJSON   `json:"nodes"`
	Outputs      []string     `json:"outputs"`
}

type tensorJSON struct {
	Name  string    `json:"name"`
	Type  string    `json:"type"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data,omitempty"`
}

type nodeJSON struct {
	Name       string                     `json:"name"`
	OpType     string                     `json:"op_type"`
	Inputs     []string                   `json:"inputs"`
	Outputs    []string                   `json:"outputs"`
	Attributes map[string]json.RawMessage `json:"attributes,omitempty"`
}

// Load reads and parses the graph file at path.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file: %w", err)
	}
	return Parse(data)
}

// Parse parses a JSON graph description.
func Parse(data []byte) (*Graph, error) {
	var raw graphJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing graph JSON: %w", err)
	}

	g := &Graph{Name: raw.Name, Outputs: raw.Outputs}
	var err error
	if g.Layout, err = layout.ParseConvention(raw.Layout); err != nil {
		return nil, err
	}
	if g.Layout != layout.ChannelsFirst && g.Layout != layout.ChannelsLast {
		return nil, fmt.Errorf("layout %s is not an activation layout", g.Layout)
	}
	kernel := raw.KernelLayout
	if kernel == "" {
		kernel = "ois"
		if g.Layout == layout.ChannelsLast {
			kernel = "sio"
		}
	}
	if g.KernelLayout, err = layout.ParseConvention(kernel); err != nil {
		return nil, err
	}
	if g.KernelLayout == layout.ChannelsFirst || g.KernelLayout == layout.ChannelsLast {
		return nil, fmt.Errorf("kernel layout %s is not a weight layout", g.KernelLayout)
	}

	for _, in := range raw.Inputs {
		t, err := in.tensor(false)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", in.Name, err)
		}
		g.Inputs = append(g.Inputs, t)
	}
	for _, ini := range raw.Initializers {
		t, err := ini.tensor(true)
		if err != nil {
			return nil, fmt.Errorf("initializer %q: %w", ini.Name, err)
		}
		g.Initializers = append(g.Initializers, t)
	}
	for i, n := range raw.Nodes {
		node, err := n.node()
		if err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, n.OpType, err)
		}
		g.Nodes = append(g.Nodes, node)
	}
	if len(g.Outputs) == 0 {
		return nil, fmt.Errorf("graph %q has no outputs", g.Name)
	}
	return g, nil
}

func (t tensorJSON) tensor(withData bool) (Tensor, error) {
	if t.Name == "" {
		return Tensor{}, fmt.Errorf("missing name")
	}
	dt, ok := tensor.ParseDataType(t.Type)
	if !ok {
		return Tensor{}, fmt.Errorf("unknown type %q", t.Type)
	}
	shape := tensor.Shape(t.Shape)
	if err := shape.Validate(); err != nil {
		return Tensor{}, err
	}
	out := Tensor{Name: t.Name, Type: dt, Shape: shape}
	if !withData {
		return out, nil
	}
	if len(t.Data) != shape.NumElements() {
		return Tensor{}, fmt.Errorf("%d values for shape %v", len(t.Data), shape)
	}
	out.Data = Encode(dt, t.Data)
	return out, nil
}

func (n nodeJSON) node() (*Node, error) {
	if n.OpType == "" {
		return nil, fmt.Errorf("missing op_type")
	}
	if len(n.Outputs) == 0 {
		return nil, fmt.Errorf("no outputs")
	}
	node := &Node{Name: n.Name, OpType: n.OpType, Inputs: n.Inputs, Outputs: n.Outputs}
	for name, msg := range n.Attributes {
		a, err := parseAttribute(name, msg)
		if err != nil {
			return nil, err
		}
		node.Attributes = append(node.Attributes, a)
	}
	sort.Slice(node.Attributes, func(i, j int) bool {
		return node.Attributes[i].Name < node.Attributes[j].Name
	})
	return node, nil
}

func parseAttribute(name string, msg json.RawMessage) (Attribute, error) {
	a := Attribute{Name: name}

	var s string
	if json.Unmarshal(msg, &s) == nil {
		a.Type, a.S = AttrString, s
		return a, nil
	}
	var f float64
	if json.Unmarshal(msg, &f) == nil {
		a.F = float32(f)
		a.I = int64(f)
		a.Type = AttrFloat
		if float64(a.I) == f {
			a.Type = AttrInt
		}
		return a, nil
	}
	var fs []float64
	if json.Unmarshal(msg, &fs) == nil {
		a.Type = AttrInts
		a.Floats = make([]float32, len(fs))
		a.Ints = make([]int64, len(fs))
		for i, v := range fs {
			a.Floats[i] = float32(v)
			a.Ints[i] = int64(v)
			if float64(a.Ints[i]) != v {
				a.Type = AttrFloats
			}
		}
		return a, nil
	}
	return Attribute{}, fmt.Errorf("attribute %q: unsupported value %s", name, msg)
}
