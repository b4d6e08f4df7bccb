package graph

// Attribute types, numbered as in ONNX AttributeProto.
const (
	AttrUndefined = 0
	AttrFloat     = 1
	AttrInt       = 2
	AttrString    = 3
	AttrFloats    = 6
	AttrInts      = 7
)

// Node is one operator application.
type Node struct {
	Name       string      // optional
	OpType     string      // ONNX operator type, e.g. "Conv"
	Inputs     []string    // operand names; "" marks an absent optional input
	Outputs    []string    // result names
	Attributes []Attribute // sorted by name
}

// Attribute is a node attribute. Integral JSON numbers fill both I and F so
// that either getter sees them.
type Attribute struct {
	Name   string
	Type   int32
	F      float32
	I      int64
	S      string
	Floats []float32
	Ints   []int64
}

func (n *Node) attr(name string) *Attribute {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			return &n.Attributes[i]
		}
	}
	return nil
}

// GetAttrInt returns an integer attribute or defaultVal.
func GetAttrInt(node *Node, name string, defaultVal int64) int64 {
	if a := node.attr(name); a != nil {
		return a.I
	}
	return defaultVal
}

// GetAttrInts returns an integer array attribute, or nil.
func GetAttrInts(node *Node, name string) []int64 {
	if a := node.attr(name); a != nil {
		return a.Ints
	}
	return nil
}

// GetAttrFloat returns a float attribute or defaultVal.
func GetAttrFloat(node *Node, name string, defaultVal float32) float32 {
	if a := node.attr(name); a != nil {
		return a.F
	}
	return defaultVal
}

// GetAttrString returns a string attribute or defaultVal.
func GetAttrString(node *Node, name, defaultVal string) string {
	if a := node.attr(name); a != nil {
		return a.S
	}
	return defaultVal
}

// HasAttr reports whether the node carries the attribute.
func HasAttr(node *Node, name string) bool {
	return node.attr(name) != nil
}
