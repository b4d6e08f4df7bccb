package graph

import (
	"fmt"
	"sort"

	"github.com/born-ml/odla/internal/layout"
	"github.com/born-ml/odla/internal/odla"
	"github.com/born-ml/odla/internal/tensor"
)

// Operand is a lowered graph tensor.
type Operand struct {
	Value odla.Value
	Type  odla.ValueType
	Data  []byte // initializer contents, nil for computed values

	argView bool // shares the buffer of a graph input
}

// Context carries what handlers need besides their node.
type Context struct {
	Comp         *odla.Computation
	Layout       layout.Convention
	KernelLayout layout.Convention
}

// operand wraps a builder result.
func (ctx *Context) operand(v odla.Value) (*Operand, error) {
	typ, err := ctx.Comp.GetValueType(v)
	if err != nil {
		return nil, err
	}
	return &Operand{Value: v, Type: typ}, nil
}

// single wraps a builder result as a handler's only output.
func (ctx *Context) single(v odla.Value) ([]*Operand, error) {
	op, err := ctx.operand(v)
	if err != nil {
		return nil, err
	}
	return []*Operand{op}, nil
}

// activation splits a 4D activation shape by the graph layout.
func (ctx *Context) activation(shape tensor.Shape) (n, c, h, w int, err error) {
	if shape.Rank() != 4 {
		return 0, 0, 0, 0, fmt.Errorf("expected 4D activation, got %v", shape)
	}
	if ctx.Layout == layout.ChannelsLast {
		return shape[0], shape[3], shape[1], shape[2], nil
	}
	return shape[0], shape[1], shape[2], shape[3], nil
}

// activationShape assembles a 4D shape in the graph layout.
func (ctx *Context) activationShape(n, c, h, w int) tensor.Shape {
	if ctx.Layout == layout.ChannelsLast {
		return tensor.Shape{n, h, w, c}
	}
	return tensor.Shape{n, c, h, w}
}

// OpHandler lowers one node. inputs holds nil for absent optional inputs.
type OpHandler func(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error)

// Registry maps operator types to handlers.
type Registry struct {
	handlers map[string]OpHandler
}

// NewRegistry creates a registry with all supported operators.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]OpHandler)}

	r.registerMathOps()
	r.registerActivations()
	r.registerNNOps()
	r.registerShapeOps()

	return r
}

// Register adds or replaces the handler for opType.
func (r *Registry) Register(opType string, handler OpHandler) {
	r.handlers[opType] = handler
}

// Get returns the handler for opType.
func (r *Registry) Get(opType string) (OpHandler, bool) {
	h, ok := r.handlers[opType]
	return h, ok
}

// Execute lowers node with its registered handler.
func (r *Registry) Execute(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	handler, ok := r.handlers[node.OpType]
	if !ok {
		return nil, fmt.Errorf("unsupported operator: %s", node.OpType)
	}
	return handler(ctx, node, inputs)
}

// SupportedOps returns the registered operator types in sorted order.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// lower runs Execute and turns builder panics into errors.
func (r *Registry) lower(ctx *Context, node *Node, inputs []*Operand) (outs []*Operand, err error) {
	defer func() {
		if p := recover(); p != nil {
			msg, ok := p.(string)
			if !ok {
				panic(p)
			}
			outs, err = nil, fmt.Errorf("%s", msg)
		}
	}()
	return r.Execute(ctx, node, inputs)
}

// required returns inputs[i] or an error naming the operator.
func required(node *Node, inputs []*Operand, i int) (*Operand, error) {
	if i >= len(inputs) || inputs[i] == nil {
		return nil, fmt.Errorf("%s requires input %d", node.OpType, i)
	}
	return inputs[i], nil
}

// optional returns inputs[i] or nil.
func optional(inputs []*Operand, i int) *Operand {
	if i >= len(inputs) {
		return nil
	}
	return inputs[i]
}

// valueOf returns the value of an optional operand.
func valueOf(op *Operand) odla.Value {
	if op == nil {
		return odla.Value{}
	}
	return op.Value
}

// constInts decodes an initializer operand used as a shape, axes or bounds.
func constInts(node *Node, op *Operand) ([]int64, error) {
	if op.Data == nil {
		return nil, fmt.Errorf("%s needs a constant operand, got a computed value", node.OpType)
	}
	return ints(op.Type.Elem, op.Data), nil
}

func toInts(vals []int64) []int {
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = int(v)
	}
	return out
}
