package graph

import (
	"fmt"
	"math"
)

func (r *Registry) registerActivations() {
	r.Register("Relu", handleRelu)
	r.Register("LeakyRelu", handleLeakyRelu)
	r.Register("Sigmoid", handleSigmoid)
	r.Register("Clip", handleClip)
	r.Register("Softmax", handleSoftmax)
}

func unary(node *Node, inputs []*Operand) (*Operand, error) {
	if len(inputs) != 1 || inputs[0] == nil {
		return nil, fmt.Errorf("%s requires 1 input, got %d", node.OpType, len(inputs))
	}
	return inputs[0], nil
}

func handleRelu(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	return ctx.single(ctx.Comp.Relu(x.Value, node.Outputs[0]))
}

func handleLeakyRelu(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	alpha := GetAttrFloat(node, "alpha", 0.01)
	return ctx.single(ctx.Comp.LeakyRelu(x.Value, alpha, node.Outputs[0]))
}

func handleSigmoid(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	return ctx.single(ctx.Comp.Sigmoid(x.Value, node.Outputs[0]))
}

// handleClip takes its bounds from the min/max attributes (opset < 11) or
// from optional constant inputs.
func handleClip(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := required(node, inputs, 0)
	if err != nil {
		return nil, err
	}
	lo := GetAttrFloat(node, "min", -math.MaxFloat32)
	hi := GetAttrFloat(node, "max", math.MaxFloat32)
	for i, bound := range []*float32{&lo, &hi} {
		op := optional(inputs, i+1)
		if op == nil {
			continue
		}
		if op.Data == nil {
			return nil, fmt.Errorf("clip bound %d must be constant", i+1)
		}
		vals := Decode(op.Type.Elem, op.Data)
		if len(vals) != 1 {
			return nil, fmt.Errorf("clip bound %d must be a scalar", i+1)
		}
		*bound = float32(vals[0])
	}
	return ctx.single(ctx.Comp.Clamp(x.Value, lo, hi, node.Outputs[0]))
}

func handleSoftmax(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	axis := x.Type.Shape.NormalizeAxis(int(GetAttrInt(node, "axis", -1)))
	if axis < 0 || axis >= x.Type.Shape.Rank() {
		return nil, fmt.Errorf("softmax axis %d out of range for %v", GetAttrInt(node, "axis", -1), x.Type.Shape)
	}
	return ctx.single(ctx.Comp.Softmax(x.Value, axis, node.Outputs[0]))
}
