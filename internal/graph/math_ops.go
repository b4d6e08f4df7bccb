package graph

import (
	"fmt"

	"github.com/born-ml/odla/internal/odla"
)

func (r *Registry) registerMathOps() {
	r.Register("Add", handleAdd)
	r.Register("Mul", handleMul)
	r.Register("Gemm", handleGemm)
	r.Register("MatMul", handleMatMul)
}

// broadcastPair orders the operands of a commutative operator so that the
// one with more elements comes first, as the builders broadcast the rhs.
func broadcastPair(node *Node, inputs []*Operand) (lhs, rhs *Operand, err error) {
	if len(inputs) != 2 || inputs[0] == nil || inputs[1] == nil {
		return nil, nil, fmt.Errorf("%s requires 2 inputs, got %d", node.OpType, len(inputs))
	}
	lhs, rhs = inputs[0], inputs[1]
	if rhs.Type.Shape.NumElements() > lhs.Type.Shape.NumElements() {
		lhs, rhs = rhs, lhs
	}
	return lhs, rhs, nil
}

func handleAdd(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	lhs, rhs, err := broadcastPair(node, inputs)
	if err != nil {
		return nil, err
	}
	return ctx.single(ctx.Comp.Add(lhs.Value, rhs.Value, node.Outputs[0]))
}

func handleMul(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	lhs, rhs, err := broadcastPair(node, inputs)
	if err != nil {
		return nil, err
	}
	return ctx.single(ctx.Comp.Mul(lhs.Value, rhs.Value, node.Outputs[0]))
}

// handleGemm: Y = alpha * A' * B' + beta * C.
func handleGemm(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	if len(inputs) < 2 || len(inputs) > 3 {
		return nil, fmt.Errorf("gemm requires 2 or 3 inputs, got %d", len(inputs))
	}
	a, err := required(node, inputs, 0)
	if err != nil {
		return nil, err
	}
	b, err := required(node, inputs, 1)
	if err != nil {
		return nil, err
	}
	alpha := GetAttrFloat(node, "alpha", 1)
	beta := GetAttrFloat(node, "beta", 1)
	transA := GetAttrInt(node, "transA", 0) != 0
	transB := GetAttrInt(node, "transB", 0) != 0

	out := ctx.Comp.Gemm(a.Value, transA, b.Value, transB, alpha, beta,
		valueOf(optional(inputs, 2)), nil, node.Outputs[0])
	return ctx.single(out)
}

func handleMatMul(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("matmul requires 2 inputs, got %d", len(inputs))
	}
	a, err := required(node, inputs, 0)
	if err != nil {
		return nil, err
	}
	b, err := required(node, inputs, 1)
	if err != nil {
		return nil, err
	}
	return ctx.single(ctx.Comp.Gemm(a.Value, false, b.Value, false, 1, 1, odla.Value{}, nil, node.Outputs[0]))
}
