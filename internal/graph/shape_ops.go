package graph

import (
	"fmt"

	"github.com/born-ml/odla/internal/odla"
	"github.com/born-ml/odla/internal/tensor"
)

func (r *Registry) registerShapeOps() {
	r.Register("Transpose", handleTranspose)
	r.Register("Reshape", handleReshape)
	r.Register("Flatten", handleFlatten)
	r.Register("Identity", handleIdentity)
	r.Register("Concat", handleConcat)
	r.Register("Slice", handleSlice)
}

func handleTranspose(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	rank := x.Type.Shape.Rank()
	perm := toInts(GetAttrInts(node, "perm"))
	if len(perm) == 0 {
		perm = make([]int, rank)
		for i := range perm {
			perm[i] = rank - 1 - i
		}
	}
	return ctx.single(ctx.Comp.Transpose(x.Value, perm, node.Outputs[0]))
}

// resolveShape expands the 0 and -1 entries of a Reshape target.
func resolveShape(in tensor.Shape, target []int64, allowZero bool) (tensor.Shape, error) {
	out := make(tensor.Shape, len(target))
	infer := -1
	known := 1
	for i, d := range target {
		switch {
		case d == -1:
			if infer >= 0 {
				return nil, fmt.Errorf("reshape target %v has more than one -1", target)
			}
			infer = i
			continue
		case d == 0 && !allowZero:
			if i >= in.Rank() {
				return nil, fmt.Errorf("reshape target %v copies missing axis %d", target, i)
			}
			out[i] = in[i]
		case d < 0:
			return nil, fmt.Errorf("invalid reshape target %v", target)
		default:
			out[i] = int(d)
		}
		known *= out[i]
	}
	if infer >= 0 {
		if known == 0 || in.NumElements()%known != 0 {
			return nil, fmt.Errorf("cannot infer -1 in %v for %v", target, in)
		}
		out[infer] = in.NumElements() / known
	}
	if out.NumElements() != in.NumElements() {
		return nil, fmt.Errorf("cannot reshape %v to %v", in, out)
	}
	return out, nil
}

func handleReshape(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := required(node, inputs, 0)
	if err != nil {
		return nil, err
	}
	target := GetAttrInts(node, "shape")
	if op := optional(inputs, 1); op != nil {
		if target, err = constInts(node, op); err != nil {
			return nil, err
		}
	}
	if target == nil {
		return nil, fmt.Errorf("reshape requires a shape input")
	}
	shape, err := resolveShape(x.Type.Shape, target, GetAttrInt(node, "allowzero", 0) != 0)
	if err != nil {
		return nil, err
	}
	return ctx.reshape(x, shape, node.Outputs[0])
}

// reshape views x under shape. Initializer data carries over so that later
// nodes can still read it as a constant operand.
func (ctx *Context) reshape(x *Operand, shape tensor.Shape, name string) ([]*Operand, error) {
	outs, err := ctx.single(ctx.Comp.Reshape(x.Value, shape, name))
	if err != nil {
		return nil, err
	}
	outs[0].Data = x.Data
	outs[0].argView = x.argView
	return outs, nil
}

func handleFlatten(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	shape := x.Type.Shape
	axis := shape.NormalizeAxis(int(GetAttrInt(node, "axis", 1)))
	if axis < 0 || axis > shape.Rank() {
		return nil, fmt.Errorf("flatten axis %d out of range for %v", axis, shape)
	}
	outer := tensor.Shape(shape[:axis]).NumElements()
	return ctx.reshape(x, tensor.Shape{outer, shape.NumElements() / outer}, node.Outputs[0])
}

func handleIdentity(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	return ctx.reshape(x, x.Type.Shape, node.Outputs[0])
}

func handleConcat(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("concat requires at least 1 input")
	}
	if !HasAttr(node, "axis") {
		return nil, fmt.Errorf("concat requires an axis attribute")
	}
	values := make([]odla.Value, len(inputs))
	for i := range inputs {
		op, err := required(node, inputs, i)
		if err != nil {
			return nil, err
		}
		values[i] = op.Value
	}
	first := inputs[0].Type.Shape
	axis := first.NormalizeAxis(int(GetAttrInt(node, "axis", 0)))
	if axis < 0 || axis >= first.Rank() {
		return nil, fmt.Errorf("concat axis %d out of range for %v", axis, first)
	}
	outShape := first.Clone()
	outShape[axis] = 0
	for _, op := range inputs {
		s := op.Type.Shape
		if s.Rank() != first.Rank() {
			return nil, fmt.Errorf("concat inputs %v and %v differ in rank", first, s)
		}
		for i := range s {
			if i != axis && s[i] != first[i] {
				return nil, fmt.Errorf("concat inputs %v and %v differ off axis %d", first, s, axis)
			}
		}
		outShape[axis] += s[axis]
	}
	return ctx.single(ctx.Comp.Concat(values, axis, outShape, node.Outputs[0]))
}

// handleSlice accepts starts, ends, axes and steps as constant inputs
// (opset >= 10) or as attributes. Bounds are clamped to the input.
func handleSlice(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := required(node, inputs, 0)
	if err != nil {
		return nil, err
	}
	starts := GetAttrInts(node, "starts")
	ends := GetAttrInts(node, "ends")
	axes := GetAttrInts(node, "axes")
	var steps []int64
	for i, dst := range []*[]int64{&starts, &ends, &axes, &steps} {
		op := optional(inputs, i+1)
		if op == nil {
			continue
		}
		if *dst, err = constInts(node, op); err != nil {
			return nil, err
		}
	}
	if len(starts) != len(ends) {
		return nil, fmt.Errorf("slice starts %v and ends %v differ in length", starts, ends)
	}

	shape := x.Type.Shape
	rank := shape.Rank()
	if axes == nil {
		for i := range starts {
			axes = append(axes, int64(i))
		}
	}
	if len(axes) != len(starts) || (steps != nil && len(steps) != len(starts)) {
		return nil, fmt.Errorf("slice axes %v and steps %v must match starts %v", axes, steps, starts)
	}

	begin := make([]int, rank)
	end := make([]int, rank)
	copy(end, shape)
	for i, a := range axes {
		axis := shape.NormalizeAxis(int(a))
		if axis < 0 || axis >= rank {
			return nil, fmt.Errorf("slice axis %d out of range for %v", a, shape)
		}
		if steps != nil && steps[i] != 1 {
			return nil, fmt.Errorf("slice step %d is not supported", steps[i])
		}
		dim := int64(shape[axis])
		begin[axis] = int(clampIndex(starts[i], dim))
		end[axis] = int(max(clampIndex(ends[i], dim), int64(begin[axis])))
	}
	for i := range begin {
		if end[i] == begin[i] {
			return nil, fmt.Errorf("slice of %v is empty on axis %d", shape, i)
		}
	}
	return ctx.single(ctx.Comp.Slice(x.Value, begin, end, nil, node.Outputs[0]))
}

func clampIndex(i, dim int64) int64 {
	if i < 0 {
		i += dim
	}
	return min(max(i, 0), dim)
}
