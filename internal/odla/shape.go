package odla

import (
	"fmt"

	"github.com/born-ml/odla/internal/dnnl"
	"github.com/born-ml/odla/internal/layout"
	"github.com/born-ml/odla/internal/tensor"
)

// Transpose returns input with its axes permuted: axis i of the result is
// axis perm[i] of input.
func (c *Computation) Transpose(input Value, perm []int, name string) Value {
	const op = "transpose"
	s := c.slot(op, input)
	outShape, err := layout.Permute(s.shape, perm)
	check(op, err)
	strides, err := layout.PermutedStrides(s.shape, perm)
	check(op, err)
	view, err := dnnl.NewStridedDesc(outShape, dnnlType(s.elem), strides)
	check(op, err)

	out, mem := c.result(outShape, s.elem, name)
	c.enqueue(dnnl.MustReorder(view, denseDesc(outShape, s.elem)), dnnl.Args{dnnl.ArgFrom: s.mem, dnnl.ArgTo: mem})
	c.interpretIfNeeded()
	return out
}

// Reshape returns a value that shares the buffer of input under a new shape
// with the same number of elements. Nothing is queued.
func (c *Computation) Reshape(input Value, shape tensor.Shape, name string) Value {
	const op = "reshape"
	s := c.slot(op, input)
	check(op, shape.Validate())
	if shape.NumElements() != s.shape.NumElements() {
		panic(fmt.Sprintf("%s: cannot view %v as %v", op, s.shape, shape))
	}
	mem, elem, isConst := s.mem, s.elem, s.isConst
	out := c.newValue(mem, shape, elem, name)
	c.values[out.index].isConst = isConst
	return out
}

// Concat joins inputs along axis. Negative axes count from the end. A nil
// outShape is derived from the inputs.
func (c *Computation) Concat(inputs []Value, axis int, outShape tensor.Shape, name string) Value {
	const op = "concat"
	if len(inputs) == 0 {
		panic(op + ": no inputs")
	}
	first := c.slot(op, inputs[0])
	axis = first.shape.NormalizeAxis(axis)
	elem := first.elem

	srcs := make([]dnnl.MemoryDesc, len(inputs))
	args := make(dnnl.Args, len(inputs)+1)
	total := 0
	for i, v := range inputs {
		s := c.slot(op, v)
		if s.elem != elem {
			panic(fmt.Sprintf("%s: input %d is %s, expected %s", op, i, s.elem, elem))
		}
		if axis < 0 || axis >= s.shape.Rank() {
			panic(fmt.Sprintf("%s: axis %d out of range for %v", op, axis, s.shape))
		}
		srcs[i] = s.denseDesc()
		args[dnnl.ArgMultipleSrc+dnnl.Arg(i)] = s.mem
		total += s.shape[axis]
	}
	if outShape == nil {
		outShape = first.shape.Clone()
		outShape[axis] = total
	}

	prim, err := dnnl.NewConcat(denseDesc(outShape, elem), axis, srcs)
	check(op, err)
	out, mem := c.result(outShape, elem, name)
	args[dnnl.ArgDst] = mem
	c.enqueue(prim, args)
	c.interpretIfNeeded()
	return out
}

// Slice copies the region [start, end) of input. Only unit strides are
// supported; a nil strides means all ones.
func (c *Computation) Slice(input Value, start, end, strides []int, name string) Value {
	const op = "slice"
	s := c.slot(op, input)
	rank := s.shape.Rank()
	if len(start) != rank || len(end) != rank || (strides != nil && len(strides) != rank) {
		panic(fmt.Sprintf("%s: bounds %v..%v do not match rank %d", op, start, end, rank))
	}
	for i, st := range strides {
		if st != 1 {
			panic(fmt.Sprintf("%s: stride %d on axis %d is not supported", op, st, i))
		}
	}
	dims := make(tensor.Shape, rank)
	for i := range dims {
		dims[i] = end[i] - start[i]
	}
	view, err := s.denseDesc().Submemory(dims, start)
	check(op, err)

	out, mem := c.result(dims, s.elem, name)
	c.enqueue(dnnl.MustReorder(view, denseDesc(dims, s.elem)), dnnl.Args{dnnl.ArgFrom: s.mem, dnnl.ArgTo: mem})
	c.interpretIfNeeded()
	return out
}
