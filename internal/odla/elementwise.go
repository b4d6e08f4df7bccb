package odla

import (
	"fmt"

	"github.com/born-ml/odla/internal/dnnl"
	"github.com/born-ml/odla/internal/layout"
)

// Add returns lhs + rhs. See Mul for the broadcasting rules.
func (c *Computation) Add(lhs, rhs Value, name string) Value {
	return c.binary("add", dnnl.BinaryAdd, lhs, rhs, name)
}

// Mul returns lhs * rhs.
//
// The result has the shape and element type of lhs. rhs must hold as many
// elements as lhs or a divisor of that count. An rhs with as many elements
// is read in the layout of lhs whatever its rank. A smaller lower-rank rhs
// repeats along the missing leading axes, and a smaller same-rank rhs
// repeats along its unit axes.
func (c *Computation) Mul(lhs, rhs Value, name string) Value {
	return c.binary("mul", dnnl.BinaryMul, lhs, rhs, name)
}

func (c *Computation) binary(op string, algo dnnl.Algorithm, lhs, rhs Value, name string) Value {
	l := c.slot(op, lhs)
	r := c.slot(op, rhs)
	ln, rn := l.shape.NumElements(), r.shape.NumElements()
	if ln < rn || ln%rn != 0 {
		panic(fmt.Sprintf("%s: cannot broadcast %v onto %v", op, r.shape, l.shape))
	}

	lhsDesc := l.denseDesc()
	var rhsDesc dnnl.MemoryDesc
	switch {
	case ln == rn:
		rhsDesc = denseDesc(l.shape, r.elem)
	case r.shape.Rank() != l.shape.Rank():
		strides, err := layout.BroadcastStrides(l.shape, r.shape)
		check(op, err)
		dims := layout.BroadcastShape(r.shape, l.shape.Rank())
		rhsDesc, err = dnnl.NewStridedDesc(dims, dnnlType(r.elem), strides)
		check(op, err)
	default:
		rhsDesc = r.denseDesc()
	}

	p, err := dnnl.NewBinary(algo, lhsDesc, rhsDesc, lhsDesc)
	check(op, err)
	out, mem := c.result(l.shape, l.elem, name)
	c.enqueue(p, dnnl.Args{dnnl.ArgSrc0: l.mem, dnnl.ArgSrc1: r.mem, dnnl.ArgDst: mem})
	c.interpretIfNeeded()
	return out
}

// Sigmoid returns 1 / (1 + exp(-x)).
func (c *Computation) Sigmoid(input Value, name string) Value {
	return c.eltwise("sigmoid", dnnl.EltwiseLogistic, input, 0, 0, name)
}

// LeakyRelu returns x for positive x and alpha*x otherwise.
func (c *Computation) LeakyRelu(input Value, alpha float32, name string) Value {
	return c.eltwise("leaky_relu", dnnl.EltwiseRelu, input, alpha, 0, name)
}

// Relu is LeakyRelu with a zero slope.
func (c *Computation) Relu(input Value, name string) Value {
	return c.eltwise("relu", dnnl.EltwiseRelu, input, 0, 0, name)
}

// Clamp limits x to [lo, hi].
func (c *Computation) Clamp(input Value, lo, hi float32, name string) Value {
	return c.eltwise("clamp", dnnl.EltwiseClip, input, lo, hi, name)
}

func (c *Computation) eltwise(op string, algo dnnl.Algorithm, input Value, alpha, beta float32, name string) Value {
	s := c.slot(op, input)
	desc := s.denseDesc()
	p, err := dnnl.NewEltwise(algo, desc, desc, alpha, beta)
	check(op, err)
	out, mem := c.result(s.shape, s.elem, name)
	c.enqueue(p, dnnl.Args{dnnl.ArgSrc: s.mem, dnnl.ArgDst: mem})
	c.interpretIfNeeded()
	return out
}
