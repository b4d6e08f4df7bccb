package odla

import (
	"fmt"

	"github.com/born-ml/odla/internal/dnnl"
	"github.com/born-ml/odla/internal/tensor"
)

// Gemm returns alpha * op(lhs) x op(rhs) + beta * bias, where op transposes
// its operand when the matching flag is set. Both operands are 2D. bias is
// optional and broadcast like the rhs of Add. A nil outShape is derived
// from the operands.
func (c *Computation) Gemm(lhs Value, transA bool, rhs Value, transB bool, alpha, beta float32, bias Value, outShape tensor.Shape, name string) Value {
	const op = "gemm"
	a := c.slot(op, lhs)
	b := c.slot(op, rhs)
	if a.shape.Rank() != 2 || b.shape.Rank() != 2 {
		panic(fmt.Sprintf("%s: operands must be 2D, got %v and %v", op, a.shape, b.shape))
	}

	m, k := a.shape[0], a.shape[1]
	if transA {
		m, k = k, m
	}
	kb, n := b.shape[0], b.shape[1]
	if transB {
		kb, n = n, kb
	}
	if k != kb {
		panic(fmt.Sprintf("%s: inner dims differ, %d vs %d", op, k, kb))
	}
	if outShape == nil {
		outShape = tensor.Shape{m, n}
	}
	if !outShape.Equal(tensor.Shape{m, n}) {
		panic(fmt.Sprintf("%s: output %v, expected [%d %d]", op, outShape, m, n))
	}

	// A transposed operand is read through swapped strides, so no copy is
	// needed: the stored row length is the leading dimension.
	srcStrides := []int{k, 1}
	if transA {
		srcStrides = []int{1, m}
	}
	wStrides := []int{n, 1}
	if transB {
		wStrides = []int{1, k}
	}
	src, err := dnnl.NewStridedDesc([]int{m, k}, dnnlType(a.elem), srcStrides)
	check(op, err)
	weights, err := dnnl.NewStridedDesc([]int{k, n}, dnnlType(b.elem), wStrides)
	check(op, err)
	dst := denseDesc(outShape, a.elem)

	prim, err := dnnl.NewMatmul(src, weights, dst)
	check(op, err)
	out, mem := c.result(outShape, a.elem, name)
	c.enqueue(prim, dnnl.Args{dnnl.ArgSrc: a.mem, dnnl.ArgWeights: b.mem, dnnl.ArgDst: mem})
	if alpha != 1 {
		scale, err := dnnl.NewEltwise(dnnl.EltwiseLinear, dst, dst, alpha, 0)
		check(op, err)
		c.enqueue(scale, dnnl.Args{dnnl.ArgSrc: mem, dnnl.ArgDst: mem})
	}
	c.interpretIfNeeded()

	if !bias.IsValid() {
		return out
	}
	if beta != 1 {
		bias = c.eltwise(op, dnnl.EltwiseLinear, bias, beta, 0, "")
	}
	return c.Add(out, bias, name)
}
