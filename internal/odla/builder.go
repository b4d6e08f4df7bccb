package odla

import (
	"fmt"

	"github.com/born-ml/odla/internal/dnnl"
	"github.com/born-ml/odla/internal/tensor"
)

// check panics with op as prefix when err is set. Builders use it for
// conditions the backend cannot express.
func check(op string, err error) {
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
}

// result allocates the buffer of a builder's result and registers the value.
func (c *Computation) result(shape tensor.Shape, elem tensor.DataType, name string) (Value, *dnnl.Memory) {
	mem := c.alloc(denseDesc(shape, elem))
	return c.newValue(mem, shape, elem, name), mem
}

// reorderInto queues a reorder of src, read through from, into a new buffer
// laid out as to.
func (c *Computation) reorderInto(op string, src *dnnl.Memory, from, to dnnl.MemoryDesc) *dnnl.Memory {
	r, err := dnnl.NewReorder(from, to)
	check(op, err)
	dst := c.alloc(to)
	c.enqueue(r, dnnl.Args{dnnl.ArgFrom: src, dnnl.ArgTo: dst})
	return dst
}

// weightFor returns the memory holding weight v laid out as want, given that
// its data is laid out as have. Constant weights are converted once at build
// time and cached; other weights get a queued reorder.
func (c *Computation) weightFor(op string, v Value, s *valueSlot, have, want dnnl.MemoryDesc) *dnnl.Memory {
	if have.Equal(want) {
		return s.mem
	}
	if !s.isConst {
		return c.reorderInto(op, s.mem, have, want)
	}

	key := weightKey{index: v.index, desc: have.String() + "->" + want.String()}
	if mem, ok := c.weights[key]; ok {
		return mem
	}
	r, err := dnnl.NewReorder(have, want)
	check(op, err)
	mem := c.alloc(want)
	check(op, dnnl.ExecuteNow(c.eng, r, dnnl.Args{dnnl.ArgFrom: s.mem, dnnl.ArgTo: mem}))
	c.weights[key] = mem
	c.logger.Debug("weight reordered", "op", op, "value", v, "from", have, "to", want)
	return mem
}
