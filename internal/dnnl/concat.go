package dnnl

import (
	"fmt"
	"slices"

	"github.com/born-ml/odla/internal/parallel"
)

// Concat joins sources along one axis. Sources are bound as
// ArgMultipleSrc+i in the order they were given.
type Concat struct {
	dst  MemoryDesc
	srcs []MemoryDesc
	axis int
}

// NewConcat creates a concatenation of srcs into dst along axis.
func NewConcat(dst MemoryDesc, axis int, srcs []MemoryDesc) (*Concat, error) {
	if len(srcs) == 0 {
		return nil, fmt.Errorf("concat: no sources")
	}
	if dst.IsAny() {
		return nil, fmt.Errorf("concat: dst descriptor must be concrete")
	}
	if axis < 0 || axis >= dst.Rank() {
		return nil, fmt.Errorf("concat: axis %d out of range for rank %d", axis, dst.Rank())
	}
	total := 0
	for i, s := range srcs {
		if s.IsAny() {
			return nil, fmt.Errorf("concat: src %d descriptor must be concrete", i)
		}
		if s.Rank() != dst.Rank() {
			return nil, fmt.Errorf("concat: src %d rank %d differs from dst rank %d", i, s.Rank(), dst.Rank())
		}
		for ax := range s.Dims {
			if ax != axis && s.Dims[ax] != dst.Dims[ax] {
				return nil, fmt.Errorf("concat: src %d dims %v incompatible with dst %v on axis %d", i, s.Dims, dst.Dims, ax)
			}
		}
		total += s.Dims[axis]
	}
	if total != dst.Dims[axis] {
		return nil, fmt.Errorf("concat: sources sum to %d along axis %d, dst has %d", total, axis, dst.Dims[axis])
	}
	descs := make([]MemoryDesc, len(srcs))
	for i, s := range srcs {
		descs[i] = s.clone()
	}
	return &Concat{dst: dst, srcs: descs, axis: axis}, nil
}

// Kind implements Primitive.
func (c *Concat) Kind() Kind { return KindConcat }

func (c *Concat) execute(_ parallel.Config, args Args) error {
	dm, err := args.memory(ArgDst, c.dst)
	if err != nil {
		return err
	}
	offsets := make([]int, c.dst.Rank())
	for i, s := range c.srcs {
		sm, err := args.memory(ArgMultipleSrc+Arg(i), s)
		if err != nil {
			return err
		}
		view, err := c.dst.Submemory(s.Dims, offsets)
		if err != nil {
			return err
		}
		if s.Type == view.Type {
			unpack(view, dm, slices.Clone(pack(s, sm)))
		} else {
			scatter64(view, dm, gather64(s, sm))
		}
		offsets[c.axis] += s.Dims[c.axis]
	}
	return nil
}
