package dnnl

import (
	"fmt"
	"slices"

	"github.com/born-ml/odla/internal/parallel"
)

// Reorder copies a tensor from one layout (and element type) into another
// with the same logical dims. It is also how views are materialized: a
// permuted-stride source gives a transpose, an offset source gives a slice.
type Reorder struct {
	src, dst MemoryDesc
}

// NewReorder creates a reorder from src to dst.
func NewReorder(src, dst MemoryDesc) (*Reorder, error) {
	if src.IsAny() || dst.IsAny() {
		return nil, fmt.Errorf("reorder: descriptors must be concrete, got %s -> %s", src, dst)
	}
	if !slices.Equal(src.Dims, dst.Dims) {
		return nil, fmt.Errorf("reorder: dims mismatch %v -> %v", src.Dims, dst.Dims)
	}
	return &Reorder{src: src, dst: dst}, nil
}

// MustReorder is NewReorder for descriptors the caller already validated.
func MustReorder(src, dst MemoryDesc) *Reorder {
	r, err := NewReorder(src, dst)
	if err != nil {
		panic(fmt.Sprintf("dnnl: %v", err))
	}
	return r
}

// Kind implements Primitive.
func (r *Reorder) Kind() Kind { return KindReorder }

// SrcDesc returns the source descriptor.
func (r *Reorder) SrcDesc() MemoryDesc { return r.src }

// DstDesc returns the destination descriptor.
func (r *Reorder) DstDesc() MemoryDesc { return r.dst }

func (r *Reorder) execute(_ parallel.Config, args Args) error {
	from, err := args.memory(ArgFrom, r.src)
	if err != nil {
		return err
	}
	to, err := args.memory(ArgTo, r.dst)
	if err != nil {
		return err
	}

	switch {
	case r.src.Type == r.dst.Type:
		// Byte-exact: no float round trip for integer or reduced types.
		dense := pack(r.src, from)
		if r.dst.IsDense() && r.src.IsDense() {
			copy(to, dense)
			return nil
		}
		unpack(r.dst, to, slices.Clone(dense))
	case r.src.Type.isInteger() || r.dst.Type.isInteger():
		scatter64(r.dst, to, gather64(r.src, from))
	default:
		scatter(r.dst, to, gather(r.src, from))
	}
	return nil
}

// ExecuteNow runs a single reorder on a private stream and waits for it.
// Builders use it to convert constant weights once at build time.
func ExecuteNow(eng *Engine, p Primitive, args Args) error {
	s := NewStream(eng)
	s.Execute(p, args)
	return s.Wait()
}
