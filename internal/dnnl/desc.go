package dnnl

import (
	"fmt"
	"slices"
)

// MemoryDesc describes the logical dims, element type and physical layout of
// a tensor buffer.
type MemoryDesc struct {
	Dims    []int
	Type    DataType
	Format  FormatTag // FormatUndef when built from explicit strides
	Strides []int     // nil while Format is FormatAny
	Offset  int       // element offset of logical index zero
}

// NewDesc creates a descriptor laid out according to tag. FormatAny produces a
// placeholder descriptor for primitive descriptors to resolve.
func NewDesc(dims []int, dt DataType, tag FormatTag) (MemoryDesc, error) {
	if err := checkDims(dims, dt); err != nil {
		return MemoryDesc{}, err
	}
	d := MemoryDesc{Dims: slices.Clone(dims), Type: dt, Format: tag}
	if tag == FormatAny {
		return d, nil
	}
	strides, err := tag.Strides(dims)
	if err != nil {
		return MemoryDesc{}, err
	}
	d.Strides = strides
	return d, nil
}

// NewStridedDesc creates a descriptor with explicit element strides. A zero
// stride repeats the same element along that axis.
func NewStridedDesc(dims []int, dt DataType, strides []int) (MemoryDesc, error) {
	if err := checkDims(dims, dt); err != nil {
		return MemoryDesc{}, err
	}
	if len(strides) != len(dims) {
		return MemoryDesc{}, fmt.Errorf("got %d strides for %d dims", len(strides), len(dims))
	}
	for i, s := range strides {
		if s < 0 {
			return MemoryDesc{}, fmt.Errorf("negative stride %d at axis %d", s, i)
		}
	}
	return MemoryDesc{Dims: slices.Clone(dims), Type: dt, Format: FormatUndef, Strides: slices.Clone(strides)}, nil
}

// MustDesc is NewDesc for descriptors the caller already validated.
func MustDesc(dims []int, dt DataType, tag FormatTag) MemoryDesc {
	d, err := NewDesc(dims, dt, tag)
	if err != nil {
		panic(fmt.Sprintf("dnnl: %v", err))
	}
	return d
}

// MustStridedDesc is NewStridedDesc for descriptors the caller already validated.
func MustStridedDesc(dims []int, dt DataType, strides []int) MemoryDesc {
	d, err := NewStridedDesc(dims, dt, strides)
	if err != nil {
		panic(fmt.Sprintf("dnnl: %v", err))
	}
	return d
}

func checkDims(dims []int, dt DataType) error {
	if dt.Size() == 0 {
		return fmt.Errorf("undefined data type")
	}
	for i, d := range dims {
		if d <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d", i, d)
		}
	}
	return nil
}

// IsAny reports whether the layout is still to be chosen by a primitive.
func (d MemoryDesc) IsAny() bool {
	return d.Format == FormatAny
}

// Rank returns the number of dimensions.
func (d MemoryDesc) Rank() int {
	return len(d.Dims)
}

// NumElements returns the number of logical elements.
func (d MemoryDesc) NumElements() int {
	n := 1
	for _, dim := range d.Dims {
		n *= dim
	}
	return n
}

// Span returns the number of elements between the start of the buffer and
// one past the last addressed element.
func (d MemoryDesc) Span() int {
	last := d.Offset
	for i, dim := range d.Dims {
		last += (dim - 1) * d.Strides[i]
	}
	return last + 1
}

// Size returns the number of bytes a buffer needs to back the descriptor.
func (d MemoryDesc) Size() int {
	if d.IsAny() {
		return 0
	}
	return d.Span() * d.Type.Size()
}

// IsDense reports whether the descriptor is row-major and starts at offset 0.
func (d MemoryDesc) IsDense() bool {
	if d.IsAny() || d.Offset != 0 {
		return false
	}
	s := 1
	for i := len(d.Dims) - 1; i >= 0; i-- {
		if d.Dims[i] != 1 && d.Strides[i] != s {
			return false
		}
		s *= d.Dims[i]
	}
	return true
}

// WithType returns a copy of the descriptor with another element type.
func (d MemoryDesc) WithType(dt DataType) MemoryDesc {
	c := d.clone()
	c.Type = dt
	return c
}

// Submemory returns a view of the dims-sized region starting at offsets.
func (d MemoryDesc) Submemory(dims, offsets []int) (MemoryDesc, error) {
	if d.IsAny() {
		return MemoryDesc{}, fmt.Errorf("submemory of a format_any descriptor")
	}
	if len(dims) != len(d.Dims) || len(offsets) != len(d.Dims) {
		return MemoryDesc{}, fmt.Errorf("submemory rank mismatch: %d dims, %d offsets for rank %d",
			len(dims), len(offsets), len(d.Dims))
	}
	sub := MemoryDesc{
		Dims:    slices.Clone(dims),
		Type:    d.Type,
		Format:  FormatUndef,
		Strides: slices.Clone(d.Strides),
		Offset:  d.Offset,
	}
	for i := range dims {
		if offsets[i] < 0 || dims[i] <= 0 || offsets[i]+dims[i] > d.Dims[i] {
			return MemoryDesc{}, fmt.Errorf("submemory [%d, %d) out of range for axis %d of extent %d",
				offsets[i], offsets[i]+dims[i], i, d.Dims[i])
		}
		sub.Offset += offsets[i] * d.Strides[i]
	}
	return sub, nil
}

// Equal reports whether two descriptors address the same elements the same
// way. Strides of unit-extent axes are ignored.
func (d MemoryDesc) Equal(o MemoryDesc) bool {
	if d.Type != o.Type || d.Offset != o.Offset || !slices.Equal(d.Dims, o.Dims) {
		return false
	}
	if d.IsAny() || o.IsAny() {
		return d.IsAny() && o.IsAny()
	}
	for i := range d.Dims {
		if d.Dims[i] != 1 && d.Strides[i] != o.Strides[i] {
			return false
		}
	}
	return true
}

func (d MemoryDesc) String() string {
	layout := d.Format.String()
	if d.Format == FormatUndef {
		layout = fmt.Sprintf("strides%v", d.Strides)
	}
	if d.Offset != 0 {
		layout += fmt.Sprintf("+%d", d.Offset)
	}
	return fmt.Sprintf("%s%v:%s", d.Type, d.Dims, layout)
}

func (d MemoryDesc) clone() MemoryDesc {
	return MemoryDesc{
		Dims:    slices.Clone(d.Dims),
		Type:    d.Type,
		Format:  d.Format,
		Strides: slices.Clone(d.Strides),
		Offset:  d.Offset,
	}
}
