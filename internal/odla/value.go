package odla

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/odla/internal/dnnl"
	"github.com/born-ml/odla/internal/layout"
	"github.com/born-ml/odla/internal/tensor"
)

// Value is a handle to a tensor owned by a Computation.
//
// The zero Value is never valid and stands for "absent" in optional builder
// operands such as a bias.
type Value struct {
	index int32
	gen   uint32
}

// IsValid reports whether v was ever issued. It does not check that the
// owning computation is still alive.
func (v Value) IsValid() bool {
	return v.gen != 0
}

// LogValue implements slog.LogValuer.
func (v Value) LogValue() slog.Value {
	if !v.IsValid() {
		return slog.StringValue("none")
	}
	return slog.GroupValue(slog.Int("index", int(v.index)), slog.Uint64("gen", uint64(v.gen)))
}

func (v Value) String() string {
	if !v.IsValid() {
		return "value(none)"
	}
	return fmt.Sprintf("value(%d@%d)", v.index, v.gen)
}

// ValueType is the declared element type and logical shape of a value.
type ValueType struct {
	Elem  tensor.DataType
	Shape tensor.Shape
}

func (t ValueType) String() string {
	return fmt.Sprintf("%s%v", t.Elem, []int(t.Shape))
}

// valueSlot is one arena entry. mem may be shared between slots (Reshape)
// and is re-pointed by the bind calls.
type valueSlot struct {
	mem     *dnnl.Memory
	shape   tensor.Shape
	elem    tensor.DataType
	name    string
	isConst bool
}

// denseDesc returns the row-major descriptor of the value in its caller layout.
func (s *valueSlot) denseDesc() dnnl.MemoryDesc {
	return denseDesc(s.shape, s.elem)
}

// dnnlType maps a declared element type onto the primitive library's.
func dnnlType(dt tensor.DataType) dnnl.DataType {
	switch dt {
	case tensor.Float32:
		return dnnl.F32
	case tensor.Float16:
		return dnnl.F16
	case tensor.BFloat16:
		return dnnl.BF16
	case tensor.Int32:
		return dnnl.S32
	case tensor.Int64:
		return dnnl.S64
	default:
		panic(fmt.Sprintf("odla: unsupported element type %s", dt))
	}
}

// denseDesc builds the row-major descriptor for shape. Ranks without a
// format tag fall back to explicit strides.
func denseDesc(shape tensor.Shape, dt tensor.DataType) dnnl.MemoryDesc {
	if tag, err := layout.FormatTagForRank(shape); err == nil {
		return dnnl.MustDesc(shape, dnnlType(dt), tag)
	}
	return dnnl.MustStridedDesc(shape, dnnlType(dt), layout.RowMajorStrides(shape))
}

// layoutDesc builds the descriptor of a 4-D activation held in conv, with
// dims given in channel-first order.
func layoutDesc(nchw tensor.Shape, dt dnnl.DataType, conv layout.Convention) dnnl.MemoryDesc {
	tag, err := layout.FormatTagForLayout(conv, 1)
	if err != nil {
		panic(fmt.Sprintf("odla: %v", err))
	}
	return dnnl.MustDesc(nchw, dt, tag)
}
