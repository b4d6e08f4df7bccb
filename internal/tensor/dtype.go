// Package tensor provides the shape and element-type vocabulary shared by the
// lowering backend and its front ends.
package tensor

// DType is a constraint for Go element types that can back a tensor buffer.
type DType interface {
	~float32 | ~int32 | ~int64 | ~uint16
}

// DataType represents the element type of a tensor value.
//
// The set is closed: every switch over DataType in this module is expected to
// be exhaustive.
type DataType int

// Supported element types.
const (
	Float32 DataType = iota
	Float16
	BFloat16
	Int32
	Int64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Int64:
		return 8
	case Float16, BFloat16:
		return 2
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// ParseDataType maps the names used by graph descriptions to a DataType.
func ParseDataType(s string) (DataType, bool) {
	switch s {
	case "float32", "float", "f32", "":
		return Float32, true
	case "float16", "half", "f16":
		return Float16, true
	case "bfloat16", "bf16":
		return BFloat16, true
	case "int32", "i32":
		return Int32, true
	case "int64", "i64":
		return Int64, true
	default:
		return Float32, false
	}
}
