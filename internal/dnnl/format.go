package dnnl

import "fmt"

// FormatTag names a physical layout for a memory descriptor.
type FormatTag int

// Format tags. FormatAny lets a primitive descriptor choose; FormatUndef marks
// descriptors built from explicit strides.
const (
	FormatUndef FormatTag = iota
	FormatAny

	FormatA
	FormatAB
	FormatABC
	FormatABCD
	FormatABCDE
	FormatABCDEF

	FormatNCHW
	FormatNHWC

	FormatOIHW
	FormatHWIO
	FormatIOHW
	FormatGOIHW
	FormatGIOHW
	FormatHWIGO
)

// tagOrders lists, for each tag, the logical axes from outermost to innermost
// in memory. 'a' is logical axis 0.
var tagOrders = map[FormatTag]string{
	FormatA:      "a",
	FormatAB:     "ab",
	FormatABC:    "abc",
	FormatABCD:   "abcd",
	FormatABCDE:  "abcde",
	FormatABCDEF: "abcdef",
	FormatNCHW:   "abcd",
	FormatNHWC:   "acdb",
	FormatOIHW:   "abcd",
	FormatHWIO:   "cdba",
	FormatIOHW:   "bacd",
	FormatGOIHW:  "abcde",
	FormatGIOHW:  "acbde",
	FormatHWIGO:  "decab",
}

var tagNames = map[FormatTag]string{
	FormatUndef:  "undef",
	FormatAny:    "any",
	FormatA:      "a",
	FormatAB:     "ab",
	FormatABC:    "abc",
	FormatABCD:   "abcd",
	FormatABCDE:  "abcde",
	FormatABCDEF: "abcdef",
	FormatNCHW:   "nchw",
	FormatNHWC:   "nhwc",
	FormatOIHW:   "oihw",
	FormatHWIO:   "hwio",
	FormatIOHW:   "iohw",
	FormatGOIHW:  "goihw",
	FormatGIOHW:  "giohw",
	FormatHWIGO:  "hwigo",
}

func (f FormatTag) String() string {
	if s, ok := tagNames[f]; ok {
		return s
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Rank returns the number of dimensions the tag describes, or 0 for
// FormatAny and FormatUndef.
func (f FormatTag) Rank() int {
	return len(tagOrders[f])
}

// PlainTag returns the dense row-major tag for a rank, or FormatUndef when no
// tag exists for it.
func PlainTag(rank int) FormatTag {
	switch rank {
	case 1:
		return FormatA
	case 2:
		return FormatAB
	case 3:
		return FormatABC
	case 4:
		return FormatABCD
	case 5:
		return FormatABCDE
	case 6:
		return FormatABCDEF
	default:
		return FormatUndef
	}
}

// Strides computes element strides for dims laid out as f.
func (f FormatTag) Strides(dims []int) ([]int, error) {
	order, ok := tagOrders[f]
	if !ok {
		return nil, fmt.Errorf("format %s has no fixed layout", f)
	}
	if len(order) != len(dims) {
		return nil, fmt.Errorf("format %s expects %d dims, got %d", f, len(order), len(dims))
	}

	strides := make([]int, len(dims))
	s := 1
	for i := len(order) - 1; i >= 0; i-- {
		ax := int(order[i] - 'a')
		strides[ax] = s
		s *= dims[ax]
	}
	return strides, nil
}
