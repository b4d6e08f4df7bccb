package dnnl

import (
	"fmt"
	"math"

	"github.com/born-ml/odla/internal/parallel"
)

// PoolingDesc configures 2-D max or average pooling over (N, C, H, W).
type PoolingDesc struct {
	Algorithm Algorithm
	Src       MemoryDesc
	Dst       MemoryDesc
	Kernel    [2]int
	Strides   [2]int
	PadL      [2]int
	PadR      [2]int
}

// Pooling is a 2-D pooling primitive. Average pooling divides by the number
// of in-bounds elements only.
type Pooling struct {
	desc PoolingDesc
}

// NewPooling validates d and creates the primitive. A FormatAny dst takes
// the src layout.
func NewPooling(d PoolingDesc) (*Pooling, error) {
	if d.Algorithm != PoolingMax && d.Algorithm != PoolingAvg {
		return nil, fmt.Errorf("pooling: unsupported algorithm %s", d.Algorithm)
	}
	if d.Src.IsAny() {
		return nil, fmt.Errorf("pooling: src descriptor must be concrete")
	}
	if d.Src.Rank() != 4 || d.Dst.Rank() != 4 {
		return nil, fmt.Errorf("pooling: src and dst must be 4D (N,C,H,W), got %dD and %dD", d.Src.Rank(), d.Dst.Rank())
	}
	for i := 0; i < 2; i++ {
		if d.Kernel[i] <= 0 || d.Strides[i] <= 0 {
			return nil, fmt.Errorf("pooling: invalid kernel %v or stride %v", d.Kernel, d.Strides)
		}
		if d.PadL[i] < 0 || d.PadR[i] < 0 {
			return nil, fmt.Errorf("pooling: negative padding %v %v", d.PadL, d.PadR)
		}
	}
	if d.Dst.Dims[0] != d.Src.Dims[0] || d.Dst.Dims[1] != d.Src.Dims[1] {
		return nil, fmt.Errorf("pooling: dst dims %v do not keep batch and channels of %v", d.Dst.Dims, d.Src.Dims)
	}
	for i := 0; i < 2; i++ {
		want := (d.Src.Dims[2+i]+d.PadL[i]+d.PadR[i]-d.Kernel[i])/d.Strides[i] + 1
		if want <= 0 || d.Dst.Dims[2+i] != want {
			return nil, fmt.Errorf("pooling: dst spatial dim %d is %d, expected %d", i, d.Dst.Dims[2+i], want)
		}
	}
	if d.Dst.IsAny() {
		tag := d.Src.Format
		if tag == FormatUndef {
			tag = FormatNCHW
		}
		dst, err := NewDesc(d.Dst.Dims, d.Dst.Type, tag)
		if err != nil {
			return nil, err
		}
		d.Dst = dst
	}
	return &Pooling{desc: d}, nil
}

// DstDesc returns the resolved destination descriptor.
func (p *Pooling) DstDesc() MemoryDesc { return p.desc.Dst }

// Kind implements Primitive.
func (p *Pooling) Kind() Kind { return KindPooling }

func (p *Pooling) execute(par parallel.Config, args Args) error {
	d := p.desc
	s, err := args.memory(ArgSrc, d.Src)
	if err != nil {
		return err
	}
	dm, err := args.memory(ArgDst, d.Dst)
	if err != nil {
		return err
	}

	src := gather(d.Src, s)
	n, c, h, w := d.Src.Dims[0], d.Src.Dims[1], d.Src.Dims[2], d.Src.Dims[3]
	oh, ow := d.Dst.Dims[2], d.Dst.Dims[3]
	out := make([]float32, n*c*oh*ow)

	parallel.ForBatch(n, c, func(b, ch int) {
		in := src[(b*c+ch)*h*w : (b*c+ch+1)*h*w]
		o := out[(b*c+ch)*oh*ow : (b*c+ch+1)*oh*ow]
		for y := 0; y < oh; y++ {
			h0 := max(y*d.Strides[0]-d.PadL[0], 0)
			h1 := min(y*d.Strides[0]-d.PadL[0]+d.Kernel[0], h)
			for x := 0; x < ow; x++ {
				w0 := max(x*d.Strides[1]-d.PadL[1], 0)
				w1 := min(x*d.Strides[1]-d.PadL[1]+d.Kernel[1], w)
				o[y*ow+x] = poolWindow(d.Algorithm, in, w, h0, h1, w0, w1)
			}
		}
	}, par)

	scatter(d.Dst, dm, out)
	return nil
}

func poolWindow(algo Algorithm, in []float32, w, h0, h1, w0, w1 int) float32 {
	if h0 >= h1 || w0 >= w1 {
		return 0
	}
	if algo == PoolingMax {
		m := float32(math.Inf(-1))
		for y := h0; y < h1; y++ {
			for x := w0; x < w1; x++ {
				m = max(m, in[y*w+x])
			}
		}
		return m
	}
	var sum float32
	for y := h0; y < h1; y++ {
		for x := w0; x < w1; x++ {
			sum += in[y*w+x]
		}
	}
	return sum / float32((h1-h0)*(w1-w0))
}
