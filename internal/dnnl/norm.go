package dnnl

import (
	"fmt"
	"math"
	"slices"

	"github.com/born-ml/odla/internal/parallel"
)

// BatchNormDesc configures inference batch normalization with global
// statistics over axis 1 of Src.
//
// Mean and Variance are (C). When UseScaleShift is set, ScaleShift is (2, C)
// holding scale in row 0 and shift in row 1.
type BatchNormDesc struct {
	Src           MemoryDesc
	Dst           MemoryDesc
	Mean          MemoryDesc
	Variance      MemoryDesc
	ScaleShift    MemoryDesc
	Epsilon       float32
	UseScaleShift bool
}

// BatchNorm is an inference batch normalization primitive.
type BatchNorm struct {
	desc BatchNormDesc
}

// NewBatchNorm validates d and creates the primitive.
func NewBatchNorm(d BatchNormDesc) (*BatchNorm, error) {
	if d.Src.IsAny() || d.Dst.IsAny() {
		return nil, fmt.Errorf("batch_normalization: descriptors must be concrete")
	}
	if d.Src.Rank() < 2 {
		return nil, fmt.Errorf("batch_normalization: src must have a channel axis, got %v", d.Src.Dims)
	}
	if !slices.Equal(d.Src.Dims, d.Dst.Dims) {
		return nil, fmt.Errorf("batch_normalization: dims mismatch %v -> %v", d.Src.Dims, d.Dst.Dims)
	}
	c := d.Src.Dims[1]
	for _, stat := range []MemoryDesc{d.Mean, d.Variance} {
		if stat.NumElements() != c || stat.IsAny() {
			return nil, fmt.Errorf("batch_normalization: statistics %s do not hold %d channels", stat, c)
		}
	}
	if d.UseScaleShift {
		if d.ScaleShift.IsAny() || d.ScaleShift.Rank() != 2 || d.ScaleShift.Dims[0] != 2 || d.ScaleShift.Dims[1] != c {
			return nil, fmt.Errorf("batch_normalization: scale_shift must be (2, %d), got %s", c, d.ScaleShift)
		}
	}
	if d.Epsilon < 0 {
		return nil, fmt.Errorf("batch_normalization: negative epsilon %g", d.Epsilon)
	}
	return &BatchNorm{desc: d}, nil
}

// Kind implements Primitive.
func (b *BatchNorm) Kind() Kind { return KindBatchNorm }

func (b *BatchNorm) execute(par parallel.Config, args Args) error {
	d := b.desc
	s, err := args.memory(ArgSrc, d.Src)
	if err != nil {
		return err
	}
	mm, err := args.memory(ArgMean, d.Mean)
	if err != nil {
		return err
	}
	vm, err := args.memory(ArgVariance, d.Variance)
	if err != nil {
		return err
	}
	var ss []float32
	if d.UseScaleShift {
		sm, err := args.memory(ArgScaleShift, d.ScaleShift)
		if err != nil {
			return err
		}
		ss = gather(d.ScaleShift, sm)
	}
	dm, err := args.memory(ArgDst, d.Dst)
	if err != nil {
		return err
	}

	x := gather(d.Src, s)
	mean := gather(d.Mean, mm)
	variance := gather(d.Variance, vm)
	n, c := d.Src.Dims[0], d.Src.Dims[1]
	inner := d.Src.NumElements() / (n * c)

	parallel.ForBatch(n, c, func(bi, ch int) {
		scale, shift := float32(1), float32(0)
		if ss != nil {
			scale, shift = ss[ch], ss[c+ch]
		}
		inv := scale / float32(math.Sqrt(float64(variance[ch]+d.Epsilon)))
		plane := x[(bi*c+ch)*inner : (bi*c+ch+1)*inner]
		for i := range plane {
			plane[i] = (plane[i]-mean[ch])*inv + shift
		}
	}, par)

	scatter(d.Dst, dm, x)
	return nil
}

// LRNDesc configures local response normalization across channels:
//
//	dst = src * (K + Alpha/Size * sum(src[c']^2))^-Beta
//
// where c' ranges over the Size channels centred on c.
type LRNDesc struct {
	Src   MemoryDesc
	Dst   MemoryDesc
	Size  int
	Alpha float32
	Beta  float32
	K     float32
}

// LRN is a cross-channel local response normalization primitive.
type LRN struct {
	desc LRNDesc
}

// NewLRN validates d and creates the primitive. Size must be odd.
func NewLRN(d LRNDesc) (*LRN, error) {
	if d.Src.IsAny() || d.Dst.IsAny() {
		return nil, fmt.Errorf("lrn: descriptors must be concrete")
	}
	if d.Src.Rank() < 2 {
		return nil, fmt.Errorf("lrn: src must have a channel axis, got %v", d.Src.Dims)
	}
	if !slices.Equal(d.Src.Dims, d.Dst.Dims) {
		return nil, fmt.Errorf("lrn: dims mismatch %v -> %v", d.Src.Dims, d.Dst.Dims)
	}
	if d.Size <= 0 || d.Size%2 == 0 {
		return nil, fmt.Errorf("lrn: window size must be odd and positive, got %d", d.Size)
	}
	return &LRN{desc: d}, nil
}

// Kind implements Primitive.
func (l *LRN) Kind() Kind { return KindLRN }

func (l *LRN) execute(par parallel.Config, args Args) error {
	d := l.desc
	s, err := args.memory(ArgSrc, d.Src)
	if err != nil {
		return err
	}
	dm, err := args.memory(ArgDst, d.Dst)
	if err != nil {
		return err
	}

	x := gather(d.Src, s)
	out := make([]float32, len(x))
	n, c := d.Src.Dims[0], d.Src.Dims[1]
	inner := d.Src.NumElements() / (n * c)
	half := (d.Size - 1) / 2
	coeff := float64(d.Alpha) / float64(d.Size)

	parallel.ForBatch(n, c, func(bi, ch int) {
		lo, hi := max(ch-half, 0), min(ch+half+1, c)
		base := bi * c * inner
		for i := 0; i < inner; i++ {
			var sum float64
			for cc := lo; cc < hi; cc++ {
				v := float64(x[base+cc*inner+i])
				sum += v * v
			}
			idx := base + ch*inner + i
			out[idx] = float32(float64(x[idx]) * math.Pow(float64(d.K)+coeff*sum, -float64(d.Beta)))
		}
	}, par)

	scatter(d.Dst, dm, out)
	return nil
}
