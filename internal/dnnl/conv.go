package dnnl

import (
	"fmt"

	"github.com/born-ml/odla/internal/parallel"
)

// ConvolutionDesc configures a 2-D convolution or deconvolution.
//
// Src and Dst are (N, C, H, W) in logical order whatever their physical
// layout. Weights are (O, I, KH, KW), or (G, O/G, I/G, KH, KW) for grouped
// convolutions. Any of the three may use FormatAny to let the primitive
// descriptor choose.
type ConvolutionDesc struct {
	Algorithm Algorithm
	Src       MemoryDesc
	Weights   MemoryDesc
	Dst       MemoryDesc
	Strides   [2]int
	PadL      [2]int // top, left
	PadR      [2]int // bottom, right
}

// ConvolutionPrimitiveDesc is a validated ConvolutionDesc with every layout
// resolved.
type ConvolutionPrimitiveDesc struct {
	desc   ConvolutionDesc
	groups int
}

// NewConvolutionPrimitiveDesc validates d and resolves FormatAny descriptors
// to the preferred layouts: NCHW activations and OIHW/GOIHW weights.
func NewConvolutionPrimitiveDesc(d ConvolutionDesc, _ *Engine) (*ConvolutionPrimitiveDesc, error) {
	name := "convolution"
	if d.Algorithm == DeconvolutionDirect {
		name = "deconvolution"
	} else if d.Algorithm != ConvolutionDirect {
		return nil, fmt.Errorf("convolution: unsupported algorithm %s", d.Algorithm)
	}

	if d.Src.Rank() != 4 || d.Dst.Rank() != 4 {
		return nil, fmt.Errorf("%s: src and dst must be 4D (N,C,H,W), got %dD and %dD", name, d.Src.Rank(), d.Dst.Rank())
	}
	groups := 1
	switch d.Weights.Rank() {
	case 4:
	case 5:
		groups = d.Weights.Dims[0]
	default:
		return nil, fmt.Errorf("%s: weights must be 4D or 5D, got %dD", name, d.Weights.Rank())
	}
	for i := 0; i < 2; i++ {
		if d.Strides[i] <= 0 {
			return nil, fmt.Errorf("%s: invalid stride %v", name, d.Strides)
		}
		if d.PadL[i] < 0 || d.PadR[i] < 0 {
			return nil, fmt.Errorf("%s: negative padding %v %v", name, d.PadL, d.PadR)
		}
	}

	w := d.Weights.Dims
	if groups > 1 {
		w = w[1:]
	}
	oc, ic := w[0]*groups, w[1]*groups
	kh, kw := w[2], w[3]

	n, c, h, wi := d.Src.Dims[0], d.Src.Dims[1], d.Src.Dims[2], d.Src.Dims[3]
	if c != ic {
		return nil, fmt.Errorf("%s: src channels %d != weight input channels %d", name, c, ic)
	}
	if d.Dst.Dims[0] != n || d.Dst.Dims[1] != oc {
		return nil, fmt.Errorf("%s: dst dims %v do not match batch %d and output channels %d", name, d.Dst.Dims, n, oc)
	}

	var oh, ow int
	if d.Algorithm == ConvolutionDirect {
		oh = (h+d.PadL[0]+d.PadR[0]-kh)/d.Strides[0] + 1
		ow = (wi+d.PadL[1]+d.PadR[1]-kw)/d.Strides[1] + 1
	} else {
		oh = (h-1)*d.Strides[0] - d.PadL[0] - d.PadR[0] + kh
		ow = (wi-1)*d.Strides[1] - d.PadL[1] - d.PadR[1] + kw
	}
	if oh <= 0 || ow <= 0 || d.Dst.Dims[2] != oh || d.Dst.Dims[3] != ow {
		return nil, fmt.Errorf("%s: dst spatial dims %v, expected %dx%d", name, d.Dst.Dims[2:], oh, ow)
	}

	resolved := d
	var err error
	if resolved.Src, err = resolveAny(d.Src, FormatNCHW); err != nil {
		return nil, err
	}
	weightsTag := FormatOIHW
	if groups > 1 {
		weightsTag = FormatGOIHW
	}
	if resolved.Weights, err = resolveAny(d.Weights, weightsTag); err != nil {
		return nil, err
	}
	if resolved.Dst, err = resolveAny(d.Dst, FormatNCHW); err != nil {
		return nil, err
	}
	return &ConvolutionPrimitiveDesc{desc: resolved, groups: groups}, nil
}

func resolveAny(d MemoryDesc, tag FormatTag) (MemoryDesc, error) {
	if !d.IsAny() {
		return d, nil
	}
	return NewDesc(d.Dims, d.Type, tag)
}

// SrcDesc returns the source layout the primitive expects.
func (pd *ConvolutionPrimitiveDesc) SrcDesc() MemoryDesc { return pd.desc.Src }

// WeightsDesc returns the weights layout the primitive expects.
func (pd *ConvolutionPrimitiveDesc) WeightsDesc() MemoryDesc { return pd.desc.Weights }

// DstDesc returns the destination layout the primitive produces.
func (pd *ConvolutionPrimitiveDesc) DstDesc() MemoryDesc { return pd.desc.Dst }

// Groups returns the number of convolution groups.
func (pd *ConvolutionPrimitiveDesc) Groups() int { return pd.groups }

// Convolution is a direct (de)convolution primitive.
type Convolution struct {
	pd *ConvolutionPrimitiveDesc
}

// NewConvolution creates the primitive for pd.
func NewConvolution(pd *ConvolutionPrimitiveDesc) *Convolution {
	return &Convolution{pd: pd}
}

// Kind implements Primitive.
func (c *Convolution) Kind() Kind {
	if c.pd.desc.Algorithm == DeconvolutionDirect {
		return KindDeconvolution
	}
	return KindConvolution
}

type convGeometry struct {
	n, ic, h, w     int
	oc, oh, ow      int
	kh, kw          int
	groups          int
	icg, ocg        int
	sh, sw          int
	padT, padLeft   int
	weightsPerGroup int
}

func (c *Convolution) geometry() convGeometry {
	d := c.pd.desc
	g := convGeometry{
		n: d.Src.Dims[0], ic: d.Src.Dims[1], h: d.Src.Dims[2], w: d.Src.Dims[3],
		oc: d.Dst.Dims[1], oh: d.Dst.Dims[2], ow: d.Dst.Dims[3],
		groups: c.pd.groups,
		sh:     d.Strides[0], sw: d.Strides[1],
		padT: d.PadL[0], padLeft: d.PadL[1],
	}
	wd := d.Weights.Dims
	g.kh, g.kw = wd[len(wd)-2], wd[len(wd)-1]
	g.icg = g.ic / g.groups
	g.ocg = g.oc / g.groups
	g.weightsPerGroup = g.ocg * g.icg * g.kh * g.kw
	return g
}

func (c *Convolution) execute(par parallel.Config, args Args) error {
	d := c.pd.desc
	s, err := args.memory(ArgSrc, d.Src)
	if err != nil {
		return err
	}
	w, err := args.memory(ArgWeights, d.Weights)
	if err != nil {
		return err
	}
	dst, err := args.memory(ArgDst, d.Dst)
	if err != nil {
		return err
	}

	src := gather(d.Src, s)
	weights := gather(d.Weights, w)
	out := make([]float32, d.Dst.NumElements())
	g := c.geometry()

	if d.Algorithm == ConvolutionDirect {
		parallel.ForBatch(g.n, g.oc, func(n, oc int) {
			convPlane(out, src, weights, g, n, oc)
		}, par)
	} else {
		parallel.ForBatch(g.n, g.oc, func(n, oc int) {
			deconvPlane(out, src, weights, g, n, oc)
		}, par)
	}

	scatter(d.Dst, dst, out)
	return nil
}

// convPlane computes one (batch, output channel) plane of a direct convolution.
func convPlane(out, src, weights []float32, g convGeometry, n, oc int) {
	grp := oc / g.ocg
	wBase := grp*g.weightsPerGroup + (oc%g.ocg)*g.icg*g.kh*g.kw
	outPlane := out[(n*g.oc+oc)*g.oh*g.ow : (n*g.oc+oc+1)*g.oh*g.ow]

	for oh := 0; oh < g.oh; oh++ {
		hStart := oh*g.sh - g.padT
		for ow := 0; ow < g.ow; ow++ {
			wStart := ow*g.sw - g.padLeft
			sum := float32(0)
			for icl := 0; icl < g.icg; icl++ {
				ic := grp*g.icg + icl
				chanOff := (n*g.ic + ic) * g.h * g.w
				kOff := wBase + icl*g.kh*g.kw
				for kh := 0; kh < g.kh; kh++ {
					h := hStart + kh
					if h < 0 || h >= g.h {
						continue
					}
					row := src[chanOff+h*g.w : chanOff+(h+1)*g.w]
					for kw := 0; kw < g.kw; kw++ {
						x := wStart + kw
						if x < 0 || x >= g.w {
							continue
						}
						sum += row[x] * weights[kOff+kh*g.kw+kw]
					}
				}
			}
			outPlane[oh*g.ow+ow] = sum
		}
	}
}

// deconvPlane computes one (batch, output channel) plane of a transposed
// convolution by gathering every input pixel that scatters into each output.
func deconvPlane(out, src, weights []float32, g convGeometry, n, oc int) {
	grp := oc / g.ocg
	wBase := grp*g.weightsPerGroup + (oc%g.ocg)*g.icg*g.kh*g.kw
	outPlane := out[(n*g.oc+oc)*g.oh*g.ow : (n*g.oc+oc+1)*g.oh*g.ow]

	for oh := 0; oh < g.oh; oh++ {
		for ow := 0; ow < g.ow; ow++ {
			sum := float32(0)
			for kh := 0; kh < g.kh; kh++ {
				hs := oh + g.padT - kh
				if hs < 0 || hs%g.sh != 0 || hs/g.sh >= g.h {
					continue
				}
				ih := hs / g.sh
				for kw := 0; kw < g.kw; kw++ {
					ws := ow + g.padLeft - kw
					if ws < 0 || ws%g.sw != 0 || ws/g.sw >= g.w {
						continue
					}
					iw := ws / g.sw
					for icl := 0; icl < g.icg; icl++ {
						ic := grp*g.icg + icl
						sum += src[((n*g.ic+ic)*g.h+ih)*g.w+iw] * weights[wBase+icl*g.kh*g.kw+kh*g.kw+kw]
					}
				}
			}
			outPlane[oh*g.ow+ow] = sum
		}
	}
}
