package graph

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/odla/internal/logutil"
	"github.com/born-ml/odla/internal/odla"
)

// Program is a graph lowered onto a computation.
type Program struct {
	comp    *odla.Computation
	inputs  []Tensor
	outputs []Tensor
}

// Lower declares the inputs and initializers of g on comp and lowers its
// nodes in order with reg, or with the default registry when reg is nil.
// comp must buffer its primitives, since inputs are only bound at Run.
func Lower(g *Graph, comp *odla.Computation, reg *Registry) (*Program, error) {
	if comp == nil {
		return nil, odla.ErrNilComputation
	}
	if comp.Options().Policy != odla.Buffered {
		return nil, fmt.Errorf("%w: graphs need a buffered computation", odla.ErrUnsupportedMode)
	}
	if reg == nil {
		reg = NewRegistry()
	}
	ctx := &Context{Comp: comp, Layout: g.Layout, KernelLayout: g.KernelLayout}
	env := make(map[string]*Operand, len(g.Inputs)+len(g.Initializers)+len(g.Nodes))

	declare := func(t Tensor, create func(odla.ValueType) (odla.Value, error)) error {
		if _, dup := env[t.Name]; dup {
			return fmt.Errorf("%w: %q", odla.ErrDuplicateName, t.Name)
		}
		typ := odla.ValueType{Elem: t.Type, Shape: t.Shape}
		v, err := create(typ)
		if err != nil {
			return fmt.Errorf("declaring %q: %w", t.Name, err)
		}
		env[t.Name] = &Operand{Value: v, Type: typ, Data: t.Data, argView: t.Data == nil}
		return nil
	}
	for _, in := range g.Inputs {
		err := declare(in, func(typ odla.ValueType) (odla.Value, error) {
			return comp.CreateArgument(typ, in.Name)
		})
		if err != nil {
			return nil, err
		}
	}
	for _, ini := range g.Initializers {
		err := declare(ini, func(typ odla.ValueType) (odla.Value, error) {
			return comp.CreateConstant(typ, ini.Data, ini.Name)
		})
		if err != nil {
			return nil, err
		}
	}

	for i, node := range g.Nodes {
		inputs := make([]*Operand, len(node.Inputs))
		for j, name := range node.Inputs {
			if name == "" {
				continue
			}
			op, ok := env[name]
			if !ok {
				return nil, fmt.Errorf("node %s: unknown input %q", label(i, node), name)
			}
			inputs[j] = op
		}
		outs, err := reg.lower(ctx, node, inputs)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", label(i, node), err)
		}
		for j, out := range outs {
			if j < len(node.Outputs) && node.Outputs[j] != "" {
				env[node.Outputs[j]] = out
			}
		}
		logutil.Trace("node lowered", "node", label(i, node), "queue", comp.QueueLen())
	}

	p := &Program{comp: comp, inputs: g.Inputs}
	for _, name := range g.Outputs {
		op, ok := env[name]
		if !ok {
			return nil, fmt.Errorf("%w: output %q is not produced by the graph", odla.ErrUnknownName, name)
		}
		if op.argView {
			// Binding the output would repoint the input's buffer, so copy.
			outs, err := reg.lower(ctx, &Node{OpType: "Transpose", Outputs: []string{name}, Attributes: []Attribute{
				{Name: "perm", Type: AttrInts, Ints: identityPerm(op.Type.Shape.Rank())},
			}}, []*Operand{op})
			if err != nil {
				return nil, fmt.Errorf("output %q: %w", name, err)
			}
			op = outs[0]
		}
		if err := comp.SetValueAsOutput(op.Value); err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		p.outputs = append(p.outputs, Tensor{Name: name, Type: op.Type.Elem, Shape: op.Type.Shape})
	}

	slog.Debug("graph lowered", "graph", g.Name, "nodes", len(g.Nodes), "values", comp.NumValues(), "queue", comp.QueueLen())
	return p, nil
}

func label(i int, node *Node) string {
	if node.Name != "" {
		return fmt.Sprintf("%d (%s %s)", i, node.OpType, node.Name)
	}
	return fmt.Sprintf("%d (%s)", i, node.OpType)
}

func identityPerm(rank int) []int64 {
	perm := make([]int64, rank)
	for i := range perm {
		perm[i] = int64(i)
	}
	return perm
}

// Computation returns the computation the program was lowered onto.
func (p *Program) Computation() *odla.Computation { return p.comp }

// Inputs returns the graph inputs in declaration order.
func (p *Program) Inputs() []Tensor { return p.inputs }

// Outputs returns the graph outputs with their inferred types.
func (p *Program) Outputs() []Tensor { return p.outputs }

// Run binds feeds to the inputs by name, executes the computation on ctx and
// returns freshly allocated output buffers keyed by output name.
func (p *Program) Run(ctx *odla.Context, feeds map[string][]byte) (map[string][]byte, error) {
	for _, in := range p.inputs {
		data, ok := feeds[in.Name]
		if !ok {
			return nil, fmt.Errorf("%w: no data for input %q", odla.ErrUnknownName, in.Name)
		}
		if err := ctx.BindToArgumentByID(in.Name, data); err != nil {
			return nil, err
		}
	}
	results := make(map[string][]byte, len(p.outputs))
	for _, out := range p.outputs {
		buf := make([]byte, out.Shape.NumElements()*out.Type.Size())
		if err := ctx.BindToOutputByID(out.Name, buf); err != nil {
			return nil, err
		}
		results[out.Name] = buf
	}
	if err := p.comp.Execute(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// FeedsFromValues encodes numeric input data into feeds for Run.
func (p *Program) FeedsFromValues(values map[string][]float64) (map[string][]byte, error) {
	feeds := make(map[string][]byte, len(p.inputs))
	for _, in := range p.inputs {
		vals, ok := values[in.Name]
		if !ok {
			return nil, fmt.Errorf("%w: no data for input %q", odla.ErrUnknownName, in.Name)
		}
		if n := in.Shape.NumElements(); len(vals) != n {
			return nil, fmt.Errorf("input %q needs %d values, got %d", in.Name, n, len(vals))
		}
		feeds[in.Name] = Encode(in.Type, vals)
	}
	return feeds, nil
}
