// Package odla lowers tensor operators onto the dnnl primitive library.
//
// A Computation records builder calls as an ordered queue of primitives and
// owns every Value it creates. A Context executes that queue on its own
// stream. Builders reconcile the caller's layout conventions with the
// layouts primitives prefer by splicing reorders around the main primitive,
// and always report results in the caller's layout.
//
// Lifecycle, declaration and binding calls return errors. Builders panic
// when asked for something the backend cannot express (non-unit slice
// strides, dilated convolutions, non-contiguous reductions, ...).
package odla

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/born-ml/odla/internal/dnnl"
	"github.com/born-ml/odla/internal/logutil"
	"github.com/born-ml/odla/internal/parallel"
	"github.com/born-ml/odla/internal/tensor"
)

// generations hands out a fresh generation to every computation and to
// every destroyed one, so a Value is only valid against the computation
// state that issued it.
var generations atomic.Uint32

func nextGeneration() uint32 {
	for {
		if g := generations.Add(1); g != 0 {
			return g
		}
	}
}

type step struct {
	prim dnnl.Primitive
	args dnnl.Args
}

type weightKey struct {
	index int32
	desc  string
}

// Computation is a buildable graph of operators plus its execution queue and
// named input and output registries.
//
// A Computation must be built from a single goroutine. Executions through
// any number of Contexts are serialized; each Context keeps its own
// bindings.
type Computation struct {
	id     uuid.UUID
	gen    uint32
	eng    *dnnl.Engine
	opts   Options
	logger *slog.Logger

	steps   []step
	values  []valueSlot
	inputs  map[string]Value
	outputs map[string]Value
	weights map[weightKey]*dnnl.Memory

	mu        sync.Mutex // serializes executions, bindings and Destroy
	interp    *Context
	interpErr error
	destroyed bool
}

// NewComputation creates an empty computation.
func NewComputation(opts Options) *Computation {
	c := &Computation{
		id:      uuid.New(),
		gen:     nextGeneration(),
		eng:     dnnl.NewEngine(dnnl.CPU, 0, parallel.WithWorkers(opts.NumThreads)),
		opts:    opts,
		inputs:  make(map[string]Value),
		outputs: make(map[string]Value),
		weights: make(map[weightKey]*dnnl.Memory),
	}
	c.logger = slog.Default().With("computation", c.id.String())
	c.logger.Debug("computation created", "policy", opts.Policy, "bf16", opts.EnableBF16)
	return c
}

// ID returns the identifier used in the computation's log lines.
func (c *Computation) ID() uuid.UUID { return c.id }

// Options returns the options the computation builds with.
func (c *Computation) Options() Options { return c.opts }

// ConfigTargetOptions changes the target options. It must be called before
// any operator is built to take effect on all of them.
func (c *Computation) ConfigTargetOptions(opts TargetOptions) error {
	if c == nil {
		return ErrNilComputation
	}
	if c.destroyed {
		return ErrDestroyed
	}
	c.opts.EnableBF16 = opts.EnableBF16
	return nil
}

// QueueLen returns the number of primitives waiting to execute.
func (c *Computation) QueueLen() int { return len(c.steps) }

// NumValues returns the number of values the computation owns.
func (c *Computation) NumValues() int { return len(c.values) }

// Err returns the first failure of an interpreted execution, if any.
func (c *Computation) Err() error { return c.interpErr }

// Destroy releases the queue, every value, the registries and the weight
// cache. Values issued before Destroy become invalid. Destroy is idempotent.
func (c *Computation) Destroy() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}

	c.logger.Debug("computation destroyed", "values", len(c.values), "queued", len(c.steps))
	c.destroyed = true
	c.gen = nextGeneration()
	c.steps = nil
	c.values = nil
	c.inputs = nil
	c.outputs = nil
	c.weights = nil
	if c.interp != nil {
		c.interp.stream = nil
		c.interp.destroyed = true
		c.interp = nil
	}
}

// lookup returns the slot of v or an error if v does not belong to the live
// computation.
func (c *Computation) lookup(v Value) (*valueSlot, error) {
	if c.destroyed {
		return nil, ErrDestroyed
	}
	if !v.IsValid() || v.gen != c.gen || int(v.index) >= len(c.values) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, v)
	}
	return &c.values[v.index], nil
}

// slot is lookup for builders, which panic on invalid operands.
func (c *Computation) slot(op string, v Value) *valueSlot {
	s, err := c.lookup(v)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	return s
}

func (c *Computation) newValue(mem *dnnl.Memory, shape tensor.Shape, elem tensor.DataType, name string) Value {
	if c.destroyed {
		panic("odla: computation destroyed")
	}
	c.values = append(c.values, valueSlot{
		mem:   mem,
		shape: shape.Clone(),
		elem:  elem,
		name:  name,
	})
	return Value{index: int32(len(c.values) - 1), gen: c.gen}
}

// alloc allocates a computation-owned buffer for desc.
func (c *Computation) alloc(desc dnnl.MemoryDesc) *dnnl.Memory {
	return dnnl.MustMemory(desc, c.eng)
}

// enqueue appends a primitive to the queue.
func (c *Computation) enqueue(p dnnl.Primitive, args dnnl.Args) {
	c.steps = append(c.steps, step{prim: p, args: args})
	c.logger.Log(context.TODO(), logutil.LevelTrace, "enqueue", "kind", p.Kind(), "step", len(c.steps)-1)
}
