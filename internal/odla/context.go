package odla

import (
	"fmt"

	"github.com/born-ml/odla/internal/dnnl"
)

// Context is an execution session on a Computation. It holds its own
// bindings of caller buffers, so several contexts can execute the same
// computation with different inputs and outputs. Its stream is created on
// the first execution and reused afterwards.
type Context struct {
	comp      *Computation
	stream    *dnnl.Stream
	bindings  map[*dnnl.Memory][]byte // guarded by comp.mu
	destroyed bool
}

// NewContext creates a context bound to comp.
func NewContext(comp *Computation) (*Context, error) {
	if comp == nil {
		return nil, ErrNilComputation
	}
	comp.mu.Lock()
	defer comp.mu.Unlock()
	if comp.destroyed {
		return nil, ErrDestroyed
	}
	return &Context{comp: comp, bindings: make(map[*dnnl.Memory][]byte)}, nil
}

// Computation returns the computation the context is bound to.
func (ctx *Context) Computation() *Computation { return ctx.comp }

// HasStream reports whether the context has executed at least once.
func (ctx *Context) HasStream() bool { return ctx.stream != nil }

// Destroy releases the stream and the bindings. The computation is
// unaffected. Destroy is idempotent.
func (ctx *Context) Destroy() {
	if ctx == nil {
		return
	}
	if ctx.comp != nil {
		ctx.comp.mu.Lock()
		defer ctx.comp.mu.Unlock()
	}
	ctx.stream = nil
	ctx.bindings = nil
	ctx.destroyed = true
}

// lock takes the computation's lock after validating ctx and its
// computation. On error the lock is not held.
func (ctx *Context) lock() error {
	if ctx == nil {
		return ErrInvalidContext
	}
	if ctx.comp == nil {
		return ErrNilComputation
	}
	ctx.comp.mu.Lock()
	switch {
	case ctx.destroyed:
		ctx.comp.mu.Unlock()
		return ErrInvalidContext
	case ctx.comp.destroyed:
		ctx.comp.mu.Unlock()
		return ErrDestroyed
	}
	return nil
}

// BindToArgument makes executions through ctx read v from caller memory.
// The caller keeps data alive and unchanged in size until the executions
// that use it have returned.
func (ctx *Context) BindToArgument(v Value, data []byte) error {
	return ctx.bind(v, data, false)
}

// BindToArgumentByID binds the input registered under name.
func (ctx *Context) BindToArgumentByID(name string, data []byte) error {
	return ctx.bindByID(name, data, false)
}

// BindToOutput makes executions through ctx write v into caller memory. A
// constant output is copied into data immediately instead, since constants
// may alias read-only caller memory.
func (ctx *Context) BindToOutput(v Value, data []byte) error {
	return ctx.bind(v, data, true)
}

// BindToOutputByID binds the output registered under name.
func (ctx *Context) BindToOutputByID(name string, data []byte) error {
	return ctx.bindByID(name, data, true)
}

func (ctx *Context) bindByID(name string, data []byte, output bool) error {
	if err := ctx.lock(); err != nil {
		return err
	}
	c := ctx.comp
	registry, kind := c.inputs, "input"
	if output {
		registry, kind = c.outputs, "output"
	}
	v, ok := registry[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s %q", ErrUnknownName, kind, name)
	}
	return ctx.bind(v, data, output)
}

func (ctx *Context) bind(v Value, data []byte, output bool) error {
	if err := ctx.lock(); err != nil {
		return err
	}
	c := ctx.comp
	defer c.mu.Unlock()
	s, err := c.lookup(v)
	if err != nil {
		return err
	}
	if err := fits(s, data); err != nil {
		return err
	}
	if output && s.isConst {
		copy(data, s.mem.DataHandle()[:s.denseDesc().Size()])
		return nil
	}
	ctx.bindings[s.mem] = data
	return nil
}

// attach points every bound memory at the context's buffers and returns a
// function that restores the computation's own buffers. The caller holds
// comp.mu.
func (ctx *Context) attach() (detach func()) {
	saved := make(map[*dnnl.Memory][]byte, len(ctx.bindings))
	for mem, data := range ctx.bindings {
		saved[mem] = mem.DataHandle()
		mem.SetDataHandle(data)
	}
	return func() {
		for mem, data := range saved {
			mem.SetDataHandle(data)
		}
	}
}

func fits(s *valueSlot, data []byte) error {
	if need := s.denseDesc().Size(); len(data) < need {
		return fmt.Errorf("%w: %q needs %d bytes, got %d", ErrBufferTooSmall, s.name, need, len(data))
	}
	return nil
}
