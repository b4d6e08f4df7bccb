package odla

import (
	"fmt"

	"github.com/born-ml/odla/internal/dnnl"
)

// Execute runs every queued primitive in order on ctx's stream and waits for
// them. The queue is kept, so a buffered computation can be executed again
// after rebinding its inputs.
func (c *Computation) Execute(ctx *Context) error {
	if c == nil {
		return ErrNilComputation
	}
	if ctx == nil {
		return ErrInvalidContext
	}
	if ctx.comp != c {
		return fmt.Errorf("%w: context belongs to another computation", ErrInvalidContext)
	}
	if err := ctx.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	return c.run(ctx)
}

// ExecuteComputation is Execute with the mode and device selectors of the
// flat interface. Only inference on the CPU exists.
func ExecuteComputation(c *Computation, ctx *Context, mode ComputeMode, device Device) error {
	if mode != ModeDefault && mode != ModeInference {
		return fmt.Errorf("%w: mode %d", ErrUnsupportedMode, mode)
	}
	if device != DeviceDefault && device != DeviceCPU {
		return fmt.Errorf("%w: device %d", ErrUnsupportedMode, device)
	}
	return c.Execute(ctx)
}

// run points the bound memories at ctx's buffers, walks the queue and
// restores the computation's own buffers. The caller holds c.mu.
func (c *Computation) run(ctx *Context) error {
	if ctx.stream == nil {
		ctx.stream = dnnl.NewStream(c.eng)
	}
	detach := ctx.attach()
	defer detach()
	for _, s := range c.steps {
		ctx.stream.Execute(s.prim, s.args)
	}
	if err := ctx.stream.Wait(); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	return nil
}

// interpretIfNeeded drains the queue when the computation is interpreted.
// Builders call it last.
func (c *Computation) interpretIfNeeded() {
	if c.opts.Policy != Interpreted || len(c.steps) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interp == nil {
		c.interp = &Context{comp: c}
	}
	if err := c.run(c.interp); err != nil && c.interpErr == nil {
		c.interpErr = err
		c.logger.Error("interpreted execution failed", "error", err)
	}
	c.steps = c.steps[:0]
}
