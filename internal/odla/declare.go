package odla

import (
	"fmt"
	"maps"

	"github.com/born-ml/odla/internal/dnnl"
	"github.com/born-ml/odla/internal/tensor"
)

func (c *Computation) checkLive() error {
	if c == nil {
		return ErrNilComputation
	}
	if c.destroyed {
		return ErrDestroyed
	}
	return nil
}

func checkType(typ ValueType) error {
	switch typ.Elem {
	case tensor.Float32, tensor.Float16, tensor.BFloat16, tensor.Int32, tensor.Int64:
	default:
		return fmt.Errorf("%w: element type %s", ErrInvalidValue, typ.Elem)
	}
	if err := typ.Shape.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}

// CreateArgument declares a named input with a freshly allocated buffer. The
// buffer is used until BindToArgument points the input at caller memory.
func (c *Computation) CreateArgument(typ ValueType, name string) (Value, error) {
	if err := c.checkLive(); err != nil {
		return Value{}, err
	}
	if err := checkType(typ); err != nil {
		return Value{}, err
	}
	if name == "" {
		return Value{}, fmt.Errorf("%w: argument without a name", ErrInvalidValue)
	}
	if _, ok := c.inputs[name]; ok {
		return Value{}, fmt.Errorf("%w: input %q", ErrDuplicateName, name)
	}
	v := c.newValue(c.alloc(denseDesc(typ.Shape, typ.Elem)), typ.Shape, typ.Elem, name)
	c.inputs[name] = v
	c.logger.Debug("argument declared", "name", name, "type", typ, "value", v)
	return v, nil
}

// CreateConstant declares a value backed by caller-owned data. The data must
// stay alive and unchanged for the lifetime of the computation.
func (c *Computation) CreateConstant(typ ValueType, data []byte, name string) (Value, error) {
	if err := c.checkLive(); err != nil {
		return Value{}, err
	}
	if err := checkType(typ); err != nil {
		return Value{}, err
	}
	desc := denseDesc(typ.Shape, typ.Elem)
	if len(data) < desc.Size() {
		return Value{}, fmt.Errorf("%w: constant %q needs %d bytes, got %d", ErrBufferTooSmall, name, desc.Size(), len(data))
	}
	v := c.newValue(dnnl.NewMemoryWithHandle(desc, c.eng, data), typ.Shape, typ.Elem, name)
	c.values[v.index].isConst = true
	return v, nil
}

// CreateValue allocates a value whose data is set with SetValueData. Only
// interpreted computations accept it, since their builders run immediately.
func (c *Computation) CreateValue(typ ValueType, name string) (Value, error) {
	if err := c.checkLive(); err != nil {
		return Value{}, err
	}
	if c.opts.Policy != Interpreted {
		return Value{}, ErrNotInterpreted
	}
	if err := checkType(typ); err != nil {
		return Value{}, err
	}
	return c.newValue(c.alloc(denseDesc(typ.Shape, typ.Elem)), typ.Shape, typ.Elem, name), nil
}

// SetValueData copies data into the buffer of v.
func (c *Computation) SetValueData(v Value, data []byte) error {
	if err := c.checkLive(); err != nil {
		return err
	}
	s, err := c.lookup(v)
	if err != nil {
		return err
	}
	if s.isConst {
		return fmt.Errorf("%w: %s is a constant", ErrInvalidValue, v)
	}
	need := s.denseDesc().Size()
	if len(data) < need {
		return fmt.Errorf("%w: %q needs %d bytes, got %d", ErrBufferTooSmall, s.name, need, len(data))
	}
	copy(s.mem.DataHandle()[:need], data)
	return nil
}

// GetValueData copies the buffer of v into data.
func (c *Computation) GetValueData(v Value, data []byte) error {
	if err := c.checkLive(); err != nil {
		return err
	}
	s, err := c.lookup(v)
	if err != nil {
		return err
	}
	if err := fits(s, data); err != nil {
		return err
	}
	copy(data, s.mem.DataHandle()[:s.denseDesc().Size()])
	return nil
}

// SetValueAsOutput registers v as an output under its own name.
func (c *Computation) SetValueAsOutput(v Value) error {
	if err := c.checkLive(); err != nil {
		return err
	}
	s, err := c.lookup(v)
	if err != nil {
		return err
	}
	if s.name == "" {
		return fmt.Errorf("%w: output %s has no name", ErrInvalidValue, v)
	}
	if prev, ok := c.outputs[s.name]; ok && prev != v {
		return fmt.Errorf("%w: output %q", ErrDuplicateName, s.name)
	}
	c.outputs[s.name] = v
	return nil
}

// GetValueType returns the declared element type and shape of v.
func (c *Computation) GetValueType(v Value) (ValueType, error) {
	if err := c.checkLive(); err != nil {
		return ValueType{}, err
	}
	s, err := c.lookup(v)
	if err != nil {
		return ValueType{}, err
	}
	return ValueType{Elem: s.elem, Shape: s.shape.Clone()}, nil
}

// ValueName returns the name v was created with.
func (c *Computation) ValueName(v Value) (string, error) {
	s, err := c.lookup(v)
	if err != nil {
		return "", err
	}
	return s.name, nil
}

// Inputs returns the declared inputs by name.
func (c *Computation) Inputs() map[string]Value {
	return maps.Clone(c.inputs)
}

// Outputs returns the registered outputs by name.
func (c *Computation) Outputs() map[string]Value {
	return maps.Clone(c.outputs)
}
