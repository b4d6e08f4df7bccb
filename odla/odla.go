// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package odla lowers tensor operators onto a pure-Go primitive library.
//
// A Computation records builder calls such as Conv, MaxPool or Gemm as a
// queue of primitives over opaque Value handles. A Context binds caller
// buffers to the named inputs and outputs and executes the queue. In the
// Interpreted policy every builder call runs immediately instead.
//
// # Example Usage
//
//	import (
//	    "github.com/born-ml/odla/odla"
//	    "github.com/born-ml/odla/tensor"
//	)
//
//	comp := odla.NewComputation(odla.DefaultOptions())
//	defer comp.Destroy()
//
//	x, _ := comp.CreateArgument(odla.ValueType{Elem: tensor.Float32, Shape: tensor.Shape{1, 3, 4, 4}}, "x")
//	y := comp.AveragePool(comp.Relu(x, ""), odla.PoolParams{
//	    Window:  [2]int{2, 2},
//	    Strides: [2]int{2, 2},
//	}, tensor.Shape{1, 3, 2, 2}, "y")
//	_ = comp.SetValueAsOutput(y)
//
//	ctx, _ := odla.NewContext(comp)
//	defer ctx.Destroy()
//	_ = ctx.BindToArgumentByID("x", input)
//	_ = ctx.BindToOutputByID("y", output)
//	err := comp.Execute(ctx)
//
// Builders panic when asked for something the backend cannot express, such
// as a dilated convolution. Lifecycle, declaration and binding calls return
// errors instead.
package odla

import (
	internalodla "github.com/born-ml/odla/internal/odla"
)

// Computation records builder calls as a queue of primitives.
type Computation = internalodla.Computation

// Context binds caller buffers to a computation and executes it.
type Context = internalodla.Context

// Session tracks computations and the active one.
type Session = internalodla.Session

// Value is a handle to a tensor owned by a Computation.
type Value = internalodla.Value

// ValueType is the element type and shape of a Value.
type ValueType = internalodla.ValueType

// Options configures a new Computation.
type Options = internalodla.Options

// TargetOptions adjusts an existing Computation.
type TargetOptions = internalodla.TargetOptions

// Policy selects buffered or interpreted execution.
type Policy = internalodla.Policy

// ComputeMode and Device qualify ExecuteComputation.
type (
	ComputeMode = internalodla.ComputeMode
	Device      = internalodla.Device
)

// Operator parameters.
type (
	ConvParams      = internalodla.ConvParams
	PoolParams      = internalodla.PoolParams
	BatchNormParams = internalodla.BatchNormParams
	LRNParams       = internalodla.LRNParams
)

// Execution policies.
const (
	Buffered    = internalodla.Buffered
	Interpreted = internalodla.Interpreted
)

// Compute modes and devices.
const (
	ModeDefault   = internalodla.ModeDefault
	ModeInference = internalodla.ModeInference
	DeviceDefault = internalodla.DeviceDefault
	DeviceCPU     = internalodla.DeviceCPU
)

// Errors returned by lifecycle, declaration and binding calls.
var (
	ErrNilComputation  = internalodla.ErrNilComputation
	ErrDestroyed       = internalodla.ErrDestroyed
	ErrInvalidValue    = internalodla.ErrInvalidValue
	ErrUnknownName     = internalodla.ErrUnknownName
	ErrDuplicateName   = internalodla.ErrDuplicateName
	ErrBufferTooSmall  = internalodla.ErrBufferTooSmall
	ErrNotInterpreted  = internalodla.ErrNotInterpreted
	ErrInvalidContext  = internalodla.ErrInvalidContext
	ErrUnsupportedMode = internalodla.ErrUnsupportedMode
)

// DefaultOptions returns options read from the ODLA_* environment variables.
func DefaultOptions() Options {
	return internalodla.DefaultOptions()
}

// NewComputation creates an empty computation.
func NewComputation(opts Options) *Computation {
	return internalodla.NewComputation(opts)
}

// NewContext creates an execution context for comp.
func NewContext(comp *Computation) (*Context, error) {
	return internalodla.NewContext(comp)
}

// NewSession creates a session with no computations.
func NewSession() *Session {
	return internalodla.NewSession()
}

// ExecuteComputation runs comp on ctx after checking that mode and device
// are supported.
func ExecuteComputation(comp *Computation, ctx *Context, mode ComputeMode, device Device) error {
	return internalodla.ExecuteComputation(comp, ctx, mode, device)
}
