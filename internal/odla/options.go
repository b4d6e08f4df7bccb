package odla

import (
	"fmt"

	"github.com/born-ml/odla/internal/envconfig"
)

// Policy selects when queued primitives run.
type Policy int

const (
	// Buffered queues primitives until a Context executes the computation.
	Buffered Policy = iota
	// Interpreted runs and clears the queue after every builder call.
	Interpreted
)

func (p Policy) String() string {
	switch p {
	case Buffered:
		return "buffered"
	case Interpreted:
		return "interpreted"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Options configure a computation at creation.
type Options struct {
	Policy     Policy
	EnableBF16 bool
	NumThreads int // <= 0 means one per CPU
}

// DefaultOptions reads ODLA_INTERPRET, ODLA_BF16 and ODLA_NUM_THREADS.
func DefaultOptions() Options {
	opts := Options{
		EnableBF16: envconfig.BF16(),
		NumThreads: int(envconfig.NumThreads()),
	}
	if envconfig.Interpret() {
		opts.Policy = Interpreted
	}
	return opts
}

// TargetOptions are the options that may still change after creation,
// before any operator is built.
type TargetOptions struct {
	EnableBF16 bool
}

// ComputeMode is accepted by ExecuteComputation for interface parity; only
// inference exists.
type ComputeMode int

// Compute modes.
const (
	ModeDefault ComputeMode = iota
	ModeInference
)

// Device selects where a computation executes.
type Device int

// Devices.
const (
	DeviceDefault Device = iota
	DeviceCPU
)
