package odla

import "errors"

// Errors returned by lifecycle, declaration and binding calls. Builders do
// not return errors: a graph the backend cannot express makes them panic.
var (
	ErrNilComputation  = errors.New("odla: no computation")
	ErrDestroyed       = errors.New("odla: computation destroyed")
	ErrInvalidValue    = errors.New("odla: invalid value")
	ErrUnknownName     = errors.New("odla: unknown name")
	ErrBufferTooSmall  = errors.New("odla: buffer too small")
	ErrNotInterpreted  = errors.New("odla: computation is not interpreted")
	ErrInvalidContext  = errors.New("odla: invalid context")
	ErrUnsupportedMode = errors.New("odla: unsupported compute mode or device")
)

// ErrDuplicateName is returned when an input or output name is registered
// twice.
var ErrDuplicateName = errors.New("odla: duplicate name")
