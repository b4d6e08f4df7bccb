package dnnl

import (
	"errors"
	"fmt"

	"github.com/born-ml/odla/internal/parallel"
)

// ErrBufferTooSmall is returned when a bound buffer cannot back its descriptor.
var ErrBufferTooSmall = errors.New("buffer too small")

// EngineKind is the device class an engine runs on.
type EngineKind int

// Supported engine kinds.
const (
	CPU EngineKind = iota
)

func (k EngineKind) String() string {
	if k == CPU {
		return "cpu"
	}
	return "unknown"
}

// Engine owns the execution resources primitives are created for.
type Engine struct {
	kind  EngineKind
	index int
	par   parallel.Config
}

// NewEngine creates an engine. The parallel config bounds kernel fan-out.
func NewEngine(kind EngineKind, index int, par parallel.Config) *Engine {
	return &Engine{kind: kind, index: index, par: par}
}

// Kind returns the engine kind.
func (e *Engine) Kind() EngineKind {
	return e.kind
}

// Index returns the device index of the engine.
func (e *Engine) Index() int {
	return e.index
}

// Memory is a buffer interpreted through a descriptor.
type Memory struct {
	desc MemoryDesc
	data []byte
}

// NewMemory allocates a zeroed buffer large enough for desc.
func NewMemory(desc MemoryDesc, _ *Engine) (*Memory, error) {
	if desc.IsAny() {
		return nil, fmt.Errorf("cannot allocate memory for format_any descriptor %s", desc)
	}
	return &Memory{desc: desc, data: make([]byte, desc.Size())}, nil
}

// MustMemory is NewMemory for descriptors known to be concrete.
func MustMemory(desc MemoryDesc, eng *Engine) *Memory {
	m, err := NewMemory(desc, eng)
	if err != nil {
		panic(fmt.Sprintf("dnnl: %v", err))
	}
	return m
}

// NewMemoryWithHandle wraps caller-owned bytes without copying. data may be
// nil for a memory that is only bound later.
func NewMemoryWithHandle(desc MemoryDesc, _ *Engine, data []byte) *Memory {
	return &Memory{desc: desc, data: data}
}

// Desc returns the descriptor the memory was created with.
func (m *Memory) Desc() MemoryDesc {
	return m.desc
}

// DataHandle returns the current backing bytes.
func (m *Memory) DataHandle() []byte {
	return m.data
}

// SetDataHandle points the memory at data. Later executions read and write it.
func (m *Memory) SetDataHandle(data []byte) {
	m.data = data
}

// Kind identifies a primitive type in logs and errors.
type Kind string

// Primitive kinds.
const (
	KindReorder       Kind = "reorder"
	KindBinary        Kind = "binary"
	KindEltwise       Kind = "eltwise"
	KindConvolution   Kind = "convolution"
	KindDeconvolution Kind = "deconvolution"
	KindPooling       Kind = "pooling"
	KindBatchNorm     Kind = "batch_normalization"
	KindLRN           Kind = "lrn"
	KindSoftmax       Kind = "softmax"
	KindMatmul        Kind = "matmul"
	KindConcat        Kind = "concat"
)

// Primitive is an executable operation bound to fixed descriptors.
type Primitive interface {
	Kind() Kind
	execute(par parallel.Config, args Args) error
}

// Stream executes primitives in submission order.
//
// Execution is synchronous per primitive; the stream keeps the first failure
// and skips everything submitted after it until Wait reports it.
type Stream struct {
	eng      *Engine
	err      error
	executed int
}

// NewStream creates a stream on eng.
func NewStream(eng *Engine) *Stream {
	return &Stream{eng: eng}
}

// Engine returns the engine the stream was created on.
func (s *Stream) Engine() *Engine {
	return s.eng
}

// Execute runs p with args on the stream.
func (s *Stream) Execute(p Primitive, args Args) {
	if s.err != nil {
		return
	}
	if err := p.execute(s.eng.par, args); err != nil {
		s.err = fmt.Errorf("%s: %w", p.Kind(), err)
		return
	}
	s.executed++
}

// Wait blocks until submitted work has drained and returns the first error,
// clearing it so the stream can be reused.
func (s *Stream) Wait() error {
	err := s.err
	s.err = nil
	return err
}

// Executed returns the number of primitives that completed on the stream.
func (s *Stream) Executed() int {
	return s.executed
}
