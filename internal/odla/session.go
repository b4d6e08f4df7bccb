package odla

import "slices"

// Session tracks the computations built from one goroutine and which of them
// is active. It replaces process-wide "current computation" state: code that
// wants an implicit target passes a Session around instead.
type Session struct {
	comps  []*Computation
	active *Computation
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// CreateComputation creates a computation, records it and makes it active.
func (s *Session) CreateComputation(opts Options) *Computation {
	c := NewComputation(opts)
	s.comps = append(s.comps, c)
	s.active = c
	return c
}

// SetActiveComputation switches the active computation.
func (s *Session) SetActiveComputation(c *Computation) error {
	if c == nil {
		return ErrNilComputation
	}
	s.active = c
	return nil
}

// Active returns the active computation, or nil.
func (s *Session) Active() *Computation {
	return s.active
}

// Computations returns the live computations in creation order.
func (s *Session) Computations() []*Computation {
	return slices.Clone(s.comps)
}

// DestroyComputation destroys c and forgets it. Destroying the active
// computation leaves the session without one.
func (s *Session) DestroyComputation(c *Computation) error {
	if c == nil {
		return ErrNilComputation
	}
	c.Destroy()
	s.comps = slices.DeleteFunc(s.comps, func(o *Computation) bool { return o == c })
	if s.active == c {
		s.active = nil
	}
	return nil
}

// CreateContext creates a context bound to the active computation.
func (s *Session) CreateContext() (*Context, error) {
	return NewContext(s.active)
}

// Close destroys every computation of the session.
func (s *Session) Close() {
	for _, c := range s.comps {
		c.Destroy()
	}
	s.comps = nil
	s.active = nil
}
