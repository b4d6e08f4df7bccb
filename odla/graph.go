// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package odla

import (
	"github.com/born-ml/odla/internal/graph"
)

// Graph is a parsed JSON graph description.
type Graph = graph.Graph

// Program is a Graph lowered onto a Computation.
type Program = graph.Program

// GraphTensor describes a graph input, initializer or output.
type GraphTensor = graph.Tensor

// LoadGraph reads a JSON graph description from path.
//
// Example:
//
//	g, err := odla.LoadGraph("model.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	comp := odla.NewComputation(odla.Options{})
//	defer comp.Destroy()
//	prog, err := odla.LowerGraph(g, comp)
func LoadGraph(path string) (*Graph, error) {
	return graph.Load(path)
}

// ParseGraph parses a JSON graph description.
func ParseGraph(data []byte) (*Graph, error) {
	return graph.Parse(data)
}

// LowerGraph lowers g onto comp, which must use the Buffered policy.
// Unsupported operators and shapes are reported as errors.
func LowerGraph(g *Graph, comp *Computation) (*Program, error) {
	return graph.Lower(g, comp, nil)
}

// SupportedOps lists the operator types LowerGraph accepts.
func SupportedOps() []string {
	return graph.NewRegistry().SupportedOps()
}
