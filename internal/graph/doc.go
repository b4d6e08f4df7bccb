// Package graph lowers JSON graph descriptions onto an odla Computation.
//
// A graph file lists typed inputs, initializers with inline data, nodes in
// execution order and the names of the outputs. Nodes use ONNX operator
// types and attribute names. The package performs the shape inference the
// builders expect from their caller, then drives one builder call per node.
//
// Example graph:
//
//	{
//	  "name": "tiny",
//	  "layout": "nchw",
//	  "inputs": [{"name": "x", "type": "float32", "shape": [1, 3, 4, 4]}],
//	  "nodes": [
//	    {"op_type": "Relu", "inputs": ["x"], "outputs": ["r"]},
//	    {"op_type": "AveragePool", "inputs": ["r"], "outputs": ["y"],
//	     "attributes": {"kernel_shape": [2, 2], "strides": [2, 2]}}
//	  ],
//	  "outputs": ["y"]
//	}
//
// Builders panic on graphs the backend cannot express; Lower converts those
// panics into errors, since graph files are untrusted input.
package graph
