// Package graph implements symbolic tracing of operations into a directed
// acyclic graph and the compilation of traced sub-graphs into invocable
// Programs. Tracing is explicit: operations are applied through a Trace
// context, which records nodes instead of executing transforms. Programs
// execute concrete data values through the recorded graph, running
// independent nodes concurrently.
package graph

import (
	"context"

	"github.com/hupe1980/schemaflow/schema"
	"github.com/hupe1980/schemaflow/value"
)

// Mode distinguishes training from inference execution. It is threaded
// through every transform; the engine itself treats it as opaque.
type Mode int

const (
	// ModeInference is the default execution mode.
	ModeInference Mode = iota
	// ModeTraining marks execution driven by an external training loop.
	ModeTraining
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeTraining {
		return "training"
	}
	return "inference"
}

// Operation is a named unit of transformation from input values to output
// values.
//
// During tracing only ShapeOf is consulted; it must be side-effect free and
// derive the output schemas from the input schemas alone. Transform performs
// the actual work when a Program executes the node with concrete data.
type Operation interface {
	// Name identifies the operation; node names are derived from it.
	Name() string

	// ShapeOf infers the output schemas for the given input schemas without
	// executing anything.
	ShapeOf(inputs []schema.Schema) ([]schema.Schema, error)

	// Transform executes the operation on concrete values. Implementations
	// must honor ctx cancellation on any blocking call.
	Transform(ctx context.Context, inputs []*value.DataValue, mode Mode) ([]*value.DataValue, error)
}
