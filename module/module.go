// Package module provides the stateful building blocks traced into graphs:
// Generator (structured model call), Decision (enum-constrained choice) and
// Action (model-inferred tool invocation). Variants are composed from a
// shared Base holding transform and shape capabilities rather than layered
// through inheritance.
package module

import (
	"context"
	"fmt"

	"github.com/hupe1980/schemaflow/graph"
	"github.com/hupe1980/schemaflow/logging"
	"github.com/hupe1980/schemaflow/saving"
	"github.com/hupe1980/schemaflow/schema"
	"github.com/hupe1980/schemaflow/value"
)

// Module is the public contract shared by all module variants. Every module
// is a graph.Operation, so it can be traced into a Program, and additionally
// carries a description and a serializable configuration.
type Module interface {
	graph.Operation

	// Description returns a human-readable description of the module.
	Description() string

	// Config returns the module's serializable configuration. Rebuilding a
	// module from its config is delegated to a saving.Registry.
	Config() (saving.Config, error)
}

// TransformFunc is the single-value transform capability of a module.
type TransformFunc func(ctx context.Context, input *value.DataValue, mode graph.Mode) (*value.DataValue, error)

// ShapeFunc infers a module's output schema from its input schema without
// side effects.
type ShapeFunc func(input schema.Schema) (schema.Schema, error)

// Base adapts single-input single-output module capabilities to the
// slice-based graph.Operation contract. Module variants embed it and supply
// their capabilities at construction.
type Base struct {
	name        string
	description string
	logger      logging.Logger
	transform   TransformFunc
	shapeOf     ShapeFunc
}

// NewBase constructs a Base from a name and the two capabilities.
func NewBase(name string, transform TransformFunc, shapeOf ShapeFunc) Base {
	return Base{
		name:      name,
		transform: transform,
		shapeOf:   shapeOf,
		logger:    logging.NoOpLogger{},
	}
}

// Name returns the module name.
func (b *Base) Name() string { return b.name }

// Description returns the module description.
func (b *Base) Description() string { return b.description }

// SetDescription sets the module description.
func (b *Base) SetDescription(d string) { b.description = d }

// SetLogger sets the module logger; nil falls back to NoOp.
func (b *Base) SetLogger(l logging.Logger) { b.logger = logging.OrNoOp(l) }

// Logger returns the module logger.
func (b *Base) Logger() logging.Logger { return b.logger }

// ShapeOf implements graph.Operation for single-input modules.
func (b *Base) ShapeOf(inputs []schema.Schema) ([]schema.Schema, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("module %q expects exactly one input, got %d", b.name, len(inputs))
	}
	out, err := b.shapeOf(inputs[0])
	if err != nil {
		return nil, err
	}
	return []schema.Schema{out}, nil
}

// Transform implements graph.Operation for single-input modules.
func (b *Base) Transform(ctx context.Context, inputs []*value.DataValue, mode graph.Mode) ([]*value.DataValue, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("module %q expects exactly one input, got %d", b.name, len(inputs))
	}
	out, err := b.transform(ctx, inputs[0], mode)
	if err != nil {
		return nil, err
	}
	return []*value.DataValue{out}, nil
}

// TransformValue runs the module on a single value, the common case outside
// of traced graphs.
func (b *Base) TransformValue(ctx context.Context, input *value.DataValue, mode graph.Mode) (*value.DataValue, error) {
	return b.transform(ctx, input, mode)
}
