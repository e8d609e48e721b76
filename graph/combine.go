package graph

import (
	"context"
	"fmt"

	"github.com/hupe1980/schemaflow/schema"
	"github.com/hupe1980/schemaflow/value"
)

// combineOp exposes the value algebra as traceable operations so schema
// merging can appear as nodes inside a Program.
type combineOp struct {
	name string
	fn   func(a, b *value.DataValue) (*value.DataValue, error)
}

func (o *combineOp) Name() string { return o.name }

func (o *combineOp) ShapeOf(inputs []schema.Schema) ([]schema.Schema, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("%s expects exactly two inputs, got %d", o.name, len(inputs))
	}
	merged, _, err := schema.Merge(inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	return []schema.Schema{merged}, nil
}

func (o *combineOp) Transform(ctx context.Context, inputs []*value.DataValue, mode Mode) ([]*value.DataValue, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("%s expects exactly two inputs, got %d", o.name, len(inputs))
	}
	out, err := o.fn(inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	return []*value.DataValue{out}, nil
}

// Concat records a concatenation node combining a and b.
func (t *Trace) Concat(a, b *Symbol) (*Symbol, error) {
	return t.Apply1(&combineOp{name: "concat", fn: value.Concat}, a, b)
}

// LogicalAnd records a logical-and node combining a and b.
func (t *Trace) LogicalAnd(a, b *Symbol) (*Symbol, error) {
	return t.Apply1(&combineOp{name: "logical_and", fn: value.LogicalAnd}, a, b)
}

// LogicalOr records a logical-or node combining a and b.
func (t *Trace) LogicalOr(a, b *Symbol) (*Symbol, error) {
	return t.Apply1(&combineOp{name: "logical_or", fn: value.LogicalOr}, a, b)
}
