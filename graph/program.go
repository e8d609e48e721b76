package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/schemaflow/logging"
	"github.com/hupe1980/schemaflow/schema"
	"github.com/hupe1980/schemaflow/value"
)

// NodeExecutionError attributes a transform failure to the graph node where
// it occurred during Program invocation.
type NodeExecutionError struct {
	Node string
	Err  error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.Node, e.Err)
}

// Unwrap returns the underlying cause.
func (e *NodeExecutionError) Unwrap() error { return e.Err }

// Program is a compiled sub-graph bound to a fixed set of input and output
// symbols. It executes concrete data values through the graph in topological
// order, dispatching nodes without dependency edges between them
// concurrently. A Program itself implements Operation, so compiled programs
// can be traced as nodes inside larger graphs.
type Program struct {
	name    string
	inputs  []*Symbol
	outputs []*Symbol
	layers  [][]*Node
	logger  logging.Logger
}

// ProgramOption customizes compilation.
type ProgramOption func(*Program)

// WithProgramName names the program; defaults to "program".
func WithProgramName(name string) ProgramOption {
	return func(p *Program) { p.name = name }
}

// WithProgramLogger sets the logger used during invocation.
func WithProgramLogger(l logging.Logger) ProgramOption {
	return func(p *Program) { p.logger = l }
}

// Compile builds a Program from the minimal sub-graph connecting inputs to
// outputs. Every output must be reachable from at least one input; an output
// depending on an undeclared graph source is a compile error.
func (t *Trace) Compile(inputs []*Symbol, outputs []*Symbol, opts ...ProgramOption) (*Program, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("compile: at least one input required")
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("compile: at least one output required")
	}
	for i, sym := range append(append([]*Symbol{}, inputs...), outputs...) {
		if sym == nil {
			return nil, fmt.Errorf("compile: nil symbol at position %d", i)
		}
		if sym.node.trace != t {
			return nil, fmt.Errorf("compile: symbol %q belongs to a different trace", sym.Name())
		}
	}

	p := &Program{
		name:    "program",
		inputs:  append([]*Symbol{}, inputs...),
		outputs: append([]*Symbol{}, outputs...),
		logger:  logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrNoOp(p.logger)

	bound := map[*Symbol]bool{}
	for _, sym := range inputs {
		bound[sym] = true
	}

	// Backward resolution from the outputs collects the needed nodes and
	// verifies each output actually depends on a bound input.
	cs := &compileState{
		bound:   bound,
		levels:  map[*Node]int{},
		touched: map[*Node]bool{},
	}
	for _, out := range outputs {
		touched, err := cs.resolve(out)
		if err != nil {
			return nil, err
		}
		if !touched {
			return nil, fmt.Errorf("compile: output %q is not reachable from any program input", out.Name())
		}
	}

	// Group nodes into topological layers; nodes sharing a layer have no
	// dependency path between them.
	maxLevel := 0
	for _, level := range cs.levels {
		if level > maxLevel {
			maxLevel = level
		}
	}
	layers := make([][]*Node, maxLevel)
	for node, level := range cs.levels {
		layers[level-1] = append(layers[level-1], node)
	}
	p.layers = layers

	return p, nil
}

type compileState struct {
	bound    map[*Symbol]bool
	levels   map[*Node]int // topological level of each needed node, 1-based
	touched  map[*Node]bool
	visiting []*Node
}

// resolve walks backwards from sym, recording needed nodes and their
// topological level. It reports whether the closure reached a bound input.
func (cs *compileState) resolve(sym *Symbol) (bool, error) {
	if cs.bound[sym] {
		return true, nil
	}
	node := sym.node
	if node.IsInput() {
		return false, fmt.Errorf("compile: graph source %q is not bound as a program input", sym.Name())
	}
	if _, done := cs.levels[node]; done {
		return cs.touched[node], nil
	}
	for _, v := range cs.visiting {
		if v == node {
			return false, fmt.Errorf("compile: cycle detected at node %q", node.name)
		}
	}
	cs.visiting = append(cs.visiting, node)
	defer func() { cs.visiting = cs.visiting[:len(cs.visiting)-1] }()

	touchedAny := false
	level := 0
	for _, in := range node.inputs {
		touched, err := cs.resolve(in)
		if err != nil {
			return false, err
		}
		if touched {
			touchedAny = true
		}
		depLevel := 0
		if !cs.bound[in] {
			depLevel = cs.levels[in.node]
		}
		if depLevel > level {
			level = depLevel
		}
	}
	cs.levels[node] = level + 1
	cs.touched[node] = touchedAny
	return touchedAny, nil
}

// Name returns the program name.
func (p *Program) Name() string { return p.name }

// InputSchemas returns the declared input schemas in order.
func (p *Program) InputSchemas() []schema.Schema {
	out := make([]schema.Schema, len(p.inputs))
	for i, sym := range p.inputs {
		out[i] = sym.Schema()
	}
	return out
}

// OutputSchemas returns the declared output schemas in order.
func (p *Program) OutputSchemas() []schema.Schema {
	out := make([]schema.Schema, len(p.outputs))
	for i, sym := range p.outputs {
		out[i] = sym.Schema()
	}
	return out
}

// Invoke executes the program on concrete inputs, supplied in the order the
// input symbols were declared at compile time. Nodes in the same topological
// layer run concurrently. On failure the call returns a NodeExecutionError
// naming the failing node; concurrently dispatched siblings run to
// completion but their results are discarded.
func (p *Program) Invoke(ctx context.Context, mode Mode, inputs ...*value.DataValue) ([]*value.DataValue, error) {
	if len(inputs) != len(p.inputs) {
		return nil, fmt.Errorf("program %q expects %d inputs, got %d", p.name, len(p.inputs), len(inputs))
	}

	results := map[*Symbol]*value.DataValue{}
	var mu sync.Mutex
	for i, sym := range p.inputs {
		results[sym] = inputs[i]
	}

	for layerIdx, layer := range p.layers {
		var wg sync.WaitGroup
		errCh := make(chan error, len(layer))

		for _, node := range layer {
			wg.Add(1)
			go func(n *Node) {
				defer wg.Done()

				mu.Lock()
				ins := make([]*value.DataValue, len(n.inputs))
				for i, sym := range n.inputs {
					ins[i] = results[sym]
				}
				mu.Unlock()

				p.logger.Debug("program.node.start", "program", p.name, "node", n.name, "layer", layerIdx)
				outs, err := n.op.Transform(ctx, ins, mode)
				if err != nil {
					errCh <- &NodeExecutionError{Node: n.name, Err: err}
					return
				}
				if len(outs) != len(n.outputs) {
					errCh <- &NodeExecutionError{
						Node: n.name,
						Err:  fmt.Errorf("expected %d outputs, got %d", len(n.outputs), len(outs)),
					}
					return
				}

				mu.Lock()
				for i, sym := range n.outputs {
					results[sym] = outs[i]
				}
				mu.Unlock()
			}(node)
		}

		// Barrier: siblings already dispatched always run to completion.
		wg.Wait()
		close(errCh)
		if err, ok := <-errCh; ok {
			return nil, err
		}
	}

	out := make([]*value.DataValue, len(p.outputs))
	for i, sym := range p.outputs {
		out[i] = results[sym]
	}
	return out, nil
}

// ShapeOf implements Operation; the program's output shapes are fixed at
// compile time.
func (p *Program) ShapeOf(inputs []schema.Schema) ([]schema.Schema, error) {
	if len(inputs) != len(p.inputs) {
		return nil, fmt.Errorf("program %q expects %d inputs, got %d", p.name, len(p.inputs), len(inputs))
	}
	return p.OutputSchemas(), nil
}

// Transform implements Operation by invoking the program, letting compiled
// programs participate as nodes in other traces.
func (p *Program) Transform(ctx context.Context, inputs []*value.DataValue, mode Mode) ([]*value.DataValue, error) {
	return p.Invoke(ctx, mode, inputs...)
}
