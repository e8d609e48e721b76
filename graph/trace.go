package graph

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/schemaflow/logging"
	"github.com/hupe1980/schemaflow/schema"
	"github.com/hupe1980/schemaflow/value"
)

// Node records a single traced operation invocation: which operation ran,
// which symbols it consumed and which symbols it produced. Input declarations
// are nodes with a nil operation.
type Node struct {
	id      string
	name    string
	op      Operation
	inputs  []*Symbol
	outputs []*Symbol
	trace   *Trace
	order   int
}

// ID returns the node's unique identifier.
func (n *Node) ID() string { return n.id }

// Name returns the node's deterministic name within its trace.
func (n *Node) Name() string { return n.name }

// Op returns the recorded operation, or nil for input nodes.
func (n *Node) Op() Operation { return n.op }

// IsInput reports whether this node is a graph source.
func (n *Node) IsInput() bool { return n.op == nil }

// Symbol is a symbolic value bound to the node (and output slot) that
// produces it. Symbols are the handles users thread through Apply calls and
// hand to Compile.
type Symbol struct {
	value *value.SymbolicValue
	node  *Node
	index int
}

// Value returns the underlying symbolic value.
func (s *Symbol) Value() *value.SymbolicValue { return s.value }

// Name returns the symbol's name.
func (s *Symbol) Name() string { return s.value.Name() }

// Schema returns a copy of the symbol's schema.
func (s *Symbol) Schema() schema.Schema { return s.value.Schema() }

// Trace is the context in which a graph is recorded. Applying an operation
// through a Trace does not execute it; the trace computes the output shapes
// via ShapeOf, allocates fresh symbols and records a node. The graph is
// acyclic by construction: a node's inputs always reference symbols created
// strictly earlier.
type Trace struct {
	id     string
	namer  *Namer
	logger logging.Logger

	mu    sync.Mutex
	nodes []*Node
}

// TraceOption customizes a Trace.
type TraceOption func(*Trace)

// WithTraceLogger sets the logger used during tracing and compilation.
func WithTraceLogger(l logging.Logger) TraceOption {
	return func(t *Trace) { t.logger = l }
}

// WithNamer substitutes the naming scope, e.g. to share deterministic names
// across traces in tests.
func WithNamer(n *Namer) TraceOption {
	return func(t *Trace) { t.namer = n }
}

// NewTrace creates an empty trace with its own naming scope.
func NewTrace(opts ...TraceOption) *Trace {
	t := &Trace{
		id:     uuid.NewString(),
		namer:  NewNamer(),
		logger: logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.OrNoOp(t.logger)
	return t
}

// ID returns the trace's unique identifier.
func (t *Trace) ID() string { return t.id }

// Input declares a root symbolic value and registers it as a graph source.
func (t *Trace) Input(name string, s schema.Schema) *Symbol {
	t.mu.Lock()
	defer t.mu.Unlock()

	nodeName := t.namer.Name(name)
	node := &Node{
		id:    uuid.NewString(),
		name:  nodeName,
		trace: t,
		order: len(t.nodes),
	}
	sym := &Symbol{
		value: value.NewSymbolic(nodeName, s),
		node:  node,
	}
	node.outputs = []*Symbol{sym}
	t.nodes = append(t.nodes, node)

	t.logger.Debug("trace.input", "trace", t.id, "node", nodeName)
	return sym
}

// Apply records an invocation of op on the given input symbols and returns
// the symbols for its outputs. The transform is not executed; op.ShapeOf
// determines the output schemas.
func (t *Trace) Apply(op Operation, inputs ...*Symbol) ([]*Symbol, error) {
	if op == nil {
		return nil, fmt.Errorf("apply: nil operation")
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("apply %q: at least one input required", op.Name())
	}
	inputSchemas := make([]schema.Schema, len(inputs))
	for i, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("apply %q: nil input symbol at position %d", op.Name(), i)
		}
		if in.node.trace != t {
			return nil, fmt.Errorf("apply %q: input %q belongs to a different trace", op.Name(), in.Name())
		}
		inputSchemas[i] = in.value.Schema()
	}

	shapes, err := op.ShapeOf(inputSchemas)
	if err != nil {
		return nil, fmt.Errorf("shape inference for %q: %w", op.Name(), err)
	}
	if len(shapes) == 0 {
		return nil, fmt.Errorf("apply %q: operation declared no outputs", op.Name())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	nodeName := t.namer.Name(op.Name())
	node := &Node{
		id:     uuid.NewString(),
		name:   nodeName,
		op:     op,
		inputs: inputs,
		trace:  t,
		order:  len(t.nodes),
	}
	outputs := make([]*Symbol, len(shapes))
	for i, shape := range shapes {
		outName := nodeName
		if len(shapes) > 1 {
			outName = fmt.Sprintf("%s_out%d", nodeName, i)
		}
		outputs[i] = &Symbol{
			value: value.NewSymbolic(outName, shape),
			node:  node,
			index: i,
		}
	}
	node.outputs = outputs
	t.nodes = append(t.nodes, node)

	t.logger.Debug("trace.apply", "trace", t.id, "node", nodeName, "inputs", len(inputs), "outputs", len(outputs))
	return outputs, nil
}

// Apply1 is Apply for the common single-output case.
func (t *Trace) Apply1(op Operation, inputs ...*Symbol) (*Symbol, error) {
	outs, err := t.Apply(op, inputs...)
	if err != nil {
		return nil, err
	}
	if len(outs) != 1 {
		return nil, fmt.Errorf("apply %q: expected a single output, got %d", op.Name(), len(outs))
	}
	return outs[0], nil
}

// Nodes returns the recorded nodes in trace order.
func (t *Trace) Nodes() []*Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}
