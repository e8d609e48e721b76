// Package schemaflow orchestrates multi-step, language-model-driven
// computations expressed as directed acyclic graphs whose edges carry
// schema-typed JSON values instead of tensors.
//
// The engine is layered bottom-up:
//
//   - value / schema: immutable schema-typed values and the algebra
//     (Concat, LogicalAnd, LogicalOr) combining them
//   - graph: explicit symbolic tracing of operations into a DAG, compiled
//     into Programs that execute independent branches concurrently
//   - module: the traceable building blocks (Generator, Decision, Action)
//     driven by a structured-output model backend
//   - agent: a bounded ReAct-style decide/dispatch/merge loop selecting and
//     running tools in parallel, with tool selection constrained
//     structurally via a dynamic enum schema
//
// A minimal traced program:
//
//	trace := graph.NewTrace()
//	query := trace.Input("query", schema.FromStruct(Query{}))
//	answer, _ := trace.Apply1(gen, query)
//	program, _ := trace.Compile([]*graph.Symbol{query}, []*graph.Symbol{answer})
//	outputs, _ := program.Invoke(ctx, graph.ModeInference, queryValue)
//
// See the examples directory for complete runnable programs.
package schemaflow

// Version is the current schemaflow release.
const Version = "0.1.0"
