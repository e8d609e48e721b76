package tool

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/schemaflow/logging"
	"github.com/hupe1980/schemaflow/schema"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// Tool.
//
// Responsibilities:
//   - Holds the JSON Schema describing accepted arguments
//   - Validates supplied arguments against that schema before execution
//   - Normalizes error handling so callers receive *ToolError with
//     consistent codes:
//     VALIDATION_ERROR -> schema / argument mismatch
//     EXECUTION_ERROR  -> underlying function returned an error
//     (custom codes preserved if the function returns *ToolError directly)
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  schema.Schema
	fn          func(ctx context.Context, args map[string]any) (map[string]any, error)
	logger      logging.Logger
}

// FunctionToolOption customizes a FunctionTool.
type FunctionToolOption func(*FunctionTool)

// WithFunctionToolLogger sets the logger used around calls.
func WithFunctionToolLogger(l logging.Logger) FunctionToolOption {
	return func(t *FunctionTool) { t.logger = l }
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and
// function.
//
// Example:
//
//	sumTool := tool.NewFunctionTool(
//		"calculate_sum",
//		"Calculate the sum of two numbers",
//		schema.Schema{
//			"type": "object",
//			"properties": map[string]any{
//				"a": map[string]any{"type": "number"},
//				"b": map[string]any{"type": "number"},
//			},
//			"required": []string{"a", "b"},
//		},
//		func(ctx context.Context, args map[string]any) (map[string]any, error) {
//			return map[string]any{"sum": args["a"].(float64) + args["b"].(float64)}, nil
//		},
//	)
func NewFunctionTool(
	name, description string,
	parameters schema.Schema,
	fn func(ctx context.Context, args map[string]any) (map[string]any, error),
	opts ...FunctionToolOption,
) *FunctionTool {
	t := &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		logger:      logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.OrNoOp(t.logger)
	return t
}

// NewFunctionToolFromStruct derives the parameter schema from a struct via
// reflection; a convenience for simple argument containers.
//
// Example:
//
//	type SumArgs struct {
//		A float64 `json:"a" description:"First addend"`
//		B float64 `json:"b" description:"Second addend"`
//	}
//	sumTool := tool.NewFunctionToolFromStruct("calculate_sum", "Calculate the sum of two numbers", SumArgs{}, fn)
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (map[string]any, error),
	opts ...FunctionToolOption,
) *FunctionTool {
	return NewFunctionTool(name, description, schema.FromStruct(structType), fn, opts...)
}

// Name returns the unique tool name used in decisions and dispatch.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() schema.Schema { return t.parameters }

// Call validates args against the declared schema then invokes the wrapped
// function. Failures are wrapped (or passed through) as *ToolError.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	start := time.Now()
	t.logger.Debug("tool.call.start", "tool", t.name)

	if err := schema.Validate(t.parameters, args); err != nil {
		t.logger.Warn("tool.call.invalid_args", "tool", t.name, "error", err)
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: "VALIDATION_ERROR", Err: err}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		t.logger.Warn("tool.call.failed", "tool", t.name, "error", err)
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: "EXECUTION_ERROR", Err: err}
	}

	t.logger.Debug("tool.call.done", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
