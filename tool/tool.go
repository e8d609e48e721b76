// Package tool implements the external action subsystem: named callables the
// agent loop can dispatch, with schema validated arguments and consistent
// error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/schemaflow/schema"
)

// Tool is an external callable identified by a unique name. It accepts a
// JSON object and returns a JSON object, or fails with an error; the engine
// treats the implementation as opaque.
//
// Implementations should:
//   - Provide clear, descriptive names (snake_case recommended) and
//     descriptions, both shown to the model
//   - Define a proper JSON schema for parameters
//   - Be safe for concurrent use; the agent loop dispatches tools in parallel
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool
	// does, provided to the model to guide selection.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() schema.Schema

	// Call executes the tool. Arguments have been validated against the
	// tool's parameter schema before dispatch.
	Call(ctx context.Context, args map[string]any) (map[string]any, error)
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Err     error  `json:"-"`                 // Underlying cause, if any
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
