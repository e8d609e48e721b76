package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/schemaflow/schema"
)

func sumParameters() schema.Schema {
	return schema.Schema{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required":             []string{"a", "b"},
		"additionalProperties": false,
	}
}

func newSumTool() *FunctionTool {
	return NewFunctionTool("calculate_sum", "Calculate the sum of two numbers", sumParameters(),
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"sum": args["a"].(float64) + args["b"].(float64)}, nil
		},
	)
}

func TestFunctionTool_Call(t *testing.T) {
	result, err := newSumTool().Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result["sum"])
}

func TestFunctionTool_ValidationError(t *testing.T) {
	_, err := newSumTool().Call(context.Background(), map[string]any{"a": "two"})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "calculate_sum", toolErr.Tool)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	cause := errors.New("service unavailable")
	failing := NewFunctionTool("lookup", "Look something up", schema.Object(),
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, cause
		},
	)

	_, err := failing.Call(context.Background(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.ErrorIs(t, err, cause)
}

func TestFunctionTool_CustomToolErrorPassedThrough(t *testing.T) {
	custom := NewToolError("lookup", "rate limited", "RATE_LIMITED")
	failing := NewFunctionTool("lookup", "Look something up", schema.Object(),
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, custom
		},
	)

	_, err := failing.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "RATE_LIMITED", toolErr.Code)
}

func TestFunctionTool_FromStruct(t *testing.T) {
	type SumArgs struct {
		A float64 `json:"a" description:"First addend"`
		B float64 `json:"b" description:"Second addend"`
	}
	tool := NewFunctionToolFromStruct("calculate_sum", "Calculate the sum of two numbers", SumArgs{},
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"sum": args["a"].(float64) + args["b"].(float64)}, nil
		},
	)

	params := tool.Parameters()
	assert.Equal(t, []string{"a", "b"}, params.PropertyNames())
	assert.Equal(t, []string{"a", "b"}, params.Required())

	result, err := tool.Call(context.Background(), map[string]any{"a": 1.0, "b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 3.0, result["sum"])
}

func TestNewToolkit(t *testing.T) {
	weather := NewFunctionTool("get_weather", "Get the weather", schema.Object(), nil)
	events := NewFunctionTool("find_events", "Find events", schema.Object(), nil)

	tk, err := NewToolkit(weather, events)
	require.NoError(t, err)
	assert.Equal(t, 2, tk.Len())
	assert.Equal(t, []string{"get_weather", "find_events"}, tk.Labels())

	got, ok := tk.Get("get_weather")
	require.True(t, ok)
	assert.Equal(t, "get_weather", got.Name())

	_, ok = tk.Get("missing")
	assert.False(t, ok)
}

func TestNewToolkit_Validation(t *testing.T) {
	_, err := NewToolkit()
	assert.Error(t, err)

	_, err = NewToolkit(nil)
	assert.Error(t, err)

	unnamed := NewFunctionTool("", "No name", schema.Object(), nil)
	_, err = NewToolkit(unnamed)
	assert.Error(t, err)

	dup := NewFunctionTool("get_weather", "Get the weather", schema.Object(), nil)
	_, err = NewToolkit(dup, dup)
	assert.Error(t, err)
}
