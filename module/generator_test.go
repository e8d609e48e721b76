package module

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/schemaflow/graph"
	"github.com/hupe1980/schemaflow/model"
	"github.com/hupe1980/schemaflow/schema"
	"github.com/hupe1980/schemaflow/value"
)

func answerSchema() schema.Schema {
	return schema.Schema{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{"type": "string"},
		},
		"required":             []string{"answer"},
		"additionalProperties": false,
	}
}

func queryValue(t *testing.T, query string) *value.DataValue {
	t.Helper()
	v, err := value.NewData(schema.Schema{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
		"required": []string{"query"},
	}, map[string]any{"query": query})
	require.NoError(t, err)
	return v
}

func TestGenerator_Transform(t *testing.T) {
	mock := model.NewMockModel().Enqueue(`{"answer":"Paris"}`)
	gen, err := NewGenerator("qa", mock, answerSchema(),
		WithInstructions("Answer factual questions concisely."),
	)
	require.NoError(t, err)

	out, err := gen.TransformValue(context.Background(), queryValue(t, "Capital of France?"), graph.ModeInference)
	require.NoError(t, err)
	assert.Equal(t, "Paris", out.Get("answer").String())
	assert.Equal(t, []string{"answer"}, out.Schema().PropertyNames())

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, `"query":"Capital of France?"`)
	assert.Contains(t, calls[0].Instructions, "Answer factual questions concisely.")
	assert.Equal(t, []string{"answer"}, calls[0].Schema.PropertyNames())
}

func TestGenerator_ExamplesRenderedBeforeInput(t *testing.T) {
	mock := model.NewMockModel().Enqueue(`{"answer":"4"}`)
	gen, err := NewGenerator("qa", mock, answerSchema(),
		WithExamples(Example{
			Input:  map[string]any{"query": "1+1?"},
			Output: map[string]any{"answer": "2"},
		}),
	)
	require.NoError(t, err)

	_, err = gen.TransformValue(context.Background(), queryValue(t, "2+2?"), graph.ModeInference)
	require.NoError(t, err)

	prompt := mock.Calls()[0].Prompt
	assert.Contains(t, prompt, `Example input: {"query":"1+1?"}`)
	assert.Contains(t, prompt, `Example output: {"answer":"2"}`)
	assert.Less(t, strings.Index(prompt, "Example input"), strings.Index(prompt, `Input: {"query":"2+2?"}`))
}

func TestGenerator_SchemaHints(t *testing.T) {
	mock := model.NewMockModel().Enqueue(`{"answer":"x"}`)
	gen, err := NewGenerator("qa", mock, answerSchema(), WithInputsSchema(), WithOutputsSchema())
	require.NoError(t, err)

	_, err = gen.TransformValue(context.Background(), queryValue(t, "q"), graph.ModeInference)
	require.NoError(t, err)

	instructions := mock.Calls()[0].Instructions
	assert.Contains(t, instructions, "Input schema:")
	assert.Contains(t, instructions, "Output schema:")
}

func TestGenerator_PropagatesModelError(t *testing.T) {
	boom := errors.New("rate limited")
	mock := model.NewMockModel()
	mock.SetHandler(func(ctx context.Context, req model.Request) (json.RawMessage, error) {
		return nil, boom
	})
	gen, err := NewGenerator("qa", mock, answerSchema())
	require.NoError(t, err)

	_, err = gen.TransformValue(context.Background(), queryValue(t, "q"), graph.ModeInference)
	assert.ErrorIs(t, err, boom)
}

func TestGenerator_ConstructorValidation(t *testing.T) {
	_, err := NewGenerator("qa", nil, answerSchema())
	assert.Error(t, err)

	_, err = NewGenerator("qa", model.NewMockModel(), nil)
	assert.Error(t, err)
}

func TestGenerator_AbsentInputRejected(t *testing.T) {
	gen, err := NewGenerator("qa", model.NewMockModel(), answerSchema())
	require.NoError(t, err)

	_, err = gen.TransformValue(context.Background(), nil, graph.ModeInference)
	assert.Error(t, err)
}

func TestGenerator_TracesIntoProgram(t *testing.T) {
	mock := model.NewMockModel().Enqueue(`{"answer":"traced"}`)
	gen, err := NewGenerator("qa", mock, answerSchema())
	require.NoError(t, err)

	tr := graph.NewTrace()
	in := tr.Input("query", queryValue(t, "q").Schema())
	out, err := tr.Apply1(gen, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"answer"}, out.Schema().PropertyNames())

	program, err := tr.Compile([]*graph.Symbol{in}, []*graph.Symbol{out})
	require.NoError(t, err)

	results, err := program.Invoke(context.Background(), graph.ModeInference, queryValue(t, "q"))
	require.NoError(t, err)
	assert.Equal(t, "traced", results[0].Get("answer").String())
}

func TestGenerator_Config(t *testing.T) {
	gen, err := NewGenerator("qa", model.NewMockModel(), answerSchema(), WithInstructions("be brief"))
	require.NoError(t, err)

	cfg, err := gen.Config()
	require.NoError(t, err)
	assert.Equal(t, "qa", cfg.Name)
	assert.Equal(t, "generator", cfg.Type)

	var settings map[string]any
	require.NoError(t, json.Unmarshal(cfg.Settings, &settings))
	assert.Contains(t, settings, "output_schema")
	assert.Equal(t, []any{"be brief"}, settings["instructions"])
}
