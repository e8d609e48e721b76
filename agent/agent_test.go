package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/schemaflow/graph"
	"github.com/hupe1980/schemaflow/model"
	"github.com/hupe1980/schemaflow/schema"
	"github.com/hupe1980/schemaflow/tool"
	"github.com/hupe1980/schemaflow/value"
)

func locationParameters() schema.Schema {
	return schema.Schema{
		"type": "object",
		"properties": map[string]any{
			"location": map[string]any{"type": "string"},
		},
		"required":             []string{"location"},
		"additionalProperties": false,
	}
}

func cityParameters() schema.Schema {
	return schema.Schema{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
		"required":             []string{"city"},
		"additionalProperties": false,
	}
}

func finalAnswerSchema() schema.Schema {
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

// testToolkit wires a weather and an events tool, counting invocations.
type testToolkit struct {
	toolkit      *tool.Toolkit
	weatherCalls atomic.Int32
	eventsCalls  atomic.Int32
}

func newTestToolkit(t *testing.T) *testToolkit {
	tk := &testToolkit{}

	weather := tool.NewFunctionTool("get_weather", "Get the current weather for a location", locationParameters(),
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			tk.weatherCalls.Add(1)
			return map[string]any{"conditions": "sunny"}, nil
		},
	)
	events := tool.NewFunctionTool("find_events", "Find events happening in a city", cityParameters(),
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			tk.eventsCalls.Add(1)
			return map[string]any{"events": []any{"concert"}}, nil
		},
	)

	toolkit, err := tool.NewToolkit(weather, events)
	require.NoError(t, err)
	tk.toolkit = toolkit
	return tk
}

// actionBackend answers argument inference and final answer requests by
// inspecting the requested schema.
func actionBackend() *model.MockModel {
	m := model.NewMockModel()
	m.SetHandler(func(ctx context.Context, req model.Request) (json.RawMessage, error) {
		props := req.Schema.PropertyNames()
		switch {
		case len(props) == 1 && props[0] == "location":
			return json.RawMessage(`{"location":"Berlin"}`), nil
		case len(props) == 1 && props[0] == "city":
			return json.RawMessage(`{"city":"Berlin"}`), nil
		case len(props) == 1 && props[0] == "answer":
			return json.RawMessage(`{"answer":"done"}`), nil
		}
		return nil, fmt.Errorf("unexpected request schema %v", props)
	})
	return m
}

func decisionPayload(choices ...ToolChoice) string {
	raw, _ := json.Marshal(map[string]any{
		"reasoning": "considering the current state",
		"choices":   choices,
	})
	return string(raw)
}

func emptyDecision() string {
	return decisionPayload()
}

func TestReActAgent_DecideDispatchMergeAnswer(t *testing.T) {
	tk := newTestToolkit(t)

	decisions := model.NewMockModel().
		Enqueue(decisionPayload(
			ToolChoice{ToolName: "get_weather", Purpose: "check the weather in Berlin"},
			ToolChoice{ToolName: "find_events", Purpose: "find events in Berlin"},
		)).
		Enqueue(emptyDecision())
	actions := actionBackend()

	a, err := New("trip_planner", tk.toolkit, finalAnswerSchema(),
		WithDecisionModel(decisions),
		WithActionModel(actions),
	)
	require.NoError(t, err)

	out, err := a.TransformValue(context.Background(), queryValue(t, "plan a day in Berlin"), graph.ModeInference)
	require.NoError(t, err)

	assert.Equal(t, "done", out.Get("answer").String())
	assert.Equal(t, []string{"answer"}, out.Schema().PropertyNames())

	// One round dispatched both tools exactly once; the empty second round
	// ended the loop.
	assert.Equal(t, int32(1), tk.weatherCalls.Load())
	assert.Equal(t, int32(1), tk.eventsCalls.Load())
	assert.Len(t, decisions.Calls(), 2)

	// Two argument inferences plus the final answer.
	assert.Len(t, actions.Calls(), 3)
}

func TestReActAgent_DecisionSchemaConstrainedToToolkit(t *testing.T) {
	tk := newTestToolkit(t)
	decisions := model.NewMockModel().Enqueue(emptyDecision())

	a, err := New("agent", tk.toolkit, finalAnswerSchema(),
		WithDecisionModel(decisions),
		WithActionModel(actionBackend()),
	)
	require.NoError(t, err)

	_, err = a.TransformValue(context.Background(), queryValue(t, "q"), graph.ModeInference)
	require.NoError(t, err)

	sent := decisions.Calls()[0].Schema
	defs := sent.Defs()
	require.Contains(t, defs, "ToolName")
	assert.Equal(t, []any{"get_weather", "find_events"}, defs["ToolName"].(map[string]any)["enum"])
}

func TestReActAgent_StateAccumulatesAcrossRounds(t *testing.T) {
	tk := newTestToolkit(t)

	decisions := model.NewMockModel().
		Enqueue(decisionPayload(ToolChoice{ToolName: "get_weather", Purpose: "check the weather"})).
		Enqueue(emptyDecision())

	// No output schema: the agent returns its trajectory.
	a, err := New("agent", tk.toolkit, nil,
		WithDecisionModel(decisions),
		WithActionModel(actionBackend()),
	)
	require.NoError(t, err)

	out, err := a.TransformValue(context.Background(), queryValue(t, "weather?"), graph.ModeInference)
	require.NoError(t, err)

	assert.Equal(t, "weather?", out.Get("query").String())
	assert.Equal(t, "sunny", out.Get("get_weather_result.conditions").String())

	// The second decision saw the first round's results.
	secondPrompt := decisions.Calls()[1].Prompt
	assert.Contains(t, secondPrompt, "get_weather_result")
	assert.Contains(t, secondPrompt, "sunny")
}

func TestReActAgent_MaxIterationsBoundsLoop(t *testing.T) {
	tk := newTestToolkit(t)

	// The decision backend always wants more work; the bound must stop it.
	decisions := model.NewMockModel()
	decisions.SetHandler(func(ctx context.Context, req model.Request) (json.RawMessage, error) {
		return json.RawMessage(decisionPayload(ToolChoice{ToolName: "get_weather", Purpose: "again"})), nil
	})

	a, err := New("agent", tk.toolkit, finalAnswerSchema(),
		WithDecisionModel(decisions),
		WithActionModel(actionBackend()),
		WithMaxIterations(1),
	)
	require.NoError(t, err)

	out, err := a.TransformValue(context.Background(), queryValue(t, "q"), graph.ModeInference)
	require.NoError(t, err)
	assert.Equal(t, "done", out.Get("answer").String())

	assert.Len(t, decisions.Calls(), 1)
	assert.Equal(t, int32(1), tk.weatherCalls.Load())
}

func TestReActAgent_UnknownToolAbortsBeforeDispatch(t *testing.T) {
	tk := newTestToolkit(t)

	decisions := model.NewMockModel().Enqueue(decisionPayload(
		ToolChoice{ToolName: "get_weather", Purpose: "fine"},
		ToolChoice{ToolName: "teleport", Purpose: "not a real tool"},
	))

	a, err := New("agent", tk.toolkit, finalAnswerSchema(),
		WithDecisionModel(decisions),
		WithActionModel(actionBackend()),
	)
	require.NoError(t, err)

	_, err = a.TransformValue(context.Background(), queryValue(t, "q"), graph.ModeInference)
	require.Error(t, err)

	var unknownErr *UnknownToolError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "teleport", unknownErr.Name)

	// The round never dispatched, not even the valid sibling choice.
	assert.Equal(t, int32(0), tk.weatherCalls.Load())
}

func TestReActAgent_ToolFailureAbortsRound(t *testing.T) {
	boom := errors.New("station offline")
	var siblingCalls atomic.Int32

	failing := tool.NewFunctionTool("get_weather", "Get the current weather", locationParameters(),
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, boom
		},
	)
	sibling := tool.NewFunctionTool("find_events", "Find events", cityParameters(),
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			siblingCalls.Add(1)
			time.Sleep(20 * time.Millisecond)
			return map[string]any{"events": []any{}}, nil
		},
	)
	toolkit, err := tool.NewToolkit(failing, sibling)
	require.NoError(t, err)

	decisions := model.NewMockModel().Enqueue(decisionPayload(
		ToolChoice{ToolName: "get_weather", Purpose: "check"},
		ToolChoice{ToolName: "find_events", Purpose: "find"},
	))

	a, err := New("agent", toolkit, finalAnswerSchema(),
		WithDecisionModel(decisions),
		WithActionModel(actionBackend()),
	)
	require.NoError(t, err)

	_, err = a.TransformValue(context.Background(), queryValue(t, "q"), graph.ModeInference)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// The sibling was already dispatched and ran to completion, but the
	// round produced no merged state and no final answer was generated.
	assert.Equal(t, int32(1), siblingCalls.Load())
	assert.Len(t, decisions.Calls(), 1)
}

func TestReActAgent_PurposeIsolationPerAction(t *testing.T) {
	tk := newTestToolkit(t)

	var mu sync.Mutex
	prompts := map[string]string{}
	actions := model.NewMockModel()
	actions.SetHandler(func(ctx context.Context, req model.Request) (json.RawMessage, error) {
		props := req.Schema.PropertyNames()
		mu.Lock()
		if len(props) == 1 {
			prompts[props[0]] = req.Prompt
		}
		mu.Unlock()
		switch {
		case len(props) == 1 && props[0] == "location":
			return json.RawMessage(`{"location":"Berlin"}`), nil
		case len(props) == 1 && props[0] == "city":
			return json.RawMessage(`{"city":"Berlin"}`), nil
		case len(props) == 1 && props[0] == "answer":
			return json.RawMessage(`{"answer":"done"}`), nil
		}
		return nil, fmt.Errorf("unexpected request schema %v", props)
	})

	decisions := model.NewMockModel().
		Enqueue(decisionPayload(
			ToolChoice{ToolName: "get_weather", Purpose: "weather purpose"},
			ToolChoice{ToolName: "find_events", Purpose: "events purpose"},
		)).
		Enqueue(emptyDecision())

	a, err := New("agent", tk.toolkit, finalAnswerSchema(),
		WithDecisionModel(decisions),
		WithActionModel(actions),
	)
	require.NoError(t, err)

	_, err = a.TransformValue(context.Background(), queryValue(t, "q"), graph.ModeInference)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, prompts["location"], "weather purpose")
	assert.NotContains(t, prompts["location"], "events purpose")
	assert.Contains(t, prompts["city"], "events purpose")
	assert.NotContains(t, prompts["city"], "weather purpose")
}

func TestReActAgent_ReturnInputs(t *testing.T) {
	tk := newTestToolkit(t)

	decisions := model.NewMockModel().
		Enqueue(decisionPayload(ToolChoice{ToolName: "get_weather", Purpose: "check"})).
		Enqueue(emptyDecision())

	a, err := New("agent", tk.toolkit, finalAnswerSchema(),
		WithDecisionModel(decisions),
		WithActionModel(actionBackend()),
		WithReturnInputs(),
	)
	require.NoError(t, err)

	out, err := a.TransformValue(context.Background(), queryValue(t, "weather?"), graph.ModeInference)
	require.NoError(t, err)

	assert.Equal(t, "done", out.Get("answer").String())
	assert.Equal(t, "weather?", out.Get("query").String())
	// Inputs only, not the trajectory.
	assert.False(t, out.Get("get_weather_result").Exists())
}

func TestReActAgent_ReturnInputsWithTrajectory(t *testing.T) {
	tk := newTestToolkit(t)

	decisions := model.NewMockModel().
		Enqueue(decisionPayload(ToolChoice{ToolName: "get_weather", Purpose: "check"})).
		Enqueue(emptyDecision())

	a, err := New("agent", tk.toolkit, finalAnswerSchema(),
		WithDecisionModel(decisions),
		WithActionModel(actionBackend()),
		WithReturnInputsWithTrajectory(),
	)
	require.NoError(t, err)

	out, err := a.TransformValue(context.Background(), queryValue(t, "weather?"), graph.ModeInference)
	require.NoError(t, err)

	assert.Equal(t, "done", out.Get("answer").String())
	assert.Equal(t, "weather?", out.Get("query").String())
	assert.Equal(t, "sunny", out.Get("get_weather_result.conditions").String())
}

func TestNew_Validation(t *testing.T) {
	tk := newTestToolkit(t)
	m := model.NewMockModel()

	_, err := New("agent", nil, nil, WithModel(m))
	assert.Error(t, err)

	_, err = New("agent", tk.toolkit, nil)
	assert.Error(t, err)

	_, err = New("agent", tk.toolkit, nil, WithDecisionModel(m))
	assert.Error(t, err)

	_, err = New("agent", tk.toolkit, nil, WithModel(m), WithMaxIterations(0))
	assert.Error(t, err)

	_, err = New("agent", tk.toolkit, finalAnswerSchema(), WithModel(m),
		WithReturnInputs(), WithReturnInputsWithTrajectory())
	assert.Error(t, err)
}

func TestReActAgent_TracesIntoProgram(t *testing.T) {
	tk := newTestToolkit(t)

	decisions := model.NewMockModel().Enqueue(emptyDecision())
	a, err := New("agent", tk.toolkit, finalAnswerSchema(),
		WithDecisionModel(decisions),
		WithActionModel(actionBackend()),
	)
	require.NoError(t, err)

	tr := graph.NewTrace()
	in := tr.Input("query", queryValue(t, "q").Schema())
	out, err := tr.Apply1(a, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"answer"}, out.Schema().PropertyNames())

	program, err := tr.Compile([]*graph.Symbol{in}, []*graph.Symbol{out})
	require.NoError(t, err)

	results, err := program.Invoke(context.Background(), graph.ModeInference, queryValue(t, "q"))
	require.NoError(t, err)
	assert.Equal(t, "done", results[0].Get("answer").String())
}

func TestReActAgent_Config(t *testing.T) {
	tk := newTestToolkit(t)
	a, err := New("agent", tk.toolkit, finalAnswerSchema(),
		WithModel(model.NewMockModel()),
		WithMaxIterations(3),
	)
	require.NoError(t, err)

	cfg, err := a.Config()
	require.NoError(t, err)
	assert.Equal(t, "react_agent", cfg.Type)

	var settings map[string]any
	require.NoError(t, json.Unmarshal(cfg.Settings, &settings))
	assert.Equal(t, []any{"get_weather", "find_events"}, settings["tools"])
	assert.Equal(t, float64(3), settings["max_iterations"])
}
