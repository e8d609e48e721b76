package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/schemaflow/graph"
	"github.com/hupe1980/schemaflow/module"
	"github.com/hupe1980/schemaflow/value"
)

// run drives the decide/dispatch/merge loop.
//
// Each round the decision module is invoked on the accumulated state; its
// choices dispatch concurrently, each action receiving only its own purpose.
// The round is a barrier: every dispatched action completes (or fails)
// before anything else happens. On a tool failure the round's surviving
// results are discarded and the loop aborts without merging; otherwise the
// namespaced results are concatenated together and onto the state. An empty
// choice list, or exhausting the iteration bound, ends the loop and hands
// the state to the final response generation.
func (a *ReActAgent) run(ctx context.Context, input *value.DataValue, mode graph.Mode) (*value.DataValue, error) {
	if input == nil {
		return nil, fmt.Errorf("agent %q: absent input", a.Name())
	}

	state := input
	for round := 0; round < a.maxIterations; round++ {
		decision, err := a.decision.TransformValue(ctx, state, mode)
		if err != nil {
			return nil, fmt.Errorf("agent %q: decision round %d: %w", a.Name(), round+1, err)
		}

		choices := parseChoices(decision)
		a.Logger().Debug("agent.round", "agent", a.Name(), "round", round+1, "choices", len(choices))
		if len(choices) == 0 {
			break
		}

		results, err := a.dispatch(ctx, choices, mode)
		if err != nil {
			return nil, fmt.Errorf("agent %q: round %d: %w", a.Name(), round+1, err)
		}

		merged, err := value.ConcatAll(results...)
		if err != nil {
			return nil, fmt.Errorf("agent %q: merge round %d results: %w", a.Name(), round+1, err)
		}
		state, err = value.Concat(state, merged)
		if err != nil {
			return nil, fmt.Errorf("agent %q: accumulate round %d: %w", a.Name(), round+1, err)
		}
	}

	if a.finalGen == nil {
		return state, nil
	}

	response, err := a.finalGen.TransformValue(ctx, state, mode)
	if err != nil {
		return nil, fmt.Errorf("agent %q: final answer: %w", a.Name(), err)
	}
	switch {
	case a.returnInputsWithTrajectory:
		return value.Concat(response, state)
	case a.returnInputs:
		return value.Concat(response, input)
	}
	return response, nil
}

// dispatch runs every chosen action concurrently and waits for the whole
// round. Unknown tool names are rejected before anything is dispatched.
// Failed rounds return the first error observed; siblings in flight always
// run to completion first.
func (a *ReActAgent) dispatch(ctx context.Context, choices []ToolChoice, mode graph.Mode) ([]*value.DataValue, error) {
	acts := make([]*actionCall, len(choices))
	for i, choice := range choices {
		action, ok := a.actions[choice.ToolName]
		if !ok {
			return nil, &UnknownToolError{Name: choice.ToolName}
		}
		purpose, err := value.NewData(purposeSchema(), map[string]any{"purpose": choice.Purpose})
		if err != nil {
			return nil, fmt.Errorf("build purpose for %q: %w", choice.ToolName, err)
		}
		acts[i] = &actionCall{action: action, purpose: purpose}
	}

	results := make([]*value.DataValue, len(acts))
	errCh := make(chan error, len(acts))
	var wg sync.WaitGroup

	for i, call := range acts {
		wg.Add(1)
		go func(i int, call *actionCall) {
			defer wg.Done()
			out, err := call.action.TransformValue(ctx, call.purpose, mode)
			if err != nil {
				errCh <- err
				return
			}
			results[i] = out
		}(i, call)
	}

	// Round barrier: the next decision never interleaves with in-flight
	// tool calls.
	wg.Wait()
	close(errCh)
	if err, ok := <-errCh; ok {
		return nil, err
	}
	return results, nil
}

type actionCall struct {
	action  *module.Action
	purpose *value.DataValue
}

// parseChoices extracts the tool choices from a decision payload.
func parseChoices(decision *value.DataValue) []ToolChoice {
	var choices []ToolChoice
	for _, item := range decision.Get("choices").Array() {
		choices = append(choices, ToolChoice{
			ToolName: item.Get("tool_name").String(),
			Purpose:  item.Get("purpose").String(),
		})
	}
	return choices
}
