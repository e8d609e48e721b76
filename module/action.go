package module

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/schemaflow/graph"
	"github.com/hupe1980/schemaflow/logging"
	"github.com/hupe1980/schemaflow/model"
	"github.com/hupe1980/schemaflow/saving"
	"github.com/hupe1980/schemaflow/schema"
	"github.com/hupe1980/schemaflow/tool"
	"github.com/hupe1980/schemaflow/value"
)

// Action invokes an external tool. The tool's arguments are inferred from
// the input value by a structured model call against the tool's parameter
// schema, then the tool runs and its result is wrapped into a record
// namespaced by the tool's name, so merged round results always identify
// which tool produced them.
type Action struct {
	Base
	tool   tool.Tool
	argGen *Generator
	output schema.Schema
}

// ActionOption customizes an Action.
type ActionOption func(*Action)

// WithActionLogger sets the module logger.
func WithActionLogger(l logging.Logger) ActionOption {
	return func(a *Action) { a.SetLogger(l) }
}

// NewAction constructs an Action around t, using m to infer arguments.
func NewAction(name string, m model.Model, t tool.Tool, opts ...ActionOption) (*Action, error) {
	if t == nil {
		return nil, fmt.Errorf("action %q: nil tool", name)
	}

	argGen, err := NewGenerator(
		name+"_args",
		m,
		t.Parameters(),
		WithInstructions(
			fmt.Sprintf("Infer the arguments for the tool %q from the given purpose and context.", t.Name()),
			t.Description(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", name, err)
	}

	a := &Action{
		tool:   t,
		argGen: argGen,
		output: resultSchema(t.Name()),
	}
	a.Base = NewBase(name, a.run, a.shape)
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Tool returns the wrapped tool.
func (a *Action) Tool() tool.Tool { return a.tool }

// resultKey returns the namespaced property a tool's result is stored under.
func resultKey(toolName string) string { return toolName + "_result" }

func resultSchema(toolName string) schema.Schema {
	key := resultKey(toolName)
	return schema.Schema{
		"type": "object",
		"properties": map[string]any{
			key: map[string]any{
				"type":        "object",
				"description": fmt.Sprintf("Result returned by the %s tool.", toolName),
			},
		},
		"required": []string{key},
	}
}

func (a *Action) shape(input schema.Schema) (schema.Schema, error) {
	return a.output.Clone(), nil
}

func (a *Action) run(ctx context.Context, input *value.DataValue, mode graph.Mode) (*value.DataValue, error) {
	if input == nil {
		return nil, fmt.Errorf("action %q: absent input", a.Name())
	}

	args, err := a.argGen.TransformValue(ctx, input, mode)
	if err != nil {
		return nil, fmt.Errorf("action %q: infer arguments: %w", a.Name(), err)
	}

	a.Logger().Debug("action.dispatch", "action", a.Name(), "tool", a.tool.Name())
	result, err := a.tool.Call(ctx, args.Payload())
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = map[string]any{}
	}

	return value.NewData(a.output, map[string]any{resultKey(a.tool.Name()): result})
}

type actionSettings struct {
	Tool string `json:"tool"`
}

// Config implements Module.
func (a *Action) Config() (saving.Config, error) {
	settings, err := json.Marshal(actionSettings{Tool: a.tool.Name()})
	if err != nil {
		return saving.Config{}, fmt.Errorf("action %q: marshal settings: %w", a.Name(), err)
	}
	return saving.Config{Name: a.Name(), Type: "action", Settings: settings}, nil
}

// RegisterActionDeserializer installs a deserializer rebuilding actions
// against the supplied model and toolkit.
func RegisterActionDeserializer(registry *saving.Registry, m model.Model, toolkit *tool.Toolkit) error {
	return registry.Register("action", func(cfg saving.Config) (graph.Operation, error) {
		var settings actionSettings
		if err := json.Unmarshal(cfg.Settings, &settings); err != nil {
			return nil, fmt.Errorf("action %q: decode settings: %w", cfg.Name, err)
		}
		t, ok := toolkit.Get(settings.Tool)
		if !ok {
			return nil, fmt.Errorf("action %q: tool %q not in toolkit", cfg.Name, settings.Tool)
		}
		return NewAction(cfg.Name, m, t)
	})
}
