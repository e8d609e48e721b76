// Package agent implements a bounded ReAct-style tool orchestration loop on
// top of the module and graph layers: at each round a decision module selects
// zero or more tools (constrained structurally to the toolkit's labels), the
// chosen actions run concurrently, and their namespaced results are
// concatenated onto the accumulating state before the next round.
package agent

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/schemaflow/graph"
	"github.com/hupe1980/schemaflow/logging"
	"github.com/hupe1980/schemaflow/model"
	"github.com/hupe1980/schemaflow/module"
	"github.com/hupe1980/schemaflow/saving"
	"github.com/hupe1980/schemaflow/schema"
	"github.com/hupe1980/schemaflow/tool"
)

// UnknownToolError reports a decision naming a tool outside the constrained
// set. The enum constraint makes this impossible with a conforming backend;
// it is handled defensively and is fatal to the loop.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("decision references unknown tool %q", e.Name)
}

// ToolChoice is one entry of a decision round: which tool to run and what it
// should accomplish.
type ToolChoice struct {
	ToolName string `json:"tool_name"`
	Purpose  string `json:"purpose"`
}

// ReActAgent is a Module coordinating the decide/dispatch/merge loop. It can
// be invoked directly through TransformValue or traced into a Program like
// any other module.
type ReActAgent struct {
	module.Base

	decisionModel model.Model
	actionModel   model.Model
	toolkit       *tool.Toolkit
	output        schema.Schema // nil: return the trajectory as-is

	question      string
	instructions  []string
	examples      []module.Example
	maxIterations int

	returnInputs               bool
	returnInputsWithTrajectory bool

	decision *module.Generator
	actions  map[string]*module.Action
	finalGen *module.Generator
}

// Option customizes a ReActAgent.
type Option func(*ReActAgent)

// WithModel sets a single model used for both decisions and actions.
func WithModel(m model.Model) Option {
	return func(a *ReActAgent) {
		a.decisionModel = m
		a.actionModel = m
	}
}

// WithDecisionModel sets the model used for tool selection. Must be paired
// with WithActionModel.
func WithDecisionModel(m model.Model) Option {
	return func(a *ReActAgent) { a.decisionModel = m }
}

// WithActionModel sets the model used for argument inference and the final
// answer. Must be paired with WithDecisionModel.
func WithActionModel(m model.Model) Option {
	return func(a *ReActAgent) { a.actionModel = m }
}

// WithMaxIterations bounds the number of decision rounds; must be at least 1.
// Defaults to 5.
func WithMaxIterations(n int) Option {
	return func(a *ReActAgent) { a.maxIterations = n }
}

// WithQuestion overrides the tool selection question.
func WithQuestion(q string) Option {
	return func(a *ReActAgent) { a.question = q }
}

// WithInstructions overrides the behavioral instructions for tool selection.
func WithInstructions(instructions ...string) Option {
	return func(a *ReActAgent) { a.instructions = instructions }
}

// WithExamples sets few-shot examples for the decision prompt.
func WithExamples(examples ...module.Example) Option {
	return func(a *ReActAgent) { a.examples = examples }
}

// WithReturnInputs concatenates the original input onto the final response.
// Mutually exclusive with WithReturnInputsWithTrajectory.
func WithReturnInputs() Option {
	return func(a *ReActAgent) { a.returnInputs = true }
}

// WithReturnInputsWithTrajectory concatenates the full trajectory state onto
// the final response. Mutually exclusive with WithReturnInputs.
func WithReturnInputsWithTrajectory() Option {
	return func(a *ReActAgent) { a.returnInputsWithTrajectory = true }
}

// WithLogger sets the agent logger.
func WithLogger(l logging.Logger) Option {
	return func(a *ReActAgent) { a.SetLogger(l) }
}

// New constructs a ReActAgent over a toolkit. The output schema types the
// final answer; pass nil to return the accumulated trajectory instead of
// running a final generation step.
func New(name string, toolkit *tool.Toolkit, output schema.Schema, opts ...Option) (*ReActAgent, error) {
	if toolkit == nil || toolkit.Len() == 0 {
		return nil, fmt.Errorf("agent %q: toolkit must contain at least one tool", name)
	}

	a := &ReActAgent{
		toolkit:       toolkit,
		question:      defaultQuestion(),
		instructions:  defaultInstructions(),
		maxIterations: 5,
	}
	if output != nil {
		a.output = output.Clone()
	}
	a.Base = module.NewBase(name, a.run, a.shape)
	for _, opt := range opts {
		opt(a)
	}

	if a.decisionModel == nil || a.actionModel == nil {
		return nil, fmt.Errorf("agent %q: set either WithModel or both WithDecisionModel and WithActionModel", name)
	}
	if a.maxIterations < 1 {
		return nil, fmt.Errorf("agent %q: max iterations must be at least 1, got %d", name, a.maxIterations)
	}
	if a.returnInputs && a.returnInputsWithTrajectory {
		return nil, fmt.Errorf("agent %q: WithReturnInputs and WithReturnInputsWithTrajectory are mutually exclusive", name)
	}

	labels := toolkit.Labels()
	decisionSchema, err := schema.ConstrainEnum(
		toolDecisionSchema(),
		toolNamePath,
		labels,
		"The name of the tool to call.",
	)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}

	decisionOpts := []module.GeneratorOption{
		module.WithInstructions(append([]string{a.question}, a.instructions...)...),
		module.WithGeneratorLogger(a.Logger()),
	}
	if len(a.examples) > 0 {
		decisionOpts = append(decisionOpts, module.WithExamples(a.examples...))
	}
	a.decision, err = module.NewGenerator(name+"_tool_selector", a.decisionModel, decisionSchema, decisionOpts...)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}

	a.actions = make(map[string]*module.Action, len(labels))
	for _, label := range labels {
		t, _ := toolkit.Get(label)
		action, err := module.NewAction(name+"_"+label, a.actionModel, t, module.WithActionLogger(a.Logger()))
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		a.actions[label] = action
	}

	if a.output != nil {
		a.finalGen, err = module.NewGenerator(
			name+"_final_answer",
			a.actionModel,
			a.output,
			module.WithInstructions("Provide the final answer based on all the information gathered."),
			module.WithGeneratorLogger(a.Logger()),
		)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
	}

	return a, nil
}

// MaxIterations returns the configured round bound.
func (a *ReActAgent) MaxIterations() int { return a.maxIterations }

// shape infers the agent's output schema. With an output schema configured
// the response shape is known statically; the return-inputs flags widen it by
// merging the input schema in. Without one the agent returns its trajectory,
// whose properties beyond the input accrue only at run time, so the input
// schema is the best static answer.
func (a *ReActAgent) shape(input schema.Schema) (schema.Schema, error) {
	if a.output == nil {
		return input.Clone(), nil
	}
	if a.returnInputs || a.returnInputsWithTrajectory {
		merged, _, err := schema.Merge(a.output, input)
		if err != nil {
			return nil, err
		}
		return merged, nil
	}
	return a.output.Clone(), nil
}

type agentSettings struct {
	OutputSchema               schema.Schema `json:"output_schema,omitempty"`
	Tools                      []string      `json:"tools"`
	Question                   string        `json:"question"`
	Instructions               []string      `json:"instructions"`
	MaxIterations              int           `json:"max_iterations"`
	ReturnInputs               bool          `json:"return_inputs,omitempty"`
	ReturnInputsWithTrajectory bool          `json:"return_inputs_with_trajectory,omitempty"`
}

// Config implements module.Module.
func (a *ReActAgent) Config() (saving.Config, error) {
	settings, err := json.Marshal(agentSettings{
		OutputSchema:               a.output,
		Tools:                      a.toolkit.Labels(),
		Question:                   a.question,
		Instructions:               a.instructions,
		MaxIterations:              a.maxIterations,
		ReturnInputs:               a.returnInputs,
		ReturnInputsWithTrajectory: a.returnInputsWithTrajectory,
	})
	if err != nil {
		return saving.Config{}, fmt.Errorf("agent %q: marshal settings: %w", a.Name(), err)
	}
	return saving.Config{Name: a.Name(), Type: "react_agent", Settings: settings}, nil
}

// RegisterDeserializer installs a deserializer rebuilding agents against the
// supplied model and toolkit.
func RegisterDeserializer(registry *saving.Registry, m model.Model, toolkit *tool.Toolkit) error {
	return registry.Register("react_agent", func(cfg saving.Config) (graph.Operation, error) {
		var settings agentSettings
		if err := json.Unmarshal(cfg.Settings, &settings); err != nil {
			return nil, fmt.Errorf("agent %q: decode settings: %w", cfg.Name, err)
		}
		opts := []Option{
			WithModel(m),
			WithQuestion(settings.Question),
			WithInstructions(settings.Instructions...),
			WithMaxIterations(settings.MaxIterations),
		}
		if settings.ReturnInputs {
			opts = append(opts, WithReturnInputs())
		}
		if settings.ReturnInputsWithTrajectory {
			opts = append(opts, WithReturnInputsWithTrajectory())
		}
		return New(cfg.Name, toolkit, settings.OutputSchema, opts...)
	})
}
