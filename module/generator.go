package module

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/schemaflow/graph"
	"github.com/hupe1980/schemaflow/internal/util"
	"github.com/hupe1980/schemaflow/logging"
	"github.com/hupe1980/schemaflow/model"
	"github.com/hupe1980/schemaflow/saving"
	"github.com/hupe1980/schemaflow/schema"
	"github.com/hupe1980/schemaflow/value"
)

// defaultPromptTemplate renders optional few-shot examples followed by the
// current input payload.
const defaultPromptTemplate = `{{range .Examples}}Example input: {{.Input}}
Example output: {{.Output}}

{{end}}Input: {{.Input}}`

// Example is a few-shot input/output pair rendered into the prompt.
type Example struct {
	Input  map[string]any `json:"input"`
	Output map[string]any `json:"output"`
}

// Generator performs a single structured-output model call: it renders a
// prompt from the input value, submits it with the declared output schema
// and wraps the conforming payload into a new data value.
type Generator struct {
	Base
	model            model.Model
	output           schema.Schema
	instructions     []string
	examples         []Example
	promptTemplate   string
	useInputsSchema  bool
	useOutputsSchema bool
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithInstructions sets behavioral instructions included in the system
// prompt.
func WithInstructions(instructions ...string) GeneratorOption {
	return func(g *Generator) { g.instructions = instructions }
}

// WithExamples sets few-shot examples rendered into the prompt.
func WithExamples(examples ...Example) GeneratorOption {
	return func(g *Generator) { g.examples = examples }
}

// WithPromptTemplate overrides the default prompt template (text/template
// syntax; fields .Input and .Examples are available).
func WithPromptTemplate(t string) GeneratorOption {
	return func(g *Generator) { g.promptTemplate = t }
}

// WithInputsSchema includes the input schema in the system prompt.
func WithInputsSchema() GeneratorOption {
	return func(g *Generator) { g.useInputsSchema = true }
}

// WithOutputsSchema includes the output schema in the system prompt.
func WithOutputsSchema() GeneratorOption {
	return func(g *Generator) { g.useOutputsSchema = true }
}

// WithGeneratorLogger sets the module logger.
func WithGeneratorLogger(l logging.Logger) GeneratorOption {
	return func(g *Generator) { g.SetLogger(l) }
}

// WithDescription sets the module description.
func WithDescription(d string) GeneratorOption {
	return func(g *Generator) { g.SetDescription(d) }
}

// NewGenerator constructs a Generator producing values of the given output
// schema.
func NewGenerator(name string, m model.Model, output schema.Schema, opts ...GeneratorOption) (*Generator, error) {
	if m == nil {
		return nil, fmt.Errorf("generator %q: nil model", name)
	}
	if output == nil {
		return nil, fmt.Errorf("generator %q: nil output schema", name)
	}
	g := &Generator{
		model:          m,
		output:         output.Clone(),
		promptTemplate: defaultPromptTemplate,
	}
	g.Base = NewBase(name, g.generate, g.shape)
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// OutputSchema returns a copy of the generator's output schema.
func (g *Generator) OutputSchema() schema.Schema { return g.output.Clone() }

func (g *Generator) shape(input schema.Schema) (schema.Schema, error) {
	return g.output.Clone(), nil
}

func (g *Generator) generate(ctx context.Context, input *value.DataValue, mode graph.Mode) (*value.DataValue, error) {
	if input == nil {
		return nil, fmt.Errorf("generator %q: absent input", g.Name())
	}

	prompt, err := g.renderPrompt(input)
	if err != nil {
		return nil, fmt.Errorf("generator %q: %w", g.Name(), err)
	}

	req := model.Request{
		Instructions: g.systemPrompt(input),
		Prompt:       prompt,
		Schema:       g.output.Clone(),
	}

	g.Logger().Debug("generator.call", "module", g.Name(), "mode", mode.String(), "provider", g.model.Info().Provider)
	resp, err := g.model.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generator %q: %w", g.Name(), err)
	}

	out, err := value.NewDataFromJSON(g.output, resp.Payload)
	if err != nil {
		return nil, fmt.Errorf("generator %q: %w", g.Name(), err)
	}
	return out, nil
}

func (g *Generator) renderPrompt(input *value.DataValue) (string, error) {
	examples := make([]map[string]any, 0, len(g.examples))
	for _, ex := range g.examples {
		in, err := json.Marshal(ex.Input)
		if err != nil {
			return "", fmt.Errorf("marshal example input: %w", err)
		}
		out, err := json.Marshal(ex.Output)
		if err != nil {
			return "", fmt.Errorf("marshal example output: %w", err)
		}
		examples = append(examples, map[string]any{"Input": string(in), "Output": string(out)})
	}
	return util.RenderTemplate(g.promptTemplate, map[string]any{
		"Input":    input.String(),
		"Examples": examples,
	})
}

func (g *Generator) systemPrompt(input *value.DataValue) string {
	var b strings.Builder
	for _, instruction := range g.instructions {
		b.WriteString("- ")
		b.WriteString(instruction)
		b.WriteString("\n")
	}
	if g.useInputsSchema {
		if raw, err := json.Marshal(input.Schema()); err == nil {
			fmt.Fprintf(&b, "Input schema: %s\n", raw)
		}
	}
	if g.useOutputsSchema {
		if raw, err := json.Marshal(g.output); err == nil {
			fmt.Fprintf(&b, "Output schema: %s\n", raw)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

type generatorSettings struct {
	OutputSchema     schema.Schema `json:"output_schema"`
	Instructions     []string      `json:"instructions,omitempty"`
	Examples         []Example     `json:"examples,omitempty"`
	PromptTemplate   string        `json:"prompt_template,omitempty"`
	UseInputsSchema  bool          `json:"use_inputs_schema,omitempty"`
	UseOutputsSchema bool          `json:"use_outputs_schema,omitempty"`
}

// Config implements Module.
func (g *Generator) Config() (saving.Config, error) {
	settings, err := json.Marshal(generatorSettings{
		OutputSchema:     g.output,
		Instructions:     g.instructions,
		Examples:         g.examples,
		PromptTemplate:   g.promptTemplate,
		UseInputsSchema:  g.useInputsSchema,
		UseOutputsSchema: g.useOutputsSchema,
	})
	if err != nil {
		return saving.Config{}, fmt.Errorf("generator %q: marshal settings: %w", g.Name(), err)
	}
	return saving.Config{Name: g.Name(), Type: "generator", Settings: settings}, nil
}

// RegisterGeneratorDeserializer installs a deserializer rebuilding
// generators against the supplied model.
func RegisterGeneratorDeserializer(registry *saving.Registry, m model.Model) error {
	return registry.Register("generator", func(cfg saving.Config) (graph.Operation, error) {
		var settings generatorSettings
		if err := json.Unmarshal(cfg.Settings, &settings); err != nil {
			return nil, fmt.Errorf("generator %q: decode settings: %w", cfg.Name, err)
		}
		opts := []GeneratorOption{WithPromptTemplate(settings.PromptTemplate)}
		if settings.PromptTemplate == "" {
			opts = nil
		}
		if len(settings.Instructions) > 0 {
			opts = append(opts, WithInstructions(settings.Instructions...))
		}
		if len(settings.Examples) > 0 {
			opts = append(opts, WithExamples(settings.Examples...))
		}
		if settings.UseInputsSchema {
			opts = append(opts, WithInputsSchema())
		}
		if settings.UseOutputsSchema {
			opts = append(opts, WithOutputsSchema())
		}
		return NewGenerator(cfg.Name, m, settings.OutputSchema, opts...)
	})
}
