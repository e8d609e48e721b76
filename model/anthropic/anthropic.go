// Package anthropic implements model.Model on the Anthropic Messages API.
// Structured output is obtained by exposing a single tool whose input schema
// is the requested schema and forcing the model to call it, so the returned
// tool input is guaranteed to conform.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/schemaflow/model"
	"github.com/hupe1980/schemaflow/schema"
)

// outputToolName is the synthetic tool the model is forced to call.
const outputToolName = "emit_output"

// Options configures the Anthropic model adapter (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind model.Model.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.0,
		MaxTokens:   4096,
	}
}

// Generate implements model.Model via forced tool use.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	// The tool input schema slot only carries properties/required, so
	// $defs references are inlined first.
	inlined := inlineRefs(req.Schema)

	inputSchema := anthropic.ToolInputSchemaParam{
		Type: constant.Object("object"),
	}
	if properties, ok := inlined["properties"]; ok {
		inputSchema.Properties = properties
	}
	if required := inlined.Required(); len(required) > 0 {
		inputSchema.Required = required
	}

	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Tools: []anthropic.ToolUnionParam{
			anthropic.ToolUnionParamOfTool(inputSchema, outputToolName),
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: outputToolName},
		},
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		toolBlock := block.AsToolUse()
		if toolBlock.Name != outputToolName {
			continue
		}
		payload, err := json.Marshal(toolBlock.Input)
		if err != nil {
			return nil, fmt.Errorf("anthropic: marshal tool input: %w", err)
		}
		out := &model.Response{Payload: payload}
		if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
			out.Usage = &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			}
		}
		return out, nil
	}

	return nil, fmt.Errorf("anthropic: response contains no %s tool call", outputToolName)
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic"}
}

// inlineRefs returns a copy of s with every "#/$defs/..." reference replaced
// by the referenced definition and the $defs table dropped.
func inlineRefs(s schema.Schema) schema.Schema {
	out := s.Clone()
	defs := out.Defs()
	if len(defs) == 0 {
		return out
	}
	delete(out, "$defs")
	inlineValue(map[string]any(out), defs)
	return out
}

func inlineValue(v any, defs map[string]any) {
	switch t := v.(type) {
	case map[string]any:
		for key, child := range t {
			childMap, ok := child.(map[string]any)
			if !ok {
				inlineValue(child, defs)
				continue
			}
			if ref, ok := childMap["$ref"].(string); ok && len(childMap) == 1 {
				if def := lookupDef(ref, defs); def != nil {
					t[key] = def
					continue
				}
			}
			inlineValue(childMap, defs)
		}
	case []any:
		for _, child := range t {
			inlineValue(child, defs)
		}
	}
}

func lookupDef(ref string, defs map[string]any) map[string]any {
	const prefix = "#/$defs/"
	if len(ref) <= len(prefix) || ref[:len(prefix)] != prefix {
		return nil
	}
	def, ok := defs[ref[len(prefix):]].(map[string]any)
	if !ok {
		return nil
	}
	copied, ok := deepCopy(def).(map[string]any)
	if !ok {
		return nil
	}
	// Definitions may themselves reference other definitions.
	inlineValue(copied, defs)
	return copied
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, c := range t {
			out[k] = deepCopy(c)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, c := range t {
			out[i] = deepCopy(c)
		}
		return out
	default:
		return t
	}
}
