package module

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/schemaflow/graph"
	"github.com/hupe1980/schemaflow/model"
	"github.com/hupe1980/schemaflow/saving"
	"github.com/hupe1980/schemaflow/schema"
)

// decisionAnswerSchema is the base shape of a decision before the choice
// property is constrained to the label set.
func decisionAnswerSchema() schema.Schema {
	return schema.Schema{
		"type":  "object",
		"title": "DecisionAnswer",
		"properties": map[string]any{
			"thinking": map[string]any{
				"type":        "string",
				"description": "Your step by step thinking to choose the correct label.",
			},
			"choice": map[string]any{
				"type":        "string",
				"description": "The label chosen.",
			},
		},
		"required":             []string{"thinking", "choice"},
		"additionalProperties": false,
	}
}

// Decision performs a constrained choice on its input: it asks a question
// and forces the model to answer with exactly one of the configured labels.
// The constraint is enforced structurally, by rewriting the answer schema's
// choice property into an enum before the call, not by validating
// afterwards.
type Decision struct {
	*Generator
	question string
	labels   []string
}

// NewDecision constructs a Decision over the given labels.
func NewDecision(name string, m model.Model, question string, labels []string, opts ...GeneratorOption) (*Decision, error) {
	if question == "" {
		return nil, fmt.Errorf("decision %q: empty question", name)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("decision %q: no labels", name)
	}

	answerSchema, err := schema.ConstrainEnum(
		decisionAnswerSchema(),
		"properties/choice",
		labels,
		"The label chosen.",
	)
	if err != nil {
		return nil, fmt.Errorf("decision %q: %w", name, err)
	}

	opts = append([]GeneratorOption{
		WithInstructions("Answer the question by choosing exactly one of the allowed labels: " + question),
	}, opts...)
	gen, err := NewGenerator(name, m, answerSchema, opts...)
	if err != nil {
		return nil, err
	}

	return &Decision{
		Generator: gen,
		question:  question,
		labels:    append([]string{}, labels...),
	}, nil
}

// Labels returns the label set the decision is constrained to.
func (d *Decision) Labels() []string {
	out := make([]string, len(d.labels))
	copy(out, d.labels)
	return out
}

// Question returns the decision question.
func (d *Decision) Question() string { return d.question }

type decisionSettings struct {
	Question string   `json:"question"`
	Labels   []string `json:"labels"`
}

// Config implements Module.
func (d *Decision) Config() (saving.Config, error) {
	settings, err := json.Marshal(decisionSettings{Question: d.question, Labels: d.labels})
	if err != nil {
		return saving.Config{}, fmt.Errorf("decision %q: marshal settings: %w", d.Name(), err)
	}
	return saving.Config{Name: d.Name(), Type: "decision", Settings: settings}, nil
}

// RegisterDecisionDeserializer installs a deserializer rebuilding decisions
// against the supplied model.
func RegisterDecisionDeserializer(registry *saving.Registry, m model.Model) error {
	return registry.Register("decision", func(cfg saving.Config) (graph.Operation, error) {
		var settings decisionSettings
		if err := json.Unmarshal(cfg.Settings, &settings); err != nil {
			return nil, fmt.Errorf("decision %q: decode settings: %w", cfg.Name, err)
		}
		return NewDecision(cfg.Name, m, settings.Question, settings.Labels)
	})
}
