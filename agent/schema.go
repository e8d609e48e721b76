package agent

import (
	"github.com/hupe1980/schemaflow/schema"
)

// toolNamePath is the slash-separated location of the tool name inside the
// decision schema; it is the property constrained to the toolkit's labels.
const toolNamePath = "properties/choices/items/properties/tool_name"

// toolDecisionSchema is the base shape of a tool selection round before the
// tool_name property is constrained to the toolkit's label set.
func toolDecisionSchema() schema.Schema {
	return schema.Schema{
		"type":  "object",
		"title": "ToolDecision",
		"properties": map[string]any{
			"reasoning": map[string]any{
				"type":        "string",
				"description": "A step-by-step analysis of the current state, what has been done, and what should be done next.",
			},
			"choices": map[string]any{
				"type":        "array",
				"description": "The array of tool calls to run in parallel with their specific purpose.",
				"items": map[string]any{
					"type":  "object",
					"title": "ToolChoice",
					"properties": map[string]any{
						"tool_name": map[string]any{
							"type": "string",
						},
						"purpose": map[string]any{
							"type":        "string",
							"description": "A clear, specific explanation of what the tool should accomplish.",
						},
					},
					"required":             []string{"tool_name", "purpose"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"reasoning", "choices"},
		"additionalProperties": false,
	}
}

// purposeSchema types the isolated input each dispatched action receives:
// only its own purpose, never the purposes of sibling choices.
func purposeSchema() schema.Schema {
	return schema.Schema{
		"type": "object",
		"properties": map[string]any{
			"purpose": map[string]any{
				"type":        "string",
				"description": "What the tool call should accomplish.",
			},
		},
		"required": []string{"purpose"},
	}
}

// defaultQuestion prompts the tool selection at each step.
func defaultQuestion() string {
	return "Choose one or more tools to run next in parallel based on the current state."
}

// defaultInstructions returns the behavioral instructions for tool selection.
func defaultInstructions() []string {
	return []string{
		"Always reflect on your previous actions and their results to avoid redundancy.",
		"You can call the same tool multiple times if needed with different purposes.",
		"For each tool you select, provide a clear and specific purpose explaining what you want to achieve.",
		"Be strategic about parallel execution - choose tools that can run simultaneously without dependencies.",
		"If no more tools are needed to complete the task, return an empty choices array.",
		"Consider the context and information already available before selecting tools.",
	}
}
