// Package schema implements the JSON Schema descriptors that type every value
// flowing through a schemaflow graph. It provides deep copying, the
// merge-with-rename operation backing the value algebra, a dynamic enum
// mutator for constraining structured output, a reflection based schema
// builder and payload validation.
package schema

import (
	"sort"
	"strings"
)

// Schema is a JSON Schema document represented as a generic JSON object.
// Schemas are treated as immutable: every operation in this package returns a
// fresh copy and never writes into its operands.
type Schema map[string]any

// Object returns an empty object schema.
func Object() Schema {
	return Schema{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// String returns a plain string schema, optionally with a description.
func String(description string) Schema {
	s := Schema{"type": "string"}
	if description != "" {
		s["description"] = description
	}
	return s
}

// Clone returns a deep copy of the schema. The copy shares no mutable state
// with the original.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	return Schema(deepCopyMap(map[string]any(s)))
}

// Properties returns the properties table, or nil if absent.
func (s Schema) Properties() map[string]any {
	p, _ := s["properties"].(map[string]any)
	return p
}

// Required returns the required property names, or nil if absent.
func (s Schema) Required() []string {
	switch r := s["required"].(type) {
	case []string:
		return r
	case []any:
		out := make([]string, 0, len(r))
		for _, v := range r {
			if str, ok := v.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Defs returns the $defs table, or nil if absent.
func (s Schema) Defs() map[string]any {
	d, _ := s["$defs"].(map[string]any)
	return d
}

// PropertyNames returns the property names in sorted order. Useful for
// deterministic logging and tests; JSON objects carry no order.
func (s Schema) PropertyNames() []string {
	props := s.Properties()
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Title returns the schema title, or "" if absent.
func (s Schema) Title() string {
	t, _ := s["title"].(string)
	return t
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case Schema:
		return deepCopyMap(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return t
	}
}

// ensureDefs returns the $defs table of s, creating it if absent.
func (s Schema) ensureDefs() map[string]any {
	if d, ok := s["$defs"].(map[string]any); ok {
		return d
	}
	d := map[string]any{}
	s["$defs"] = d
	return d
}

// refTarget extracts the definition name from a "#/$defs/Name" reference,
// returning "" for anything else.
func refTarget(ref string) string {
	const prefix = "#/$defs/"
	if strings.HasPrefix(ref, prefix) {
		return strings.TrimPrefix(ref, prefix)
	}
	return ""
}
