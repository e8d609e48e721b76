package schema

import (
	"fmt"
	"strings"
)

// ConstrainEnum returns a copy of s in which the property at path is replaced
// by a reference to a new string enum definition limited to labels. The
// original schema is never modified.
//
// Path is slash separated and traverses the schema document, typically
// through "properties" for objects and "items" for arrays, e.g.
// "properties/choices/items/properties/tool_name". Intermediate containers
// are created when absent. The enum definition is installed under a top-level
// $defs table with a title derived from the last path segment.
//
// Used to constrain a structured-output call so the provider cannot emit a
// label outside the set.
func ConstrainEnum(s Schema, path string, labels []string, description string) (Schema, error) {
	if path == "" {
		return nil, fmt.Errorf("constrain enum: empty property path")
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("constrain enum: no labels for path %q", path)
	}

	out := s.Clone()
	if out == nil {
		out = Object()
	}

	segments := strings.Split(path, "/")
	title := enumTitle(segments[len(segments)-1])

	definition := map[string]any{
		"enum":  toAnySlice(labels),
		"title": title,
		"type":  "string",
	}
	if description != "" {
		definition["description"] = description
	}
	out.ensureDefs()[title] = definition

	cursor := map[string]any(out)
	for _, segment := range segments[:len(segments)-1] {
		next, ok := cursor[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			cursor[segment] = next
		}
		cursor = next
	}
	cursor[segments[len(segments)-1]] = map[string]any{"$ref": "#/$defs/" + title}

	return out, nil
}

// enumTitle derives a definition title from a path segment: singularized,
// underscores dropped, each word title-cased ("tool_names" -> "ToolName").
func enumTitle(segment string) string {
	if len(segment) > 1 && strings.HasSuffix(segment, "s") && !strings.HasSuffix(segment, "ss") {
		segment = strings.TrimSuffix(segment, "s")
	}
	var b strings.Builder
	for _, word := range strings.Split(segment, "_") {
		if word == "" {
			continue
		}
		b.WriteString(strings.ToUpper(word[:1]))
		b.WriteString(word[1:])
	}
	if b.Len() == 0 {
		return "Choice"
	}
	return b.String()
}

func toAnySlice(labels []string) []any {
	out := make([]any, len(labels))
	for i, l := range labels {
		out[i] = l
	}
	return out
}
