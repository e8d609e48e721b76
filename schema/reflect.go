package schema

import (
	"reflect"
	"strings"
)

// FromStruct derives an object schema from a Go struct using reflection.
// Field names follow json tags; `description` tags become property
// descriptions. Fields are required unless they are pointers or carry
// omitempty. Nested structs and slices are descended into.
//
// Example:
//
//	type Query struct {
//		Query string `json:"query" description:"The user query"`
//	}
//	s := schema.FromStruct(Query{})
func FromStruct(v any) Schema {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Object()
	}
	s := structSchema(t)
	if title := t.Name(); title != "" {
		s["title"] = title
	}
	return s
}

func structSchema(t reflect.Type) Schema {
	properties := map[string]any{}
	required := []string{}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		if jsonTag != "" {
			if tagName := strings.Split(jsonTag, ",")[0]; tagName != "" {
				name = tagName
			}
		}

		fieldSchema := typeSchema(field.Type)
		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}
		properties[name] = map[string]any(fieldSchema)

		if !strings.Contains(jsonTag, "omitempty") && field.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}

	s := Schema{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func typeSchema(t reflect.Type) Schema {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return Schema{"type": "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Schema{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return Schema{"type": "number"}
	case reflect.Bool:
		return Schema{"type": "boolean"}
	case reflect.Slice, reflect.Array:
		return Schema{
			"type":  "array",
			"items": map[string]any(typeSchema(t.Elem())),
		}
	case reflect.Map:
		return Schema{"type": "object"}
	case reflect.Struct:
		nested := structSchema(t)
		if title := t.Name(); title != "" {
			nested["title"] = title
		}
		return nested
	default:
		return Schema{"type": "string"}
	}
}
