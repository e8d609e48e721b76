package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validate checks that payload conforms to s. The structured-output backends
// are expected to enforce this themselves (strict mode); Validate exists for
// tool argument checking and for tests exercising mutated schemas.
func Validate(s Schema, payload map[string]any) error {
	compiled, err := compile(s)
	if err != nil {
		return err
	}
	doc, err := normalize(payload)
	if err != nil {
		return err
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("payload does not conform to schema: %w", err)
	}
	return nil
}

func compile(s Schema) (*jsonschema.Schema, error) {
	doc, err := normalize(map[string]any(s))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// normalize round-trips v through encoding/json so the validator sees plain
// decoded JSON values regardless of the Go types callers built the document
// from.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
