package value

import (
	"fmt"

	"github.com/hupe1980/schemaflow/schema"
)

// mergeData merges schema and payload together, applying the schema-level
// property renames to the second operand's payload keys.
func mergeData(a, b *DataValue) (*DataValue, error) {
	mergedSchema, renames, err := schema.Merge(a.sch, b.sch)
	if err != nil {
		return nil, err
	}

	payload := a.Payload()
	for key, val := range b.Payload() {
		if renamed, ok := renames[key]; ok {
			key = renamed
		}
		payload[key] = val
	}

	return NewData(mergedSchema, payload)
}

func mergeSymbolic(a, b *SymbolicValue) (*SymbolicValue, error) {
	mergedSchema, _, err := schema.Merge(a.sch, b.sch)
	if err != nil {
		return nil, err
	}
	return NewSymbolic(mergedName(a.name, b.name), mergedSchema), nil
}

func mergedName(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return fmt.Sprintf("%s_%s", a, b)
}
