// Package value defines the two data units flowing through schemaflow graphs:
// SymbolicValue, a schema-only placeholder used while tracing, and DataValue,
// a schema plus conforming JSON payload produced by execution. Both are
// immutable; the algebra in this package always returns new values.
package value

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/schemaflow/schema"
)

// SymbolicValue is a named type descriptor with no data. Symbolic values are
// created by Input declarations and by shape inference during tracing; they
// never carry a payload.
type SymbolicValue struct {
	name string
	sch  schema.Schema
}

// NewSymbolic creates a symbolic value from a name and schema. The schema is
// copied; later mutation of the argument does not affect the value.
func NewSymbolic(name string, s schema.Schema) *SymbolicValue {
	return &SymbolicValue{name: name, sch: s.Clone()}
}

// Name returns the value's name.
func (v *SymbolicValue) Name() string { return v.name }

// Schema returns a copy of the value's schema.
func (v *SymbolicValue) Schema() schema.Schema { return v.sch.Clone() }

// DataValue pairs a schema with a concrete payload conforming to it.
type DataValue struct {
	sch     schema.Schema
	payload map[string]any
	raw     []byte
}

// NewData creates a data value from a schema and payload. The payload is
// snapshotted immediately; the caller may reuse or mutate its map afterwards.
func NewData(s schema.Schema, payload map[string]any) (*DataValue, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &DataValue{sch: s.Clone(), payload: decodePayload(raw), raw: raw}, nil
}

// NewDataFromJSON creates a data value from a schema and a raw JSON object.
func NewDataFromJSON(s schema.Schema, raw []byte) (*DataValue, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return &DataValue{sch: s.Clone(), payload: payload, raw: buf}, nil
}

// Schema returns a copy of the value's schema.
func (v *DataValue) Schema() schema.Schema { return v.sch.Clone() }

// Payload returns a deep copy of the payload object.
func (v *DataValue) Payload() map[string]any { return decodePayload(v.raw) }

// JSON returns the payload as a JSON object.
func (v *DataValue) JSON() []byte {
	buf := make([]byte, len(v.raw))
	copy(buf, v.raw)
	return buf
}

// Get queries the payload with a gjson path, e.g. "choices.#.tool_name".
func (v *DataValue) Get(path string) gjson.Result {
	return gjson.GetBytes(v.raw, path)
}

// String renders the payload as compact JSON.
func (v *DataValue) String() string { return string(v.raw) }

func decodePayload(raw []byte) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return map[string]any{}
	}
	return payload
}
