package value

import (
	"errors"
	"fmt"
)

// ErrInvalidCombination is returned by Concat when either operand is absent.
// Absence is represented by a nil value.
var ErrInvalidCombination = errors.New("invalid combination of values")

// Concat merges two data values into a new one. Both operands must be
// present; concatenating with an absent (nil) value fails with
// ErrInvalidCombination.
//
// The merged schema is the union of both operands' properties, with second
// operand collisions renamed by numeric suffix; the payload is merged under
// the same renames so schema and data stay in lock-step.
func Concat(a, b *DataValue) (*DataValue, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("concat requires both operands: %w", ErrInvalidCombination)
	}
	return mergeData(a, b)
}

// LogicalAnd merges two data values, yielding absent (nil) if either operand
// is absent.
func LogicalAnd(a, b *DataValue) (*DataValue, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	return mergeData(a, b)
}

// LogicalOr merges two data values, yielding the present operand when the
// other is absent, and absent when both are.
func LogicalOr(a, b *DataValue) (*DataValue, error) {
	switch {
	case a == nil && b == nil:
		return nil, nil
	case a == nil:
		return b, nil
	case b == nil:
		return a, nil
	}
	return mergeData(a, b)
}

// ConcatSymbolic is the schema-level counterpart of Concat, used during
// tracing where no payloads exist yet.
func ConcatSymbolic(a, b *SymbolicValue) (*SymbolicValue, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("concat requires both operands: %w", ErrInvalidCombination)
	}
	return mergeSymbolic(a, b)
}

// LogicalAndSymbolic is the schema-level counterpart of LogicalAnd.
func LogicalAndSymbolic(a, b *SymbolicValue) (*SymbolicValue, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	return mergeSymbolic(a, b)
}

// LogicalOrSymbolic is the schema-level counterpart of LogicalOr.
func LogicalOrSymbolic(a, b *SymbolicValue) (*SymbolicValue, error) {
	switch {
	case a == nil && b == nil:
		return nil, nil
	case a == nil:
		return b, nil
	case b == nil:
		return a, nil
	}
	return mergeSymbolic(a, b)
}

// ConcatAll folds Concat over one or more values left to right.
func ConcatAll(values ...*DataValue) (*DataValue, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("concat requires at least one operand: %w", ErrInvalidCombination)
	}
	out := values[0]
	if out == nil {
		return nil, fmt.Errorf("concat requires both operands: %w", ErrInvalidCombination)
	}
	var err error
	for _, v := range values[1:] {
		out, err = Concat(out, v)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
