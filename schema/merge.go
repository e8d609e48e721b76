package schema

import (
	"fmt"
	"reflect"
)

// maxRenameAttempts bounds suffix probing during collision resolution.
// Exhausting it indicates a pathological schema and surfaces as a
// MergeConflictError.
const maxRenameAttempts = 1000

// MergeConflictError reports a property or definition collision that could
// not be resolved by suffix renaming.
type MergeConflictError struct {
	Property string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("schema merge conflict: unable to rename colliding property %q", e.Property)
}

// Merge unions the properties of a and b into a new object schema. Neither
// operand is modified.
//
// On a property name collision the colliding property from b is renamed by
// appending "_1", "_2", ... until unique. Definitions under b's $defs that
// collide with differing definitions in a's $defs are renamed the same way,
// with every "#/$defs/..." reference inside b rewritten to match. Required
// lists are unioned, with renamed entries tracked.
//
// The returned rename map records b-side property renames (original name to
// new name) so callers merging payloads can keep data in lock-step with the
// descriptor.
func Merge(a, b Schema) (Schema, map[string]string, error) {
	out := a.Clone()
	if out == nil {
		out = Object()
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	bc := b.Clone()
	if bc == nil {
		bc = Object()
	}

	// Resolve $defs collisions first so property subschemas from b carry
	// rewritten references when copied over.
	if bDefs := bc.Defs(); len(bDefs) > 0 {
		outDefs := out.ensureDefs()
		for name, def := range bDefs {
			existing, collides := outDefs[name]
			if collides && reflect.DeepEqual(existing, def) {
				continue // identical definition, share it
			}
			target := name
			if collides {
				renamed, ok := freeName(name, func(candidate string) bool {
					_, taken := outDefs[candidate]
					return taken
				})
				if !ok {
					return nil, nil, &MergeConflictError{Property: name}
				}
				target = renamed
				rewriteRefs(map[string]any(bc), "#/$defs/"+name, "#/$defs/"+target)
			}
			outDefs[target] = def
		}
		if len(outDefs) == 0 {
			delete(out, "$defs")
		}
	}

	outProps, ok := out["properties"].(map[string]any)
	if !ok {
		outProps = map[string]any{}
		out["properties"] = outProps
	}

	renames := map[string]string{}
	for name, prop := range bc.Properties() {
		target := name
		if _, collides := outProps[name]; collides {
			renamed, ok := freeName(name, func(candidate string) bool {
				if _, taken := outProps[candidate]; taken {
					return true
				}
				_, taken := bc.Properties()[candidate]
				return taken
			})
			if !ok {
				return nil, nil, &MergeConflictError{Property: name}
			}
			target = renamed
			renames[name] = renamed
		}
		outProps[target] = prop
	}

	required := unionRequired(out.Required(), bc.Required(), renames)
	if len(required) > 0 {
		out["required"] = required
	}

	return out, renames, nil
}

// freeName probes name_1, name_2, ... returning the first candidate for which
// taken reports false.
func freeName(name string, taken func(string) bool) (string, bool) {
	for i := 1; i <= maxRenameAttempts; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !taken(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// unionRequired merges required lists preserving first-seen order, applying
// renames to the second operand's entries.
func unionRequired(a, b []string, renames map[string]string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(a)+len(b))
	for _, name := range a {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, name := range b {
		if renamed, ok := renames[name]; ok {
			name = renamed
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// rewriteRefs walks v replacing every "$ref" equal to from with to.
func rewriteRefs(v any, from, to string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if k == "$ref" {
				if ref, ok := child.(string); ok && ref == from {
					t[k] = to
				}
				continue
			}
			rewriteRefs(child, from, to)
		}
	case []any:
		for _, child := range t {
			rewriteRefs(child, from, to)
		}
	}
}
