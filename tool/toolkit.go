package tool

import (
	"fmt"
)

// Toolkit is the fixed, ordered set of named tools available to an agent
// instance. It is read-only after construction, which is what makes
// concurrent dispatch across loop rounds safe without locking.
type Toolkit struct {
	order []string
	tools map[string]Tool
}

// NewToolkit builds a toolkit from one or more tools. Names must be unique
// and non-empty.
func NewToolkit(tools ...Tool) (*Toolkit, error) {
	if len(tools) == 0 {
		return nil, fmt.Errorf("toolkit requires at least one tool")
	}
	tk := &Toolkit{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("toolkit: nil tool")
		}
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("toolkit: tool with empty name")
		}
		if _, dup := tk.tools[name]; dup {
			return nil, fmt.Errorf("toolkit: duplicate tool name %q", name)
		}
		tk.tools[name] = t
		tk.order = append(tk.order, name)
	}
	return tk, nil
}

// Labels returns the tool names in registration order. This is the label set
// decisions are constrained to.
func (tk *Toolkit) Labels() []string {
	out := make([]string, len(tk.order))
	copy(out, tk.order)
	return out
}

// Get returns the tool registered under name.
func (tk *Toolkit) Get(name string) (Tool, bool) {
	t, ok := tk.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (tk *Toolkit) Len() int { return len(tk.order) }
