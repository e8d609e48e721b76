// Package saving defines the serialization seam for modules. Modules expose
// a Config; rebuilding live modules from configs is handled by deserializers
// registered per module type, since runtime collaborators (models, tools)
// cannot travel inside a checkpoint.
package saving

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/schemaflow/graph"
)

// Config is the persisted form of a module: its name, a type discriminator
// and opaque type-specific settings.
type Config struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// Serializable is implemented by anything that can produce a Config.
type Serializable interface {
	Config() (Config, error)
}

// Deserializer rebuilds a live operation from its config. Runtime
// dependencies are captured in the closure at registration time.
type Deserializer func(cfg Config) (graph.Operation, error)

// Registry maps module type discriminators to deserializers. Safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]Deserializer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: map[string]Deserializer{}}
}

// Register installs a deserializer for a module type. Registering the same
// type twice is an error.
func (r *Registry) Register(moduleType string, fn Deserializer) error {
	if moduleType == "" {
		return fmt.Errorf("saving: empty module type")
	}
	if fn == nil {
		return fmt.Errorf("saving: nil deserializer for type %q", moduleType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byType[moduleType]; dup {
		return fmt.Errorf("saving: deserializer for type %q already registered", moduleType)
	}
	r.byType[moduleType] = fn
	return nil
}

// Deserialize rebuilds an operation from cfg using the registered
// deserializer for its type.
func (r *Registry) Deserialize(cfg Config) (graph.Operation, error) {
	r.mu.RLock()
	fn, ok := r.byType[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("saving: no deserializer registered for type %q", cfg.Type)
	}
	return fn(cfg)
}
