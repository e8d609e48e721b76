package graph

import (
	"fmt"
	"sync"
)

// Namer hands out deterministic unique names within a scope. The first
// request for a base name returns it unchanged; subsequent requests append
// "_1", "_2", and so on. Each Trace owns its own Namer, keeping node naming
// reproducible without process-wide state.
type Namer struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewNamer creates an empty naming scope.
func NewNamer() *Namer {
	return &Namer{counts: map[string]int{}}
}

// Name returns a unique name derived from base within this scope.
func (n *Namer) Name(base string) string {
	if base == "" {
		base = "op"
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	count := n.counts[base]
	n.counts[base] = count + 1
	if count == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, count)
}

// Reset clears the scope so names can be reissued. Intended for tests that
// need reproducible names across runs.
func (n *Namer) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts = map[string]int{}
}
