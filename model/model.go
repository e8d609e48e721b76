// Package model defines the structured-output language model contract the
// engine depends on, together with an in-memory mock for tests and examples.
// A backend receives a JSON Schema and must return a payload that validates
// against it (strict mode); the engine relies only on that guarantee, never
// on how a provider enforces it.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/schemaflow/schema"
)

// Request is a single structured-output generation call.
type Request struct {
	// Instructions holds the system prompt.
	Instructions string
	// Prompt is the rendered user prompt.
	Prompt string
	// Schema constrains the response payload. Providers must enforce it in
	// strict mode, including any $defs the schema carries.
	Schema schema.Schema
}

// TokenUsage captures token accounting for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response carries the schema-conforming payload returned by a backend.
type Response struct {
	Payload json.RawMessage
	Usage   *TokenUsage
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model is the minimal interface the engine needs to drive generation.
type Model interface {
	// Generate produces a payload validating against req.Schema. The call
	// suspends on the network; implementations must honor ctx cancellation.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a deterministic in-memory Model for tests and examples. It
// replays a queue of canned payloads, or delegates to a handler function when
// one is set. Safe for concurrent use.
type MockModel struct {
	mu      sync.Mutex
	queue   []json.RawMessage
	handler func(ctx context.Context, req Request) (json.RawMessage, error)
	calls   []Request
}

// NewMockModel constructs an empty MockModel.
func NewMockModel() *MockModel {
	return &MockModel{}
}

// Enqueue appends a canned payload to the replay queue.
func (m *MockModel) Enqueue(payload string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, json.RawMessage(payload))
	return m
}

// SetHandler routes all generation through fn instead of the queue.
func (m *MockModel) SetHandler(fn func(ctx context.Context, req Request) (json.RawMessage, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Calls returns the requests seen so far, in order.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	handler := m.handler
	var payload json.RawMessage
	if handler == nil {
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return nil, fmt.Errorf("mock model: no canned payload left for request")
		}
		payload = m.queue[0]
		m.queue = m.queue[1:]
	}
	m.mu.Unlock()

	if handler != nil {
		var err error
		payload, err = handler(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	return &Response{Payload: payload}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info {
	return Info{Name: "mock", Provider: "mock"}
}
