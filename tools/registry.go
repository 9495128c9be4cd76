// Package tools defines the Tool interface the response engine invokes and a
// Registry for assembling the tool set offered to the model.
package tools

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type Tool interface {
	Name() string
	Description() string
	// ParameterSchema returns a JSON Schema document describing the tool's
	// arguments.
	ParameterSchema() string
	Execute(ctx context.Context, params map[string]any) (string, error)
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(t Tool) {
	if r == nil || t == nil {
		return
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return
	}
	r.mu.Lock()
	r.tools[name] = t
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	t, ok := r.tools[strings.TrimSpace(name)]
	r.mu.RUnlock()
	return t, ok
}

// All returns the registered tools sorted by name.
func (r *Registry) All() []Tool {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Clone returns a shallow copy so callers can add event-scoped tools without
// mutating the shared base registry.
func (r *Registry) Clone() *Registry {
	out := NewRegistry()
	if r == nil {
		return out
	}
	r.mu.RLock()
	for name, t := range r.tools {
		out.tools[name] = t
	}
	r.mu.RUnlock()
	return out
}
