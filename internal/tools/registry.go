// Package tools provides the tool registry and the hosted search tools.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vinayprograms/agentkit/policy"
	"github.com/vinayprograms/agentkit/tools"

	"github.com/vinayprograms/leadsynapse/internal/llm"
)

// Tool represents an executable tool.
type Tool = tools.Tool

// Registry exposes the search tools through an agentkit registry, so every
// call is traced as a tool span. Only tools registered here are visible;
// agentkit's filesystem and shell builtins are never offered to a crew.
type Registry struct {
	mu    sync.RWMutex
	inner *tools.Registry
	names map[string]bool
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{
		inner: tools.NewRegistry(policy.New()),
		names: make(map[string]bool),
	}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inner.Register(t)
	r.names[t.Name()] = true
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	if !r.Has(name) {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inner.Get(name)
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[name]
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs a registered tool inside a tool span.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	if !r.Has(name) {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	r.mu.RLock()
	inner := r.inner
	r.mu.RUnlock()
	return inner.Execute(ctx, name, args)
}

// Definitions returns LLM-facing definitions for the named tools, or for
// every tool when no names are given. Output is sorted by name.
func (r *Registry) Definitions(names ...string) ([]llm.ToolDef, error) {
	if len(names) == 0 {
		names = r.Names()
	} else {
		names = append([]string(nil), names...)
		sort.Strings(names)
	}
	defs := make([]llm.ToolDef, 0, len(names))
	for _, name := range names {
		t := r.Get(name)
		if t == nil {
			return nil, fmt.Errorf("tool %q not registered", name)
		}
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs, nil
}

func stringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}
