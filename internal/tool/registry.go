// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package tool

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

type entry struct {
	tool      Tool
	schema    json.RawMessage
	validator *jschema.Schema
}

// Registry manages tool registration and lookup.
// It is safe for concurrent use.
type Registry struct {
	tools map[string]*entry
	mu    sync.RWMutex
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*entry),
	}
}

// Register adds a tool and compiles its argument schema. Registering a name
// twice is an error.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return oops.Code(CodeInvalidTool).
			With("tool", t.Name).
			Errorf("tool needs a name and a handler")
	}

	schema, validator, err := compileSchema(t.Name, t.Input)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[t.Name]; ok {
		return oops.Code(CodeDuplicateTool).
			With("tool", t.Name).
			Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = &entry{tool: t, schema: schema, validator: validator}
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	e, ok := r.get(name)
	if !ok {
		return Tool{}, false
	}
	return e.tool, true
}

func (r *Registry) get(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	return e, ok
}

// Descriptor is the advertised form of a tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// List returns the descriptors of all tools, sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, Descriptor{
			Name:        e.tool.Name,
			Description: e.tool.Description,
			InputSchema: slices.Clone(e.schema),
		})
	}
	slices.SortFunc(out, func(a, b Descriptor) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
