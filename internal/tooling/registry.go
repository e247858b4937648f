package tooling

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"billtool/internal/domain"
)

var (
	// ErrToolNotFound matches every *NotFoundError under errors.Is.
	ErrToolNotFound  = errors.New("tool not found")
	ErrDuplicateTool = errors.New("duplicate tool")
	ErrUnknownName   = errors.New("tool name is not catalogued")
	ErrIncomplete    = errors.New("registry is missing catalogued tools")
)

// NotFoundError is returned by Get for a name with no tool.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("unknown tool: %q", e.Name) }

func (e *NotFoundError) Is(target error) bool { return target == ErrToolNotFound }

// Registry maps tool names to tools. It is read-only once built and safe for
// concurrent use.
type Registry struct {
	tools map[Name]Tool
	names []Name
}

// NewRegistry builds a registry from tools. Every tool must have a catalogued
// name and no name may appear twice.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[Name]Tool, len(tools))}
	for i, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("tool #%d must not be nil", i)
		}
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool #%d has no name", i)
		}
		if !name.Known() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTool, name)
		}
		r.tools[name] = t
		r.names = append(r.names, name)
	}
	sort.Slice(r.names, func(i, j int) bool { return r.names[i] < r.names[j] })
	return r, nil
}

// Default returns the registry of every catalogued tool.
func Default() (*Registry, error) {
	r, err := NewRegistry(All()...)
	if err != nil {
		return nil, err
	}
	if missing := r.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIncomplete, joinNames(missing))
	}
	return r, nil
}

// Missing lists catalogued names that have no tool in r.
func (r *Registry) Missing() []Name {
	var out []Name
	for _, n := range Catalogue() {
		if _, ok := r.tools[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// Get returns the tool called name.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[Name(name)]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return t, nil
}

// Len returns the number of tools.
func (r *Registry) Len() int { return len(r.names) }

// Names returns tool names sorted.
func (r *Registry) Names() []Name {
	return append([]Name(nil), r.names...)
}

// Tools returns the tools sorted by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.tools[n])
	}
	return out
}

// Definitions describes every tool for listings and tool-calling hosts.
func (r *Registry) Definitions() []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, 0, len(r.names))
	for _, n := range r.names {
		t := r.tools[n]
		out = append(out, domain.ToolDefinition{
			Name:        string(n),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	return out
}

// Without returns a copy of r minus the named tools. Naming a tool r does not
// hold is an error.
func (r *Registry) Without(names ...string) (*Registry, error) {
	drop := make(map[Name]bool, len(names))
	for _, n := range names {
		if _, ok := r.tools[Name(n)]; !ok {
			return nil, &NotFoundError{Name: n}
		}
		drop[Name(n)] = true
	}
	out := &Registry{tools: make(map[Name]Tool, len(r.tools))}
	for _, n := range r.names {
		if drop[n] {
			continue
		}
		out.tools[n] = r.tools[n]
		out.names = append(out.names, n)
	}
	return out, nil
}

func joinNames(names []Name) string {
	s := make([]string, len(names))
	for i, n := range names {
		s[i] = string(n)
	}
	return strings.Join(s, ", ")
}
