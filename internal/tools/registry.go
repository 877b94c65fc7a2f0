package tools

import (
	"fmt"

	"samhq.app/sam/common/llm"
	"samhq.app/sam/core/config"
)

// Catalog maps implementation paths (as written in sam.yaml) to definitions.
type Catalog map[string]Definition

// Registry holds the tools exposed to the model. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry resolves every declaration against the catalog. Unknown paths
// and duplicate names fail here, at startup, not when the model calls them.
func NewRegistry(decls []config.ToolDeclaration, catalog Catalog) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Tool, len(decls))}

	for _, decl := range decls {
		def, ok := catalog[decl.Path]
		if !ok {
			return nil, &UnknownPathError{Tool: decl.Name, Path: decl.Path}
		}
		if def.unavailable != "" {
			return nil, &UnavailableError{Tool: decl.Name, Path: decl.Path, Reason: def.unavailable}
		}
		if _, dup := r.tools[decl.Name]; dup {
			return nil, fmt.Errorf("tool %s declared twice", decl.Name)
		}

		tool, err := bind(decl.Name, def, decl.AdditionalInstructions)
		if err != nil {
			return nil, err
		}
		r.tools[decl.Name] = tool
		r.order = append(r.order, decl.Name)
	}

	return r, nil
}

// Lookup returns the named tool or a *ToolNotFoundError.
func (r *Registry) Lookup(name string) (*Tool, error) {
	if t, ok := r.tools[name]; ok {
		return t, nil
	}
	return nil, &ToolNotFoundError{Name: name}
}

// Declarations lists every tool in declaration order.
func (r *Registry) Declarations() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Declaration())
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}
