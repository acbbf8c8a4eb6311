package gpumetrics

import (
	"fmt"
	"sort"
)

// Registry maps revision pairs to layouts. A Registry is never mutated after
// construction and may be shared freely between goroutines.
type Registry struct {
	layouts map[Revision]*Layout
}

// NewRegistry builds a registry from layouts, rejecting duplicate revisions.
func NewRegistry(layouts ...*Layout) (*Registry, error) {
	registry := &Registry{layouts: make(map[Revision]*Layout, len(layouts))}
	for _, layout := range layouts {
		if layout == nil {
			return nil, fmt.Errorf("nil layout")
		}
		if _, dup := registry.layouts[layout.Revision()]; dup {
			return nil, fmt.Errorf("duplicate layout for revision %s", layout.Revision())
		}
		registry.layouts[layout.Revision()] = layout
	}
	return registry, nil
}

var defaultRegistry = func() *Registry {
	registry, err := NewRegistry(builtinLayouts()...)
	if err != nil {
		panic(err)
	}
	return registry
}()

// DefaultRegistry returns the registry of every layout published by the amdgpu driver.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Resolve returns the layout registered for exactly (format, content).
// There is no fallback to neighbouring revisions.
func (r *Registry) Resolve(format, content uint8) (*Layout, error) {
	layout, ok := r.layouts[Revision{Format: format, Content: content}]
	if !ok {
		return nil, &RevisionError{Header: Header{FormatRevision: format, ContentRevision: content}}
	}
	return layout, nil
}

// Revisions lists registered revisions in ascending order.
func (r *Registry) Revisions() []Revision {
	revs := make([]Revision, 0, len(r.layouts))
	for rev := range r.layouts {
		revs = append(revs, rev)
	}
	sort.Slice(revs, func(i, j int) bool {
		return revs[i].less(revs[j])
	})
	return revs
}

// Layouts returns the registered layouts ordered by revision.
func (r *Registry) Layouts() []*Layout {
	revs := r.Revisions()
	out := make([]*Layout, 0, len(revs))
	for _, rev := range revs {
		out = append(out, r.layouts[rev])
	}
	return out
}
