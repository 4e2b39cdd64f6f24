package provider

import (
	"fmt"
	"sort"
)

// Registry holds the known providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers ps. Duplicate names are an error.
func NewRegistry(ps ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds p.
func (r *Registry) Register(p Provider) error {
	if p.Name() == "" {
		return fmt.Errorf("provider has no name")
	}
	if !p.Type().Valid() {
		return fmt.Errorf("provider %s: invalid type %q", p.Name(), p.Type())
	}
	if _, dup := r.providers[p.Name()]; dup {
		return fmt.Errorf("provider %s registered twice", p.Name())
	}
	r.providers[p.Name()] = p
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// All returns the providers sorted by name.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
