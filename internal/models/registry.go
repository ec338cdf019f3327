package models

import (
	"fmt"
	"sort"
)

type Registry struct {
	models map[string]func() Binding
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]func() Binding)}

	r.Register("oscillator", func() Binding { return NewOscillator() })
	r.Register("pendulum", func() Binding { return NewPendulum() })
	r.Register("vanderpol", func() Binding { return NewVanDerPol() })

	return r
}

func (r *Registry) Register(name string, fn func() Binding) {
	r.models[name] = fn
}

func (r *Registry) Get(name string) (Binding, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s (available: %v)", name, r.List())
	}
	b := fn()
	if err := Validate(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
