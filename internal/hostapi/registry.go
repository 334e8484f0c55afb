// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package hostapi

import (
	"fmt"

	"github.com/aplane-algo/kestrel/internal/util"
)

// Registry holds every installed capability module and the namespaces and
// opaque types they registered. It is built once at startup and is read-only
// afterwards; one registry may back several script runtimes in turn (hot
// reload creates a new runtime over the same registry).
type Registry struct {
	namespaces *util.StringRegistry[*Namespace]
	types      *util.StringRegistry[*Type]
	modules    []Module
	order      []string
	installing string
	sealed     bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		namespaces: util.NewStringRegistry[*Namespace](),
		types:      util.NewStringRegistry[*Type](),
	}
}

// Install installs modules in order. The first failure aborts and is
// returned as an *InstallError; whatever the failing module registered is
// rolled back.
func (r *Registry) Install(mods ...Module) error {
	for _, m := range mods {
		if err := r.install(m); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) install(m Module) error {
	name := m.Name()
	if r.sealed {
		return &InstallError{Module: name, Cause: ErrRegistrySealed}
	}

	nsBefore := len(r.order)
	r.installing = name
	err := m.Install(r)
	r.installing = ""
	if err != nil {
		r.rollback(nsBefore)
		return &InstallError{Module: name, Cause: err}
	}

	r.modules = append(r.modules, m)
	return nil
}

// rollback drops namespaces (and their types) registered after index keep.
func (r *Registry) rollback(keep int) {
	for _, nsName := range r.order[keep:] {
		if ns, ok := r.namespaces.Get(nsName); ok {
			for _, t := range ns.types {
				r.types.Delete(t.Name)
			}
		}
		r.namespaces.Delete(nsName)
	}
	r.order = r.order[:keep]
}

// Namespace claims a global namespace for the module being installed.
// Claiming a name another module already owns is an error.
func (r *Registry) Namespace(name, doc string) (*Namespace, error) {
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("namespace: %w", err)
	}
	if reservedNames[name] {
		return nil, fmt.Errorf("namespace %q: %w: reserved", name, ErrInvalidName)
	}
	ns := &Namespace{
		Name:   name,
		Doc:    doc,
		Module: r.installing,
		reg:    r,
		byName: make(map[string]*Function),
	}
	if !r.namespaces.Set(name, ns) {
		owner, _ := r.namespaces.Get(name)
		return nil, fmt.Errorf("namespace %q (owned by module %s): %w", name, owner.Module, ErrDuplicateName)
	}
	r.order = append(r.order, name)
	return ns, nil
}

// Seal rejects further installs.
func (r *Registry) Seal() {
	r.sealed = true
}

// Lookup finds a namespace by name.
func (r *Registry) Lookup(name string) (*Namespace, bool) {
	return r.namespaces.Get(name)
}

// Namespaces returns namespaces in install order.
func (r *Registry) Namespaces() []*Namespace {
	out := make([]*Namespace, 0, len(r.order))
	for _, name := range r.order {
		if ns, ok := r.namespaces.Get(name); ok {
			out = append(out, ns)
		}
	}
	return out
}

// Type finds an opaque type by name.
func (r *Registry) Type(name string) (*Type, bool) {
	return r.types.Get(name)
}

// Types returns all opaque types sorted by name.
func (r *Registry) Types() []*Type {
	return r.types.Values()
}

// Modules returns installed modules in install order.
func (r *Registry) Modules() []Module {
	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Reset asks every module holding per-script native state to release it.
func (r *Registry) Reset() {
	for _, m := range r.modules {
		if rs, ok := m.(Resetter); ok {
			rs.Reset()
		}
	}
}

// Completions returns "namespace.function" names for every installed function.
func (r *Registry) Completions() []string {
	var out []string
	for _, ns := range r.Namespaces() {
		for _, fn := range ns.funcs {
			out = append(out, fn.QualifiedName())
		}
	}
	return out
}
