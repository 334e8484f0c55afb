// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package hostapi

import (
	"fmt"
	"strings"
)

// Module is a native capability module.
// Install registers the module's namespace, functions and opaque types.
type Module interface {
	Name() string
	Install(reg *Registry) error
}

// Resetter is implemented by modules holding per-script native state.
// Reset releases that state so a freshly loaded script starts clean.
type Resetter interface {
	Reset()
}

// Func is the native implementation of a script-callable function.
type Func func(call *Call) (Value, error)

// Param documents one parameter. Type is the script-facing type name
// ("number", "string", "boolean", "any" or an opaque type name).
type Param struct {
	Name     string
	Type     string
	Optional bool
}

// Function is a free function or a method of an opaque type.
type Function struct {
	Name    string
	Doc     string
	Params  []Param
	Returns string

	// Variadic accepts any number of trailing arguments after Params.
	Variadic bool

	// Coerce converts arguments that are not Values (objects, arrays,
	// functions) to their string form instead of rejecting them.
	Coerce bool

	Fn Func

	qualified string
}

// Arity returns the accepted argument count range; max is -1 when variadic.
func (f *Function) Arity() (min, max int) {
	for _, p := range f.Params {
		if !p.Optional {
			min++
		}
	}
	if f.Variadic {
		return min, -1
	}
	return min, len(f.Params)
}

// QualifiedName returns "namespace.name" or "Type.name".
func (f *Function) QualifiedName() string {
	if f.qualified == "" {
		return f.Name
	}
	return f.qualified
}

// Signature renders the parameter list for docs and diagnostics.
func (f *Function) Signature() string {
	parts := make([]string, 0, len(f.Params)+1)
	for _, p := range f.Params {
		s := p.Name
		if p.Optional {
			s += "?"
		}
		parts = append(parts, s+": "+p.Type)
	}
	if f.Variadic {
		parts = append(parts, "...rest: any[]")
	}
	returns := f.Returns
	if returns == "" {
		returns = "void"
	}
	return fmt.Sprintf("%s(%s): %s", f.Name, strings.Join(parts, ", "), returns)
}

// Type is an opaque native type exposed to scripts through handles.
type Type struct {
	Name      string
	Doc       string
	Namespace string

	methods []*Function
	byName  map[string]*Function
}

// Method registers a method on the type.
func (t *Type) Method(fn *Function) error {
	if err := validateName(fn.Name); err != nil {
		return fmt.Errorf("method %s.%s: %w", t.Name, fn.Name, err)
	}
	if fn.Fn == nil {
		return fmt.Errorf("method %s.%s has no implementation", t.Name, fn.Name)
	}
	if t.byName == nil {
		t.byName = make(map[string]*Function)
	}
	if _, exists := t.byName[fn.Name]; exists {
		return fmt.Errorf("method %s.%s: %w", t.Name, fn.Name, ErrDuplicateName)
	}
	fn.qualified = t.Name + "." + fn.Name
	t.byName[fn.Name] = fn
	t.methods = append(t.methods, fn)
	return nil
}

// Methods returns the methods in registration order.
func (t *Type) Methods() []*Function {
	out := make([]*Function, len(t.methods))
	copy(out, t.methods)
	return out
}

// LookupMethod finds a method by name.
func (t *Type) LookupMethod(name string) (*Function, bool) {
	fn, ok := t.byName[name]
	return fn, ok
}

// Namespace is the set of functions and types one module installs under a
// stable global name.
type Namespace struct {
	Name   string
	Doc    string
	Module string

	reg    *Registry
	funcs  []*Function
	byName map[string]*Function
	types  []*Type
}

// Func registers a free function in the namespace.
func (ns *Namespace) Func(fn *Function) error {
	if err := validateName(fn.Name); err != nil {
		return fmt.Errorf("function %s.%s: %w", ns.Name, fn.Name, err)
	}
	if fn.Fn == nil {
		return fmt.Errorf("function %s.%s has no implementation", ns.Name, fn.Name)
	}
	if _, exists := ns.byName[fn.Name]; exists {
		return fmt.Errorf("function %s.%s: %w", ns.Name, fn.Name, ErrDuplicateName)
	}
	fn.qualified = ns.Name + "." + fn.Name
	ns.byName[fn.Name] = fn
	ns.funcs = append(ns.funcs, fn)
	return nil
}

// Type registers an opaque type owned by the namespace.
// Type names are global across all namespaces.
func (ns *Namespace) Type(name, doc string) (*Type, error) {
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("type %s: %w", name, err)
	}
	t := &Type{Name: name, Doc: doc, Namespace: ns.Name, byName: make(map[string]*Function)}
	if !ns.reg.types.Set(name, t) {
		return nil, fmt.Errorf("type %s: %w", name, ErrDuplicateName)
	}
	ns.types = append(ns.types, t)
	return t, nil
}

// Funcs returns the functions in registration order.
func (ns *Namespace) Funcs() []*Function {
	out := make([]*Function, len(ns.funcs))
	copy(out, ns.funcs)
	return out
}

// Types returns the opaque types in registration order.
func (ns *Namespace) Types() []*Type {
	out := make([]*Type, len(ns.types))
	copy(out, ns.types)
	return out
}

// Lookup finds a function by name.
func (ns *Namespace) Lookup(name string) (*Function, bool) {
	fn, ok := ns.byName[name]
	return fn, ok
}

// reservedNames cannot be claimed by modules: they are the script entry
// point or globals the runtime relies on.
var reservedNames = map[string]bool{
	"Main":       true,
	"globalThis": true,
	"undefined":  true,
	"Object":     true,
	"Function":   true,
	"Array":      true,
	"Math":       true,
	"JSON":       true,
	"Error":      true,
	"eval":       true,
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return fmt.Errorf("%w: %q is not an identifier", ErrInvalidName, name)
		}
	}
	return nil
}
