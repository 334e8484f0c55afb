// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package scripting

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"

	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// hostRef is one `namespace.member` expression found in the script.
type hostRef struct {
	ns     string
	member string
	offset int
	// args is the argument count when the reference is called directly,
	// -1 otherwise or when a spread argument makes the count unknown.
	args int
	// scope is the innermost scope enclosing the reference.
	scope *scope
}

// checkProgram resolves every `ns.member` reference where ns is an
// installed namespace not bound by an enclosing scope. It returns the
// referenced namespaces and a diagnostic for each unknown member,
// argument count outside the function's arity, or top-level declaration
// that collides with an installed namespace.
func checkProgram(reg *hostapi.Registry, src Source, prog *ast.Program) ([]string, []Diagnostic) {
	c := &checker{
		reg:    reg,
		seen:   make(map[uintptr]bool),
		called: make(map[*ast.DotExpression]int),
	}
	c.push(true)
	c.walk(reflect.ValueOf(prog))

	var diags []Diagnostic
	for _, r := range c.redeclared {
		diags = append(diags, c.diag(src, int(r.Idx)-1,
			fmt.Sprintf("%s redeclares an installed namespace", r.Name)))
	}

	used := make(map[string]bool)
	for _, ref := range c.refs {
		if ref.scope.shadows(ref.ns) {
			continue
		}
		ns, ok := reg.Lookup(ref.ns)
		if !ok {
			continue
		}
		used[ref.ns] = true

		fn, ok := ns.Lookup(ref.member)
		if !ok {
			diags = append(diags, c.diag(src, ref.offset,
				fmt.Sprintf("%s.%s is not defined by module %s", ref.ns, ref.member, ns.Module)))
			continue
		}
		if ref.args < 0 {
			continue
		}
		min, max := fn.Arity()
		if ref.args < min || (max >= 0 && ref.args > max) {
			diags = append(diags, c.diag(src, ref.offset,
				fmt.Sprintf("%s expects %s, called with %d", fn.QualifiedName(), arityText(min, max), ref.args)))
		}
	}
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Line != diags[j].Line {
			return diags[i].Line < diags[j].Line
		}
		return diags[i].Column < diags[j].Column
	})

	namespaces := make([]string, 0, len(used))
	for ns := range used {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	return namespaces, diags
}

// scope holds the names bound by one function, block, class or catch
// clause. The program scope has no parent.
type scope struct {
	parent *scope
	fn     bool
	names  map[string]bool
}

// shadows reports whether a scope below the program scope binds name.
// Scopes are complete once the walk ends, so hoisted bindings count.
func (s *scope) shadows(name string) bool {
	for ; s != nil && s.parent != nil; s = s.parent {
		if s.names[name] {
			return true
		}
	}
	return false
}

type checker struct {
	reg        *hostapi.Registry
	scope      *scope
	seen       map[uintptr]bool
	called     map[*ast.DotExpression]int
	refs       []hostRef
	redeclared []*ast.Identifier
}

var fileType = reflect.TypeOf((*file.File)(nil))

// walk visits the AST generically so that every statement and expression
// form is covered without enumerating node types. Scope-introducing nodes
// push a scope for the duration of their children.
func (c *checker) walk(v reflect.Value) {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() || v.Type() == fileType {
			return
		}
		addr := v.Pointer()
		if c.seen[addr] {
			return
		}
		c.seen[addr] = true
		if !v.CanInterface() {
			c.walk(v.Elem())
			return
		}
		node := v.Interface()
		c.visit(node)
		pushed := c.enter(node)
		c.walk(v.Elem())
		if pushed {
			c.scope = c.scope.parent
		}
	case reflect.Interface:
		if !v.IsNil() {
			c.walk(v.Elem())
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).IsExported() {
				c.walk(v.Field(i))
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			c.walk(v.Index(i))
		}
	}
}

func (c *checker) push(fn bool) {
	c.scope = &scope{parent: c.scope, fn: fn, names: make(map[string]bool)}
}

// enter records the bindings a node introduces and reports whether it
// pushed a scope.
func (c *checker) enter(node interface{}) bool {
	switch n := node.(type) {
	case *ast.FunctionDeclaration:
		if n.Function != nil {
			c.bind(n.Function.Name, false)
		}
	case *ast.ClassDeclaration:
		if n.Class != nil {
			c.bind(n.Class.Name, false)
		}
	case *ast.FunctionLiteral:
		c.push(true)
		c.bind(n.Name, false)
		c.bindParams(n.ParameterList)
		return true
	case *ast.ArrowFunctionLiteral:
		c.push(true)
		c.bindParams(n.ParameterList)
		return true
	case *ast.ClassLiteral:
		c.push(false)
		c.bind(n.Name, false)
		return true
	case *ast.ClassStaticBlock:
		c.push(true)
		return true
	case *ast.CatchStatement:
		c.push(false)
		c.bindTarget(n.Parameter, false)
		return true
	case *ast.BlockStatement, *ast.ForStatement, *ast.ForInStatement, *ast.ForOfStatement, *ast.SwitchStatement:
		c.push(false)
		return true
	case *ast.VariableStatement:
		c.bindList(n.List, true)
	case *ast.ForLoopInitializerVarDeclList:
		c.bindList(n.List, true)
	case *ast.ForIntoVar:
		if n.Binding != nil {
			c.bindTarget(n.Binding.Target, true)
		}
	case *ast.LexicalDeclaration:
		c.bindList(n.List, false)
	case *ast.ForLoopInitializerLexicalDecl:
		c.bindList(n.LexicalDeclaration.List, false)
	case *ast.ForDeclaration:
		c.bindTarget(n.Target, false)
	}
	return false
}

func (c *checker) bindParams(params *ast.ParameterList) {
	if params == nil {
		return
	}
	c.bindList(params.List, false)
	c.bindTarget(params.Rest, false)
}

func (c *checker) bindList(list []*ast.Binding, hoist bool) {
	for _, b := range list {
		if b != nil {
			c.bindTarget(b.Target, hoist)
		}
	}
}

// bindTarget binds every identifier in a declaration target, including
// destructuring patterns.
func (c *checker) bindTarget(target ast.Node, hoist bool) {
	switch t := target.(type) {
	case *ast.Identifier:
		c.bind(t, hoist)
	case *ast.Binding:
		c.bindTarget(t.Target, hoist)
	case *ast.AssignExpression:
		c.bindTarget(t.Left, hoist)
	case *ast.ArrayPattern:
		for _, el := range t.Elements {
			c.bindTarget(el, hoist)
		}
		c.bindTarget(t.Rest, hoist)
	case *ast.ObjectPattern:
		for _, prop := range t.Properties {
			switch p := prop.(type) {
			case *ast.PropertyShort:
				c.bind(&p.Name, hoist)
			case *ast.PropertyKeyed:
				c.bindTarget(p.Value, hoist)
			}
		}
		c.bindTarget(t.Rest, hoist)
	}
}

// bind adds id to the current scope, or to the nearest function scope for
// var declarations. Top-level bindings of an installed namespace cannot
// replace the global and are reported.
func (c *checker) bind(id *ast.Identifier, hoist bool) {
	if id == nil {
		return
	}
	s := c.scope
	for hoist && !s.fn {
		s = s.parent
	}
	name := id.Name.String()
	if s.parent == nil {
		if _, installed := c.reg.Lookup(name); installed {
			c.redeclared = append(c.redeclared, id)
		}
		return
	}
	s.names[name] = true
}

func (c *checker) visit(node interface{}) {
	switch n := node.(type) {
	case *ast.CallExpression:
		dot, ok := n.Callee.(*ast.DotExpression)
		if !ok {
			return
		}
		count := len(n.ArgumentList)
		for _, arg := range n.ArgumentList {
			if _, spread := arg.(*ast.SpreadElement); spread {
				count = -1
				break
			}
		}
		c.called[dot] = count
	case *ast.DotExpression:
		left, ok := n.Left.(*ast.Identifier)
		if !ok {
			return
		}
		ns := left.Name.String()
		if _, installed := c.reg.Lookup(ns); !installed {
			return
		}
		args, isCall := c.called[n]
		if !isCall {
			args = -1
		}
		c.refs = append(c.refs, hostRef{
			ns:     ns,
			member: n.Identifier.Name.String(),
			offset: int(n.Identifier.Idx) - 1,
			args:   args,
			scope:  c.scope,
		})
	}
}

func (c *checker) diag(src Source, offset int, msg string) Diagnostic {
	line, col := lineColumn(src.Code, offset)
	return Diagnostic{File: src.Name, Line: line, Column: col, Message: msg}
}

func arityText(min, max int) string {
	switch {
	case max < 0:
		return fmt.Sprintf("at least %d argument(s)", min)
	case min == max:
		return fmt.Sprintf("%d argument(s)", min)
	default:
		return fmt.Sprintf("%d to %d arguments", min, max)
	}
}

// lineColumn converts a byte offset into a 1-based line and column.
func lineColumn(code string, offset int) (int, int) {
	if offset < 0 {
		return 0, 0
	}
	if offset > len(code) {
		offset = len(code)
	}
	line, col := 1, 1
	for _, r := range code[:offset] {
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
