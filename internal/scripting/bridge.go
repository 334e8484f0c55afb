// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package scripting

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// handleRef is the hidden payload of a handle object. Its fields are
// unexported so the VM's reflection exposes nothing to scripts.
type handleRef struct {
	h hostapi.Handle
}

type cacheKey struct {
	typ  string
	slot uint32
}

type cachedObject struct {
	gen uint32
	obj *goja.Object
}

// bridge converts between hostapi Values and VM values and exposes the
// registry's namespaces and types to the VM.
type bridge struct {
	vm     *goja.Runtime
	reg    *hostapi.Registry
	tag    *goja.Symbol
	protos map[string]*goja.Object

	// One object per live (type, slot); a new generation replaces the entry,
	// so the cache never grows past the arenas' slot counts.
	objects map[cacheKey]cachedObject

	// lastThrown links a JS exception back to the native error it came from.
	lastThrown      *goja.Object
	lastThrownCause error
}

func newBridge(vm *goja.Runtime, reg *hostapi.Registry) *bridge {
	return &bridge{
		vm:      vm,
		reg:     reg,
		tag:     goja.NewSymbol("kestrel.handle"),
		protos:  make(map[string]*goja.Object),
		objects: make(map[cacheKey]cachedObject),
	}
}

// install defines every namespace as a frozen, non-writable global and
// builds one frozen prototype per opaque type.
func (b *bridge) install() error {
	for _, t := range b.reg.Types() {
		proto := b.vm.NewObject()
		for _, m := range t.Methods() {
			if err := defineConst(proto, m.Name, b.vm.ToValue(b.wrap(m, t.Name))); err != nil {
				return fmt.Errorf("failed to register method %s: %w", m.QualifiedName(), err)
			}
		}
		if err := b.freeze(proto); err != nil {
			return err
		}
		b.protos[t.Name] = proto
	}

	global := b.vm.GlobalObject()
	for _, ns := range b.reg.Namespaces() {
		obj := b.vm.NewObject()
		for _, fn := range ns.Funcs() {
			if err := defineConst(obj, fn.Name, b.vm.ToValue(b.wrap(fn, ""))); err != nil {
				return fmt.Errorf("failed to register %s: %w", fn.QualifiedName(), err)
			}
		}
		if err := b.freeze(obj); err != nil {
			return err
		}
		if err := global.DefineDataProperty(ns.Name, obj, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return fmt.Errorf("failed to register namespace %s: %w", ns.Name, err)
		}
	}
	return nil
}

func defineConst(obj *goja.Object, name string, v goja.Value) error {
	return obj.DefineDataProperty(name, v, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (b *bridge) freeze(obj *goja.Object) error {
	freeze, ok := goja.AssertFunction(b.vm.Get("Object").ToObject(b.vm).Get("freeze"))
	if !ok {
		return errors.New("Object.freeze is unavailable")
	}
	_, err := freeze(goja.Undefined(), obj)
	return err
}

// wrap adapts a native function to the VM calling convention. recvType is
// the opaque type for methods and empty for free functions.
func (b *bridge) wrap(fn *hostapi.Function, recvType string) func(goja.FunctionCall) goja.Value {
	return func(fc goja.FunctionCall) goja.Value {
		var recv hostapi.Handle
		if recvType != "" {
			h, ok := b.handleOf(fc.This)
			if !ok {
				b.throw(&hostapi.ArgumentError{Func: fn.QualifiedName(), Index: -1,
					Detail: "called on a value that is not a " + recvType})
			}
			if h.Type != recvType {
				b.throw(&hostapi.StaleHandleError{Handle: h, Want: recvType, Reason: hostapi.ErrWrongHandleType})
			}
			recv = h
		}

		args := make([]hostapi.Value, len(fc.Arguments))
		for i, a := range fc.Arguments {
			v, err := b.toHost(fn, i, a)
			if err != nil {
				b.throw(err)
			}
			args[i] = v
		}

		call, err := hostapi.NewCall(fn, recv, args)
		if err != nil {
			b.throw(err)
		}
		out, err := invoke(call)
		if err != nil {
			b.throw(err)
		}
		return b.toVM(out)
	}
}

// invoke runs a native function, converting a panic into an error so that
// it surfaces in the script as an exception.
func invoke(call *hostapi.Call) (out hostapi.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHostPanic, call.Func.QualifiedName(), r)
		}
	}()
	return call.Invoke()
}

// throw raises err in the VM. Argument and handle errors become TypeErrors;
// anything else becomes a GoError carrying the original error.
func (b *bridge) throw(err error) {
	var obj *goja.Object
	var argErr *hostapi.ArgumentError
	var staleErr *hostapi.StaleHandleError
	if errors.As(err, &argErr) || errors.As(err, &staleErr) {
		obj = b.vm.NewTypeError(err.Error())
	} else {
		obj = b.vm.NewGoError(err)
	}
	b.lastThrown = obj
	b.lastThrownCause = err
	panic(obj)
}

// cause returns the native error behind a script exception, if the
// exception is the one the bridge last threw.
func (b *bridge) cause(ex *goja.Exception) error {
	if b.lastThrown == nil || ex.Value() == nil {
		return nil
	}
	if ex.Value().SameAs(b.lastThrown) {
		return b.lastThrownCause
	}
	return nil
}

func (b *bridge) toHost(fn *hostapi.Function, i int, v goja.Value) (hostapi.Value, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return hostapi.Undefined(), nil
	}
	if obj, ok := v.(*goja.Object); ok {
		if h, ok := b.handleOf(obj); ok {
			return hostapi.HandleValue(h), nil
		}
		if fn.Coerce {
			return hostapi.String(obj.String()), nil
		}
		return hostapi.Value{}, &hostapi.ArgumentError{Func: fn.QualifiedName(), Index: i,
			Detail: "objects cannot cross into native code"}
	}

	switch x := v.Export().(type) {
	case bool:
		return hostapi.Bool(x), nil
	case int64:
		return hostapi.Int(x), nil
	case float64:
		return hostapi.Number(x), nil
	case string:
		return hostapi.String(x), nil
	}
	if fn.Coerce {
		return hostapi.String(v.String()), nil
	}
	return hostapi.Value{}, &hostapi.ArgumentError{Func: fn.QualifiedName(), Index: i,
		Detail: "unsupported value " + v.String()}
}

func (b *bridge) toVM(v hostapi.Value) goja.Value {
	switch v.Kind() {
	case hostapi.KindBool:
		x, _ := v.AsBool()
		return b.vm.ToValue(x)
	case hostapi.KindNumber:
		x, _ := v.AsNumber()
		return b.vm.ToValue(x)
	case hostapi.KindString:
		x, _ := v.AsString()
		return b.vm.ToValue(x)
	case hostapi.KindHandle:
		h, _ := v.AsHandle()
		return b.objectFor(h)
	default:
		return goja.Undefined()
	}
}

// objectFor returns the script object standing for h. The same live handle
// always maps to the same object, so scripts can compare handles with ===.
func (b *bridge) objectFor(h hostapi.Handle) *goja.Object {
	key := cacheKey{typ: h.Type, slot: h.Slot}
	if c, ok := b.objects[key]; ok && c.gen == h.Gen {
		return c.obj
	}

	var obj *goja.Object
	if proto, ok := b.protos[h.Type]; ok {
		obj = b.vm.CreateObject(proto)
	} else {
		obj = b.vm.NewObject()
	}
	_ = obj.DefineDataPropertySymbol(b.tag, b.vm.ToValue(&handleRef{h: h}), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	b.objects[key] = cachedObject{gen: h.Gen, obj: obj}
	return obj
}

// handleOf extracts the handle from an object minted by objectFor.
func (b *bridge) handleOf(v goja.Value) (hostapi.Handle, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || obj == nil {
		return hostapi.Handle{}, false
	}
	tagged := obj.GetSymbol(b.tag)
	if tagged == nil || goja.IsUndefined(tagged) {
		return hostapi.Handle{}, false
	}
	ref, ok := tagged.Export().(*handleRef)
	if !ok {
		return hostapi.Handle{}, false
	}
	return ref.h, true
}

// reset forgets every cached handle object.
func (b *bridge) reset() {
	b.objects = make(map[cacheKey]cachedObject)
	b.lastThrown = nil
	b.lastThrownCause = nil
}
