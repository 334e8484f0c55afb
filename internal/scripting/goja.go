// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package scripting

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/aplane-algo/kestrel/internal/hostapi"
	"github.com/aplane-algo/kestrel/internal/util"
)

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCallBudget bounds how long a single call into the script may run.
// Zero disables the bound.
func WithCallBudget(d time.Duration) Option {
	return func(c *Context) {
		c.budget = d
	}
}

// Context owns a VM, the compiled unit it runs and the registry whose
// namespaces are installed into it.
type Context struct {
	reg    *hostapi.Registry
	unit   *Unit
	vm     *goja.Runtime
	bridge *bridge
	logger *slog.Logger
	budget time.Duration

	loaded  bool
	inCall  bool
	binding *Binding
}

// Initialize compiles src against reg and prepares a sandboxed VM with every
// installed namespace exposed as a global. Compile failures are returned as
// *CompileError before any script code runs.
func Initialize(reg *hostapi.Registry, src Source, opts ...Option) (*Context, error) {
	unit, err := Compile(reg, src)
	if err != nil {
		return nil, err
	}
	return NewContext(reg, unit, opts...)
}

// NewContext prepares a VM for an already compiled unit.
func NewContext(reg *hostapi.Registry, unit *Unit, opts ...Option) (*Context, error) {
	c := &Context{
		reg:    reg,
		unit:   unit,
		logger: util.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	// Block dangerous globals.
	vm.Set("require", goja.Undefined())
	vm.Set("eval", goja.Undefined())
	vm.Set("Function", goja.Undefined())

	c.vm = vm
	c.bridge = newBridge(vm, reg)
	if err := c.bridge.install(); err != nil {
		return nil, fmt.Errorf("failed to install namespaces: %w", err)
	}

	c.logger.Debug("script runtime initialized",
		"unit", unit.Name,
		"digest", fmt.Sprintf("%x", unit.Digest[:6]),
		"namespaces", unit.Namespaces)
	return c, nil
}

// Unit returns the compiled unit.
func (c *Context) Unit() *Unit {
	return c.unit
}

// Registry returns the registry the context was built from.
func (c *Context) Registry() *hostapi.Registry {
	return c.reg
}

// Binding returns the lifecycle binding, or nil before Bootstrap.
func (c *Context) Binding() *Binding {
	return c.binding
}

// Bootstrap runs the unit's top level, resolves Main, checks it has begin,
// frame and close functions and calls Main.begin(). The result is the
// lifecycle binding holding the state begin returned.
func (c *Context) Bootstrap() (*Binding, error) {
	if c.binding != nil {
		return nil, ErrAlreadyBootstrapped
	}
	if err := c.load(); err != nil {
		return nil, &BootstrapError{Reason: "script top level failed", Cause: err}
	}

	entry, ok := goja.AssertFunction(c.vm.Get(entryName))
	if !ok {
		return nil, &BootstrapError{Reason: "entry routine missing"}
	}
	var mainVal goja.Value
	err := c.call("main", func() (err error) {
		mainVal, err = entry(goja.Undefined())
		return err
	})
	if err != nil {
		return nil, &BootstrapError{Reason: "resolving Main failed", Cause: err}
	}
	if mainVal == nil || goja.IsUndefined(mainVal) || goja.IsNull(mainVal) {
		return nil, &BootstrapError{Reason: "Main is not defined"}
	}
	mainObj, ok := mainVal.(*goja.Object)
	if !ok {
		return nil, &BootstrapError{Reason: "Main is not an object"}
	}

	fns := make(map[string]goja.Callable, 3)
	for _, name := range []string{"begin", "frame", "close"} {
		fn, ok := goja.AssertFunction(mainObj.Get(name))
		if !ok {
			return nil, &BootstrapError{Reason: "Main." + name + " is not a function"}
		}
		fns[name] = fn
	}

	var state goja.Value
	err = c.call("begin", func() (err error) {
		state, err = fns["begin"](mainObj)
		return err
	})
	if err != nil {
		return nil, &BootstrapError{Reason: "Main.begin failed", Cause: err}
	}

	c.binding = &Binding{
		ctx:     c,
		main:    mainObj,
		frameFn: fns["frame"],
		closeFn: fns["close"],
		state:   state,
		phase:   Bootstrapped,
	}
	c.logger.Debug("script bootstrapped", "unit", c.unit.Name)
	return c.binding, nil
}

// load runs the unit's top level once.
func (c *Context) load() error {
	if c.loaded {
		return nil
	}
	c.loaded = true
	return c.call("load", func() error {
		_, err := c.vm.RunProgram(c.unit.Program)
		return err
	})
}

// Run evaluates a snippet in the script's global scope. The unit's top
// level runs first if it has not run yet.
func (c *Context) Run(code string) (Result, error) {
	if err := c.load(); err != nil {
		return Result{}, err
	}
	var out goja.Value
	err := c.call("eval", func() (err error) {
		out, err = c.vm.RunString(code)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	// Check for empty/void results
	if out == nil || goja.IsUndefined(out) || goja.IsNull(out) {
		return Result{IsEmpty: true}, nil
	}
	if h, ok := c.bridge.handleOf(out); ok {
		return Result{Value: h}, nil
	}
	return Result{Value: out.Export()}, nil
}

// Interrupt stops the currently running script call.
// Safe to call from another goroutine.
func (c *Context) Interrupt() {
	c.vm.Interrupt("script interrupted")
}

// Runtime returns the underlying Goja runtime.
// Use sparingly - prefer Bootstrap and Run.
func (c *Context) Runtime() *goja.Runtime {
	return c.vm
}

// ForgetHandles drops the cached script objects for native handles. Call it
// after the registry's modules were reset.
func (c *Context) ForgetHandles() {
	c.bridge.reset()
}

// call runs fn as one non-reentrant call into the VM. It enforces the time
// budget, recovers native panics and converts VM errors into error values.
func (c *Context) call(what string, fn func() error) (err error) {
	if c.inCall {
		return ErrReentrantCall
	}
	c.inCall = true
	defer func() { c.inCall = false }()

	if c.budget > 0 {
		var mu sync.Mutex
		done := false
		timer := time.AfterFunc(c.budget, func() {
			mu.Lock()
			defer mu.Unlock()
			if !done {
				c.vm.Interrupt(ErrCallBudget)
			}
		})
		defer func() {
			mu.Lock()
			done = true
			mu.Unlock()
			timer.Stop()
			c.vm.ClearInterrupt()
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHostPanic, what, r)
		}
	}()

	return c.convert(fn())
}

// convert turns VM errors into clean error values.
func (c *Context) convert(err error) error {
	if err == nil {
		return nil
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		// Use String() to get proper error message including stack trace info
		return &ScriptError{Message: ex.String(), Cause: c.bridge.cause(ex)}
	}

	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if cause, ok := ie.Value().(error); ok && errors.Is(cause, ErrCallBudget) {
			return fmt.Errorf("%w (%s)", ErrCallBudget, c.budget)
		}
		return &ScriptError{Message: ie.String()}
	}
	return err
}
