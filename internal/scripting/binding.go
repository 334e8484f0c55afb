// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package scripting

import (
	"github.com/dop251/goja"
)

// Phase is the lifecycle state of a Binding.
type Phase int

const (
	Uninitialized Phase = iota
	Bootstrapped
	Running
	Closed
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Bootstrapped:
		return "bootstrapped"
	case Running:
		return "running"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Binding is the (frame, close, state) triple harvested from Main.
//
// The state value is held by reference and passed with the same identity to
// every frame call and to the single close call. A Binding is driven from
// one goroutine.
type Binding struct {
	ctx     *Context
	main    *goja.Object
	frameFn goja.Callable
	closeFn goja.Callable
	state   goja.Value
	phase   Phase
	ticks   uint64
}

// Phase returns the current lifecycle state. A nil binding is Uninitialized.
func (b *Binding) Phase() Phase {
	if b == nil {
		return Uninitialized
	}
	return b.phase
}

// Ticks returns how many frame calls were attempted.
func (b *Binding) Ticks() uint64 {
	return b.ticks
}

// State returns the script state value. The host never inspects it.
func (b *Binding) State() goja.Value {
	return b.state
}

// Frame calls Main.frame(state). A failed call returns *TickError; the
// binding stays open so Close can still run.
func (b *Binding) Frame() error {
	if b == nil {
		return ErrNotBootstrapped
	}
	if b.phase == Closed {
		return ErrBindingClosed
	}
	if b.ctx.inCall {
		return ErrReentrantCall
	}

	b.phase = Running
	b.ticks++
	err := b.ctx.call("frame", func() error {
		_, err := b.frameFn(b.main, b.state)
		return err
	})
	if err != nil {
		return &TickError{Tick: b.ticks, Cause: err}
	}
	return nil
}

// Close calls Main.close(state) exactly once. The binding is Closed
// afterwards even when close throws; the failure is returned as
// *TeardownError. Any later Frame or Close returns ErrBindingClosed.
func (b *Binding) Close() error {
	if b == nil {
		return ErrNotBootstrapped
	}
	if b.phase == Closed {
		return ErrBindingClosed
	}
	if b.ctx.inCall {
		return ErrReentrantCall
	}

	b.phase = Closed
	err := b.ctx.call("close", func() error {
		_, err := b.closeFn(b.main, b.state)
		return err
	})
	b.state = nil
	if err != nil {
		b.ctx.logger.Debug("script close failed", "unit", b.ctx.unit.Name, "error", err)
		return &TeardownError{Cause: err}
	}
	b.ctx.logger.Debug("script closed", "unit", b.ctx.unit.Name, "ticks", b.ticks)
	return nil
}
