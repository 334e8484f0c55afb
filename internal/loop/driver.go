// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package loop drives the per-tick exchange between the native window and
// the script's lifecycle binding.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aplane-algo/kestrel/internal/render"
	"github.com/aplane-algo/kestrel/internal/scripting"
	"github.com/aplane-algo/kestrel/internal/util"
)

// Observer receives the driver's per-tick hooks.
type Observer interface {
	// BeginTick runs right before the script's frame call.
	BeginTick(tick uint64, in render.FrameInput)

	// QuitRequested is checked after every poll.
	QuitRequested() bool
}

// ReloadFunc replaces the running binding. It is called on the driver
// goroutine between ticks. Returning a nil binding keeps the current one.
// An error wrapping *scripting.BootstrapError means the current binding was
// already closed and ends the run; any other error keeps it running.
type ReloadFunc func(current *scripting.Binding) (*scripting.Binding, error)

// Stop reasons reported in Stats.
const (
	StopClosed   = "window closed"
	StopQuit     = "quit requested"
	StopCanceled = "canceled"
	StopMaxTicks = "tick limit"
	StopFailed   = "tick failed"
	StopReload   = "reload failed"
)

// Stats summarizes a run.
type Stats struct {
	Ticks      uint64
	ScriptTime time.Duration
	Reloads    int
	StopReason string
}

// Driver runs the render loop. Window, Scene and Binding are required.
type Driver struct {
	Window   render.Window
	Scene    *render.Scene
	Binding  *scripting.Binding
	Observer Observer

	// MaxTicks stops the loop after that many ticks when positive.
	MaxTicks uint64

	// Reload signals that OnReload should run before the next tick.
	Reload   <-chan struct{}
	OnReload ReloadFunc

	Logger *slog.Logger

	stats Stats
}

// Stats returns the run summary so far.
func (d *Driver) Stats() Stats {
	return d.stats
}

// Run ticks until the window closes, the script asks to quit, ctx is
// canceled or MaxTicks is reached, all of which return nil. A failed tick
// returns *scripting.TickError and no further tick runs. A reload that
// fails to bootstrap returns its *scripting.BootstrapError before the next
// poll. Run never closes the binding; that is the caller's teardown.
func (d *Driver) Run(ctx context.Context) error {
	if d.Logger == nil {
		d.Logger = util.Logger
	}
	if d.Binding == nil {
		return scripting.ErrNotBootstrapped
	}

	for {
		if d.MaxTicks > 0 && d.stats.Ticks >= d.MaxTicks {
			return d.stop(StopMaxTicks)
		}
		if err := d.reloadIfPending(); err != nil {
			return err
		}

		// 1. Poll the window.
		in := d.Window.PollFrame()
		switch {
		case in.CloseRequested:
			return d.stop(StopClosed)
		case d.Observer != nil && d.Observer.QuitRequested():
			return d.stop(StopQuit)
		case ctx.Err() != nil:
			return d.stop(StopCanceled)
		}
		tick := d.stats.Ticks + 1

		// 2. Native animation.
		d.Scene.Update(in)

		// 3. Native render.
		if err := d.Window.Render(d.Scene); err != nil {
			return d.fail(tick, err)
		}

		// 4. Script frame.
		if d.Observer != nil {
			d.Observer.BeginTick(tick, in)
		}
		start := time.Now()
		err := d.Binding.Frame()
		d.stats.ScriptTime += time.Since(start)
		d.stats.Ticks = tick
		if err != nil {
			var te *scripting.TickError
			if errors.As(err, &te) {
				err = te.Cause
			}
			return d.fail(tick, err)
		}

		// 5. Present.
		if err := d.Window.Present(); err != nil {
			return d.fail(tick, err)
		}
	}
}

func (d *Driver) reloadIfPending() error {
	if d.Reload == nil || d.OnReload == nil {
		return nil
	}
	select {
	case <-d.Reload:
	default:
		return nil
	}
	next, err := d.OnReload(d.Binding)
	if err != nil {
		var be *scripting.BootstrapError
		if errors.As(err, &be) {
			d.stats.StopReason = StopReload
			d.Logger.Error("reload failed to bootstrap", "error", err, "tick", d.stats.Ticks)
			return err
		}
		var ce *scripting.CompileError
		if !errors.As(err, &ce) {
			d.Logger.Warn("reload failed, keeping the running script", "error", err)
			return nil
		}
		d.Logger.Warn("reload failed, keeping the running script", "unit", ce.Unit, "errors", len(ce.Diagnostics))
		for _, diag := range ce.Diagnostics {
			d.Logger.Warn("compile error", "at", diag.String())
		}
		return nil
	}
	if next != nil {
		d.Binding = next
		d.stats.Reloads++
		d.Logger.Info("script reloaded", "tick", d.stats.Ticks)
	}
	return nil
}

func (d *Driver) stop(reason string) error {
	d.stats.StopReason = reason
	d.Logger.Debug("loop stopped", "reason", reason, "ticks", d.stats.Ticks)
	return nil
}

func (d *Driver) fail(tick uint64, err error) error {
	d.stats.StopReason = StopFailed
	d.stats.Ticks = tick
	return &scripting.TickError{Tick: tick, Cause: err}
}
