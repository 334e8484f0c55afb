// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"fmt"
	"time"

	"github.com/aplane-algo/kestrel/internal/hostapi"
)

type frameInfo struct {
	index   uint64
	delta   time.Duration
	elapsed time.Duration
	width   int
	height  int
}

// Frame hands the script a handle describing the tick in progress. The
// handle is released when the next tick begins, so a Frame kept in script
// state goes stale.
type Frame struct {
	frames  *hostapi.Arena[frameInfo]
	current hostapi.Handle
}

func (f *Frame) Name() string { return "frame" }

func (f *Frame) Install(reg *hostapi.Registry) error {
	ns, err := reg.Namespace("frame", "Timing of the tick in progress.")
	if err != nil {
		return err
	}
	t, err := ns.Type("Frame", "One tick. Valid only during that tick.")
	if err != nil {
		return err
	}
	if err := ns.Func(&hostapi.Function{
		Name:    "current",
		Doc:     "Returns the Frame for the tick in progress, or undefined before the first tick.",
		Returns: "Frame",
		Fn: func(*hostapi.Call) (hostapi.Value, error) {
			if f.current.IsZero() {
				return hostapi.Undefined(), nil
			}
			return hostapi.HandleValue(f.current), nil
		},
	}); err != nil {
		return fmt.Errorf("failed to register frame.current: %w", err)
	}

	get := func(read func(frameInfo) hostapi.Value) hostapi.Func {
		return func(call *hostapi.Call) (hostapi.Value, error) {
			info, err := f.frames.Get(call.Receiver)
			if err != nil {
				return hostapi.Undefined(), err
			}
			return read(info), nil
		}
	}
	err = methods(t,
		&hostapi.Function{Name: "index", Doc: "Tick number, starting at 1.", Returns: "number",
			Fn: get(func(i frameInfo) hostapi.Value { return hostapi.Number(float64(i.index)) })},
		&hostapi.Function{Name: "delta", Doc: "Seconds since the previous tick.", Returns: "number",
			Fn: get(func(i frameInfo) hostapi.Value { return seconds(i.delta) })},
		&hostapi.Function{Name: "elapsed", Doc: "Seconds since the loop started.", Returns: "number",
			Fn: get(func(i frameInfo) hostapi.Value { return seconds(i.elapsed) })},
		&hostapi.Function{Name: "width", Doc: "Canvas width in pixels.", Returns: "number",
			Fn: get(func(i frameInfo) hostapi.Value { return hostapi.Int(int64(i.width)) })},
		&hostapi.Function{Name: "height", Doc: "Canvas height in pixels.", Returns: "number",
			Fn: get(func(i frameInfo) hostapi.Value { return hostapi.Int(int64(i.height)) })},
	)
	if err != nil {
		return fmt.Errorf("failed to register Frame methods: %w", err)
	}
	return nil
}

func (f *Frame) publish(info frameInfo) {
	if !f.current.IsZero() {
		_, _ = f.frames.Remove(f.current)
	}
	f.current = f.frames.Insert(info)
}

// Reset releases the current frame.
func (f *Frame) Reset() {
	f.frames.Clear()
	f.current = hostapi.Handle{}
}
