// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"fmt"

	"github.com/aplane-algo/kestrel/internal/hostapi"
	"github.com/aplane-algo/kestrel/internal/render"
)

// Camera exposes the scene's main camera.
type Camera struct {
	scene   *render.Scene
	cameras *hostapi.Arena[*render.Camera]
	main    hostapi.Handle
}

func (c *Camera) Name() string { return "camera" }

func (c *Camera) Install(reg *hostapi.Registry) error {
	ns, err := reg.Namespace("camera", "The view onto the scene.")
	if err != nil {
		return err
	}
	t, err := ns.Type("Camera", "Maps world coordinates to the canvas.")
	if err != nil {
		return err
	}
	if err := ns.Func(&hostapi.Function{
		Name:    "main",
		Doc:     "Returns the main camera.",
		Returns: "Camera",
		Fn: func(*hostapi.Call) (hostapi.Value, error) {
			return hostapi.HandleValue(c.mainHandle()), nil
		},
	}); err != nil {
		return fmt.Errorf("failed to register camera.main: %w", err)
	}

	get := func(read func(*render.Camera) hostapi.Value) hostapi.Func {
		return func(call *hostapi.Call) (hostapi.Value, error) {
			cam, err := c.cameras.Get(call.Receiver)
			if err != nil {
				return hostapi.Undefined(), err
			}
			return read(cam), nil
		}
	}
	err = methods(t,
		&hostapi.Function{Name: "x", Doc: "World x at the canvas's left edge.", Returns: "number",
			Fn: get(func(cam *render.Camera) hostapi.Value { return hostapi.Number(cam.X) })},
		&hostapi.Function{Name: "y", Doc: "World y at the canvas's top edge.", Returns: "number",
			Fn: get(func(cam *render.Camera) hostapi.Value { return hostapi.Number(cam.Y) })},
		&hostapi.Function{Name: "zoom", Doc: "Canvas pixels per world unit.", Returns: "number",
			Fn: get(func(cam *render.Camera) hostapi.Value { return hostapi.Number(cam.Zoom) })},
		&hostapi.Function{Name: "width", Doc: "Viewport width in pixels.", Returns: "number",
			Fn: get(func(cam *render.Camera) hostapi.Value { return hostapi.Int(int64(cam.Width)) })},
		&hostapi.Function{Name: "height", Doc: "Viewport height in pixels.", Returns: "number",
			Fn: get(func(cam *render.Camera) hostapi.Value { return hostapi.Int(int64(cam.Height)) })},
		&hostapi.Function{
			Name:   "moveTo",
			Doc:    "Places the canvas's top-left corner at world (x, y).",
			Params: []hostapi.Param{{Name: "x", Type: "number"}, {Name: "y", Type: "number"}},
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				cam, err := c.cameras.Get(call.Receiver)
				if err != nil {
					return hostapi.Undefined(), err
				}
				x, err := call.Number(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				y, err := call.Number(1)
				if err != nil {
					return hostapi.Undefined(), err
				}
				cam.X, cam.Y = x, y
				return hostapi.Undefined(), nil
			},
		},
		&hostapi.Function{
			Name:   "setZoom",
			Doc:    "Sets the zoom factor; must be positive.",
			Params: []hostapi.Param{{Name: "zoom", Type: "number"}},
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				cam, err := c.cameras.Get(call.Receiver)
				if err != nil {
					return hostapi.Undefined(), err
				}
				z, err := call.Number(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				if z <= 0 {
					return hostapi.Undefined(), &hostapi.ArgumentError{Func: call.Func.QualifiedName(), Index: 0, Detail: "zoom must be positive"}
				}
				cam.Zoom = z
				return hostapi.Undefined(), nil
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register Camera methods: %w", err)
	}
	return nil
}

func (c *Camera) mainHandle() hostapi.Handle {
	if c.main.IsZero() || !c.cameras.Valid(c.main) {
		c.main = c.cameras.Insert(c.scene.Camera)
	}
	return c.main
}

// Reset returns the main camera to the origin and invalidates its handle.
func (c *Camera) Reset() {
	c.cameras.Clear()
	c.main = hostapi.Handle{}
	cam := c.scene.Camera
	cam.X, cam.Y, cam.Zoom = 0, 0, 1
}
