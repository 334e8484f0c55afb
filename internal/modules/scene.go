// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"fmt"

	"github.com/aplane-algo/kestrel/internal/hostapi"
	"github.com/aplane-algo/kestrel/internal/render"
)

// Scene spawns natively animated sprites. Nodes move and scale on the
// native side every tick; scripts only steer them.
type Scene struct {
	scene *render.Scene
	image *Image
	nodes *hostapi.Arena[*render.Node]
}

func (s *Scene) Name() string { return "scene" }

func (s *Scene) Install(reg *hostapi.Registry) error {
	ns, err := reg.Namespace("scene", "Natively animated sprites.")
	if err != nil {
		return err
	}
	t, err := ns.Type("Node", "A sprite in the scene.")
	if err != nil {
		return err
	}

	err = register(ns,
		&hostapi.Function{
			Name: "spawn",
			Doc:  "Adds a sprite showing image at world (x, y).",
			Params: []hostapi.Param{
				{Name: "image", Type: "Image"},
				{Name: "x", Type: "number"},
				{Name: "y", Type: "number"},
			},
			Returns: "Node",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				buf, err := s.image.buf(call, 0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				x, err := call.Number(1)
				if err != nil {
					return hostapi.Undefined(), err
				}
				y, err := call.Number(2)
				if err != nil {
					return hostapi.Undefined(), err
				}
				return hostapi.HandleValue(s.nodes.Insert(s.scene.Add(buf, x, y))), nil
			},
		},
		&hostapi.Function{
			Name:    "count",
			Doc:     "Returns the number of sprites in the scene.",
			Returns: "number",
			Fn: func(*hostapi.Call) (hostapi.Value, error) {
				return hostapi.Int(int64(s.scene.Len())), nil
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register scene functions: %w", err)
	}

	get := func(read func(*render.Node) float64) hostapi.Func {
		return func(call *hostapi.Call) (hostapi.Value, error) {
			n, err := s.nodes.Get(call.Receiver)
			if err != nil {
				return hostapi.Undefined(), err
			}
			return hostapi.Number(read(n)), nil
		}
	}
	pair := func(apply func(n *render.Node, a, b float64)) hostapi.Func {
		return func(call *hostapi.Call) (hostapi.Value, error) {
			n, err := s.nodes.Get(call.Receiver)
			if err != nil {
				return hostapi.Undefined(), err
			}
			a, err := call.Number(0)
			if err != nil {
				return hostapi.Undefined(), err
			}
			b, err := call.Number(1)
			if err != nil {
				return hostapi.Undefined(), err
			}
			apply(n, a, b)
			return hostapi.Undefined(), nil
		}
	}
	xy := []hostapi.Param{{Name: "x", Type: "number"}, {Name: "y", Type: "number"}}

	err = methods(t,
		&hostapi.Function{Name: "x", Doc: "World x.", Returns: "number",
			Fn: get(func(n *render.Node) float64 { return n.X })},
		&hostapi.Function{Name: "y", Doc: "World y.", Returns: "number",
			Fn: get(func(n *render.Node) float64 { return n.Y })},
		&hostapi.Function{Name: "scale", Doc: "Current draw scale.", Returns: "number",
			Fn: get(func(n *render.Node) float64 { return n.Scale })},
		&hostapi.Function{Name: "moveTo", Doc: "Places the sprite at world (x, y).", Params: xy,
			Fn: pair(func(n *render.Node, x, y float64) { n.X, n.Y = x, y })},
		&hostapi.Function{Name: "velocity", Doc: "Sets the velocity in world units per second.",
			Params: []hostapi.Param{{Name: "vx", Type: "number"}, {Name: "vy", Type: "number"}},
			Fn:     pair(func(n *render.Node, vx, vy float64) { n.VX, n.VY = vx, vy })},
		&hostapi.Function{
			Name:   "grow",
			Doc:    "Sets the scale change per second; the scale stops at 0.",
			Params: []hostapi.Param{{Name: "rate", Type: "number"}},
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				n, err := s.nodes.Get(call.Receiver)
				if err != nil {
					return hostapi.Undefined(), err
				}
				rate, err := call.Number(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				n.Growth = rate
				return hostapi.Undefined(), nil
			},
		},
		&hostapi.Function{
			Name: "remove",
			Doc:  "Takes the sprite out of the scene. Further use of this handle fails.",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				n, err := s.nodes.Remove(call.Receiver)
				if err != nil {
					return hostapi.Undefined(), err
				}
				s.scene.Remove(n)
				return hostapi.Undefined(), nil
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register Node methods: %w", err)
	}
	return nil
}

// Reset empties the scene.
func (s *Scene) Reset() {
	s.nodes.Clear()
	s.scene.Clear()
}
