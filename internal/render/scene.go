// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package render

import (
	"github.com/gogpu/gg"
)

// Camera maps world coordinates to the canvas. X and Y are the world
// position shown at the canvas's top-left corner.
type Camera struct {
	X, Y   float64
	Zoom   float64
	Width  int
	Height int
}

// NewCamera returns a camera at the origin with zoom 1.
func NewCamera(width, height int) *Camera {
	return &Camera{Zoom: 1, Width: width, Height: height}
}

// ToScreen converts a world position to canvas pixels.
func (c *Camera) ToScreen(x, y float64) (float64, float64) {
	return (x - c.X) * c.Zoom, (y - c.Y) * c.Zoom
}

// Visible reports whether a w*h world-space box at (x, y) intersects the view.
func (c *Camera) Visible(x, y, w, h float64) bool {
	sx, sy := c.ToScreen(x, y)
	sw, sh := w*c.Zoom, h*c.Zoom
	return sx+sw >= 0 && sy+sh >= 0 && sx < float64(c.Width) && sy < float64(c.Height)
}

// Node is a natively animated sprite.
type Node struct {
	Image  *gg.ImageBuf
	X, Y   float64
	VX, VY float64 // world units per second
	Scale  float64
	Growth float64 // scale change per second

	removed bool
}

// Removed reports whether the node was taken out of its scene.
func (n *Node) Removed() bool {
	return n.removed
}

// Scene is the set of natively animated nodes plus the main camera.
type Scene struct {
	Camera     *Camera
	Background gg.RGBA

	nodes []*Node
}

// NewScene creates an empty scene whose camera covers width*height.
func NewScene(width, height int, background string) *Scene {
	return &Scene{
		Camera:     NewCamera(width, height),
		Background: ParseColor(background),
	}
}

// Add appends a node; nodes draw in insertion order.
func (s *Scene) Add(img *gg.ImageBuf, x, y float64) *Node {
	n := &Node{Image: img, X: x, Y: y, Scale: 1}
	s.nodes = append(s.nodes, n)
	return n
}

// Remove takes n out of the scene.
func (s *Scene) Remove(n *Node) {
	for i, cur := range s.nodes {
		if cur == n {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			n.removed = true
			return
		}
	}
}

// Len returns the number of nodes.
func (s *Scene) Len() int {
	return len(s.nodes)
}

// Nodes returns the nodes in draw order.
func (s *Scene) Nodes() []*Node {
	out := make([]*Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Clear removes every node.
func (s *Scene) Clear() {
	for _, n := range s.nodes {
		n.removed = true
	}
	s.nodes = nil
}

// Update advances the scene by one tick: the camera viewport follows the
// window and every node moves and scales by the elapsed delta.
func (s *Scene) Update(in FrameInput) {
	if in.Width > 0 && in.Height > 0 {
		s.Camera.Width = in.Width
		s.Camera.Height = in.Height
	}
	dt := in.Delta.Seconds()
	for _, n := range s.nodes {
		n.X += n.VX * dt
		n.Y += n.VY * dt
		if n.Growth != 0 {
			n.Scale += n.Growth * dt
			if n.Scale < 0 {
				n.Scale = 0
			}
		}
	}
}

// Draw clears dc to the background and draws every visible node.
func (s *Scene) Draw(dc *gg.Context) {
	dc.ClearWithColor(s.Background)
	for _, n := range s.nodes {
		DrawImage(dc, s.Camera, n.Image, n.X, n.Y, n.Scale)
	}
}

// DrawImage draws img at world position (x, y) through cam, scaled by scale.
func DrawImage(dc *gg.Context, cam *Camera, img *gg.ImageBuf, x, y, scale float64) {
	if img == nil || scale <= 0 {
		return
	}
	w := float64(img.Width()) * scale
	h := float64(img.Height()) * scale
	if !cam.Visible(x, y, w, h) {
		return
	}
	sx, sy := cam.ToScreen(x, y)
	dc.DrawImageEx(img, gg.DrawImageOptions{
		X:             sx,
		Y:             sy,
		DstWidth:      w * cam.Zoom,
		DstHeight:     h * cam.Zoom,
		Interpolation: gg.InterpNearest,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})
}
