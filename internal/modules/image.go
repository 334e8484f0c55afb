// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"errors"
	"fmt"

	"github.com/gogpu/gg"

	"github.com/aplane-algo/kestrel/internal/assets"
	"github.com/aplane-algo/kestrel/internal/hostapi"
	"github.com/aplane-algo/kestrel/internal/render"
)

// MaxImageSide bounds image.create dimensions.
const MaxImageSide = 4096

var errNoWindow = errors.New("no window to draw into")

type imageEntry struct {
	buf  *gg.ImageBuf
	name string
}

// Image loads, creates and draws images.
type Image struct {
	assets *assets.Root
	window render.Window
	camera *Camera
	images *hostapi.Arena[*imageEntry]
}

func (m *Image) Name() string { return "image" }

func (m *Image) Install(reg *hostapi.Registry) error {
	ns, err := reg.Namespace("image", "Bitmap images.")
	if err != nil {
		return err
	}
	t, err := ns.Type("Image", "A decoded or generated bitmap.")
	if err != nil {
		return err
	}

	err = register(ns,
		&hostapi.Function{
			Name:    "load",
			Doc:     "Decodes a PNG, JPEG, BMP or WebP asset.",
			Params:  []hostapi.Param{{Name: "path", Type: "string"}},
			Returns: "Image",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				p, err := call.String(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				buf, err := m.assets.Image(p)
				if err != nil {
					return hostapi.Undefined(), err
				}
				return hostapi.HandleValue(m.images.Insert(&imageEntry{buf: buf, name: p})), nil
			},
		},
		&hostapi.Function{
			Name: "create",
			Doc:  "Creates a width*height image filled with a hex colour (default white).",
			Params: []hostapi.Param{
				{Name: "width", Type: "number"},
				{Name: "height", Type: "number"},
				{Name: "color", Type: "string", Optional: true},
			},
			Returns: "Image",
			Fn:      m.create,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register image functions: %w", err)
	}

	size := func(read func(*gg.ImageBuf) int) hostapi.Func {
		return func(call *hostapi.Call) (hostapi.Value, error) {
			e, err := m.images.Get(call.Receiver)
			if err != nil {
				return hostapi.Undefined(), err
			}
			return hostapi.Int(int64(read(e.buf))), nil
		}
	}
	err = methods(t,
		&hostapi.Function{Name: "width", Doc: "Width in pixels.", Returns: "number",
			Fn: size(func(b *gg.ImageBuf) int { return b.Width() })},
		&hostapi.Function{Name: "height", Doc: "Height in pixels.", Returns: "number",
			Fn: size(func(b *gg.ImageBuf) int { return b.Height() })},
		&hostapi.Function{
			Name: "draw",
			Doc:  "Draws the image at world (x, y) through camera onto this frame's canvas.",
			Params: []hostapi.Param{
				{Name: "camera", Type: "Camera"},
				{Name: "x", Type: "number"},
				{Name: "y", Type: "number"},
				{Name: "scale", Type: "number", Optional: true},
			},
			Fn: m.draw,
		},
		&hostapi.Function{
			Name: "release",
			Doc:  "Frees the image. Further use of this handle fails.",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				_, err := m.images.Remove(call.Receiver)
				return hostapi.Undefined(), err
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register Image methods: %w", err)
	}
	return nil
}

func (m *Image) create(call *hostapi.Call) (hostapi.Value, error) {
	w, err := call.Int(0)
	if err != nil {
		return hostapi.Undefined(), err
	}
	h, err := call.Int(1)
	if err != nil {
		return hostapi.Undefined(), err
	}
	color := "#ffffff"
	if !call.Arg(2).IsUndefined() {
		if color, err = call.String(2); err != nil {
			return hostapi.Undefined(), err
		}
	}
	for i, n := range []int{w, h} {
		if n < 1 || n > MaxImageSide {
			return hostapi.Undefined(), &hostapi.ArgumentError{
				Func:   call.Func.QualifiedName(),
				Index:  i,
				Detail: fmt.Sprintf("size must be between 1 and %d", MaxImageSide),
			}
		}
	}

	buf, err := gg.NewImageBuf(w, h, gg.FormatRGBA8)
	if err != nil {
		return hostapi.Undefined(), err
	}
	c := render.ParseColor(color)
	buf.Fill(channel(c.R), channel(c.G), channel(c.B), channel(c.A))
	return hostapi.HandleValue(m.images.Insert(&imageEntry{buf: buf})), nil
}

func (m *Image) draw(call *hostapi.Call) (hostapi.Value, error) {
	e, err := m.images.Get(call.Receiver)
	if err != nil {
		return hostapi.Undefined(), err
	}
	ch, err := call.Handle(0, "Camera")
	if err != nil {
		return hostapi.Undefined(), err
	}
	cam, err := m.camera.cameras.Get(ch)
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
	scale, err := call.NumberOr(3, 1)
	if err != nil {
		return hostapi.Undefined(), err
	}
	if m.window == nil {
		return hostapi.Undefined(), errNoWindow
	}
	render.DrawImage(m.window.Canvas(), cam, e.buf, x, y, scale)
	return hostapi.Undefined(), nil
}

// buf resolves an Image handle argument.
func (m *Image) buf(call *hostapi.Call, i int) (*gg.ImageBuf, error) {
	h, err := call.Handle(i, "Image")
	if err != nil {
		return nil, err
	}
	e, err := m.images.Get(h)
	if err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Reset releases every image.
func (m *Image) Reset() {
	m.images.Clear()
}

func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
