// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package render provides the native window and scene the render loop
// drives. Backends draw into a software gg canvas; the headless backend
// advances on a fixed timestep and the term backend presents the canvas in
// the terminal.
package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gg"
)

// ErrWindowClosed indicates use of a window after Close.
var ErrWindowClosed = errors.New("window is closed")

// Settings describes the window to create.
type Settings struct {
	Title      string
	Width      int
	Height     int
	FPS        int
	Background string // hex colour, e.g. "#101018"
}

// FrameDuration returns the target frame interval.
func (s Settings) FrameDuration() time.Duration {
	fps := s.FPS
	if fps <= 0 {
		fps = 60
	}
	return time.Second / time.Duration(fps)
}

// FrameInput is the window state observed at the start of a tick.
type FrameInput struct {
	Width   int
	Height  int
	Delta   time.Duration
	Elapsed time.Duration

	// Keys lists the keys held during this frame.
	Keys []string

	CloseRequested bool
}

// Backend creates windows.
type Backend interface {
	Name() string
	CreateWindow(s Settings) (Window, error)
}

// Window is a native render target.
type Window interface {
	// PollFrame observes input and timing for the next tick.
	PollFrame() FrameInput

	// Render draws the native scene into the frame buffer.
	Render(scene *Scene) error

	// Present shows the frame buffer.
	Present() error

	// Canvas is the frame buffer. Native modules draw into it between
	// Render and Present.
	Canvas() *gg.Context

	Close() error
}

// Options configures backend construction.
type Options struct {
	DumpDir   string
	DumpEvery int
}

// NewBackend returns the backend registered under name.
func NewBackend(name string, opts Options) (Backend, error) {
	switch name {
	case "headless":
		return NewHeadless(opts), nil
	case "term":
		return NewTerm(), nil
	default:
		return nil, fmt.Errorf("unknown render backend %q (expected headless or term)", name)
	}
}

// ParseColor parses a hex colour ("#rgb", "#rrggbb", "#rrggbbaa"), falling back to black.
func ParseColor(hex string) gg.RGBA {
	if hex == "" {
		return gg.RGB(0, 0, 0)
	}
	return gg.Hex(hex)
}
