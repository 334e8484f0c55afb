// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package render

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gogpu/gg"

	"github.com/aplane-algo/kestrel/internal/util"
)

// Headless renders off-screen on a fixed timestep: every frame advances
// time by exactly one frame interval regardless of wall-clock time. With a
// dump directory configured it writes every Nth presented frame as PNG.
type Headless struct {
	opts Options
}

// NewHeadless creates the headless backend.
func NewHeadless(opts Options) *Headless {
	return &Headless{opts: opts}
}

// Name returns "headless".
func (h *Headless) Name() string { return "headless" }

// CreateWindow creates an off-screen window.
func (h *Headless) CreateWindow(s Settings) (Window, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("invalid window size %dx%d", s.Width, s.Height)
	}
	if h.opts.DumpDir != "" {
		if err := os.MkdirAll(h.opts.DumpDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create dump directory: %w", err)
		}
	}
	return &HeadlessWindow{
		settings: s,
		opts:     h.opts,
		dc:       gg.NewContext(s.Width, s.Height),
		step:     s.FrameDuration(),
	}, nil
}

// HeadlessWindow is an off-screen window. Tests drive its input through
// PressKeys and RequestClose.
type HeadlessWindow struct {
	settings Settings
	opts     Options
	dc       *gg.Context
	step     time.Duration

	frame    uint64
	elapsed  time.Duration
	keys     []string
	quit     bool
	closed   bool
	dumped   []string
	rendered uint64
}

// PollFrame advances the fixed clock by one frame.
func (w *HeadlessWindow) PollFrame() FrameInput {
	if w.closed {
		return FrameInput{CloseRequested: true}
	}
	w.frame++
	w.elapsed += w.step
	keys := w.keys
	w.keys = nil
	return FrameInput{
		Width:          w.settings.Width,
		Height:         w.settings.Height,
		Delta:          w.step,
		Elapsed:        w.elapsed,
		Keys:           keys,
		CloseRequested: w.quit,
	}
}

// Render draws the scene.
func (w *HeadlessWindow) Render(scene *Scene) error {
	if w.closed {
		return ErrWindowClosed
	}
	scene.Draw(w.dc)
	w.rendered++
	return nil
}

// Present writes a PNG dump when one is due.
func (w *HeadlessWindow) Present() error {
	if w.closed {
		return ErrWindowClosed
	}
	if w.opts.DumpDir == "" || w.opts.DumpEvery <= 0 || w.frame%uint64(w.opts.DumpEvery) != 0 { // #nosec G115 - DumpEvery is validated positive
		return nil
	}
	path := filepath.Join(w.opts.DumpDir, fmt.Sprintf("frame-%06d.png", w.frame))
	if err := w.dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to dump frame %d: %w", w.frame, err)
	}
	w.dumped = append(w.dumped, path)
	util.Debug("frame dumped", "path", path)
	return nil
}

// Canvas returns the frame buffer.
func (w *HeadlessWindow) Canvas() *gg.Context {
	return w.dc
}

// Close releases the canvas. It is idempotent.
func (w *HeadlessWindow) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.dc.Close()
}

// PressKeys makes keys held during the next polled frame.
func (w *HeadlessWindow) PressKeys(keys ...string) {
	w.keys = append(w.keys, keys...)
}

// RequestClose makes the next polled frame report a close request.
func (w *HeadlessWindow) RequestClose() {
	w.quit = true
}

// Frames returns how many frames were polled.
func (w *HeadlessWindow) Frames() uint64 {
	return w.frame
}

// Rendered returns how many times the scene was rendered.
func (w *HeadlessWindow) Rendered() uint64 {
	return w.rendered
}

// Dumps returns the PNG files written so far.
func (w *HeadlessWindow) Dumps() []string {
	return w.dumped
}
