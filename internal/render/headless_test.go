// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package render

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/gg"
)

func newHeadlessWindow(t *testing.T, opts Options) *HeadlessWindow {
	t.Helper()
	win, err := NewHeadless(opts).CreateWindow(Settings{Title: "test", Width: 16, Height: 12, FPS: 50})
	if err != nil {
		t.Fatalf("CreateWindow: %v", err)
	}
	t.Cleanup(func() { _ = win.Close() })
	return win.(*HeadlessWindow)
}

func TestHeadless_FixedTimestep(t *testing.T) {
	w := newHeadlessWindow(t, Options{})

	for i := 1; i <= 3; i++ {
		in := w.PollFrame()
		if in.Delta != 20*time.Millisecond {
			t.Fatalf("frame %d: Delta = %v, want 20ms", i, in.Delta)
		}
		if in.Elapsed != time.Duration(i)*20*time.Millisecond {
			t.Errorf("frame %d: Elapsed = %v", i, in.Elapsed)
		}
		if in.Width != 16 || in.Height != 12 {
			t.Errorf("frame %d: size = %dx%d", i, in.Width, in.Height)
		}
	}
	if w.Frames() != 3 {
		t.Errorf("Frames = %d, want 3", w.Frames())
	}
}

func TestHeadless_InputInjection(t *testing.T) {
	w := newHeadlessWindow(t, Options{})

	w.PressKeys("left", "space")
	in := w.PollFrame()
	if strings.Join(in.Keys, ",") != "left,space" {
		t.Errorf("Keys = %v", in.Keys)
	}
	if in := w.PollFrame(); len(in.Keys) != 0 {
		t.Errorf("keys must last one frame, got %v", in.Keys)
	}

	w.RequestClose()
	if in := w.PollFrame(); !in.CloseRequested {
		t.Error("close request not reported")
	}
}

func TestHeadless_DumpsEveryNthFrame(t *testing.T) {
	dir := t.TempDir()
	w := newHeadlessWindow(t, Options{DumpDir: dir, DumpEvery: 2})
	scene := NewScene(16, 12, "#203040")

	for i := 0; i < 5; i++ {
		w.PollFrame()
		if err := w.Render(scene); err != nil {
			t.Fatal(err)
		}
		if err := w.Present(); err != nil {
			t.Fatal(err)
		}
	}

	dumps := w.Dumps()
	if len(dumps) != 2 {
		t.Fatalf("dumps = %v, want frames 2 and 4", dumps)
	}
	if !strings.HasSuffix(dumps[0], "frame-000002.png") {
		t.Errorf("first dump = %s", dumps[0])
	}
	for _, p := range dumps {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("dump missing: %v", err)
		}
	}
}

func TestHeadless_ClosedWindow(t *testing.T) {
	w := newHeadlessWindow(t, Options{})
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if !w.PollFrame().CloseRequested {
		t.Error("closed window must report a close request")
	}
	if err := w.Render(NewScene(1, 1, "")); !errors.Is(err, ErrWindowClosed) {
		t.Errorf("Render after Close: err = %v", err)
	}
}

func TestNewBackend(t *testing.T) {
	if b, err := NewBackend("headless", Options{}); err != nil || b.Name() != "headless" {
		t.Errorf("headless: %v, %v", b, err)
	}
	if b, err := NewBackend("term", Options{}); err != nil || b.Name() != "term" {
		t.Errorf("term: %v, %v", b, err)
	}
	if _, err := NewBackend("vulkan", Options{}); err == nil {
		t.Error("unknown backend accepted")
	}
	if _, err := NewHeadless(Options{}).CreateWindow(Settings{}); err == nil {
		t.Error("zero-size window accepted")
	}
}

func TestHalfBlocks(t *testing.T) {
	dc := gg.NewContext(4, 4)
	defer func() { _ = dc.Close() }()
	dc.ClearWithColor(gg.RGB(1, 1, 1))

	out := HalfBlocks(dc.Image(), 4, 2)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d rows, want 2", len(lines))
	}
	if n := strings.Count(out, "▀"); n != 8 {
		t.Errorf("got %d cells, want 8", n)
	}

	if HalfBlocks(dc.Image(), 0, 10) != "" {
		t.Error("zero columns must render nothing")
	}
}
