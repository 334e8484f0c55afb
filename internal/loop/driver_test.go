// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package loop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/gg"

	"github.com/aplane-algo/kestrel/internal/hostapi"
	"github.com/aplane-algo/kestrel/internal/render"
	"github.com/aplane-algo/kestrel/internal/scripting"
	"github.com/aplane-algo/kestrel/internal/util"
)

// trace records host and script events in order.
type trace struct {
	events []string
}

func (tr *trace) add(e string) { tr.events = append(tr.events, e) }

func (tr *trace) count(e string) int {
	n := 0
	for _, got := range tr.events {
		if got == e {
			n++
		}
	}
	return n
}

func (tr *trace) Name() string { return "trace" }

func (tr *trace) Install(reg *hostapi.Registry) error {
	ns, err := reg.Namespace("trace", "test trace")
	if err != nil {
		return err
	}
	return ns.Func(&hostapi.Function{
		Name:   "mark",
		Params: []hostapi.Param{{Name: "event", Type: "string"}},
		Fn: func(c *hostapi.Call) (hostapi.Value, error) {
			e, err := c.String(0)
			if err != nil {
				return hostapi.Undefined(), err
			}
			tr.add(e)
			return hostapi.Undefined(), nil
		},
	})
}

// BeginTick and QuitRequested make trace an Observer.
func (tr *trace) BeginTick(tick uint64, _ render.FrameInput) {
	tr.add(fmt.Sprintf("begin %d", tick))
}

func (tr *trace) QuitRequested() bool {
	return tr.count("quit") > 0
}

type fakeWindow struct {
	tr        *trace
	closeAt   int
	polls     int
	renderErr error
	dc        *gg.Context
}

func newFakeWindow(tr *trace) *fakeWindow {
	return &fakeWindow{tr: tr, dc: gg.NewContext(8, 8)}
}

func (w *fakeWindow) PollFrame() render.FrameInput {
	w.polls++
	w.tr.add("poll")
	return render.FrameInput{
		Width:          8,
		Height:         8,
		Delta:          time.Second / 60,
		CloseRequested: w.closeAt > 0 && w.polls >= w.closeAt,
	}
}

func (w *fakeWindow) Render(*render.Scene) error {
	w.tr.add("render")
	return w.renderErr
}

func (w *fakeWindow) Present() error {
	w.tr.add("present")
	return nil
}

func (w *fakeWindow) Canvas() *gg.Context {
	return w.dc
}

func (w *fakeWindow) Close() error {
	return w.dc.Close()
}

// script marks "frame" each tick, throws on tick failAt (0 never) and
// marks "quit" request when quitAt is reached.
func script(failAt, quitAt int) string {
	return fmt.Sprintf(`
const Main = {
	begin() { return { n: 0 }; },
	frame(s) {
		s.n++;
		trace.mark("frame");
		if (s.n === %d) { throw new Error("boom at " + s.n); }
		if (s.n === %d) { trace.mark("quit"); }
	},
	close(s) { trace.mark("close"); },
};
`, failAt, quitAt)
}

func newDriver(t *testing.T, code string) (*Driver, *trace, *fakeWindow) {
	t.Helper()
	tr := &trace{}
	reg := hostapi.NewRegistry()
	if err := reg.Install(tr); err != nil {
		t.Fatal(err)
	}
	ctx, err := scripting.Initialize(reg, scripting.Source{Name: "main.js", Code: code})
	if err != nil {
		t.Fatal(err)
	}
	b, err := ctx.Bootstrap()
	if err != nil {
		t.Fatal(err)
	}
	w := newFakeWindow(tr)
	t.Cleanup(func() { _ = w.Close() })
	return &Driver{
		Window:   w,
		Scene:    render.NewScene(8, 8, ""),
		Binding:  b,
		Observer: tr,
	}, tr, w
}

func TestDriver_TickOrder(t *testing.T) {
	d, tr, _ := newDriver(t, script(0, 0))
	d.MaxTicks = 2
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := "poll render begin 1 frame present poll render begin 2 frame present"
	if got := strings.Join(tr.events, " "); got != want {
		t.Errorf("events:\n got %s\nwant %s", got, want)
	}
	if s := d.Stats(); s.Ticks != 2 || s.StopReason != StopMaxTicks {
		t.Errorf("stats = %+v", s)
	}
}

func TestDriver_Stops(t *testing.T) {
	tests := []struct {
		name      string
		quitAt    int
		closeAt   int
		cancel    bool
		wantTicks uint64
		reason    string
	}{
		{"window closed on 4th poll", 0, 4, false, 3, StopClosed},
		{"script quits on tick 2", 2, 0, false, 2, StopQuit},
		{"context canceled", 0, 0, true, 0, StopCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, tr, w := newDriver(t, script(0, tt.quitAt))
			w.closeAt = tt.closeAt
			d.MaxTicks = 10

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}
			if err := d.Run(ctx); err != nil {
				t.Fatal(err)
			}
			s := d.Stats()
			if s.Ticks != tt.wantTicks || s.StopReason != tt.reason {
				t.Errorf("stats = %+v", s)
			}
			if n := tr.count("frame"); uint64(n) != tt.wantTicks {
				t.Errorf("frame ran %d times", n)
			}
			if tr.count("close") != 0 {
				t.Error("driver closed the binding")
			}
		})
	}
}

// A frame that throws at tick 3 ends the loop: tick 4 never runs and the
// caller's teardown still reaches close exactly once.
func TestDriver_FrameFailureStopsLoop(t *testing.T) {
	d, tr, _ := newDriver(t, script(3, 0))
	d.MaxTicks = 10

	err := d.Run(context.Background())
	var te *scripting.TickError
	if !errors.As(err, &te) || te.Tick != 3 {
		t.Fatalf("Run = %v, want TickError at tick 3", err)
	}
	var se *scripting.ScriptError
	if !errors.As(err, &se) || !strings.Contains(se.Message, "boom at 3") {
		t.Errorf("cause = %v", err)
	}
	if n := tr.count("frame"); n != 3 {
		t.Errorf("frame ran %d times, want 3", n)
	}
	if tr.count("present") != 2 {
		t.Errorf("failed tick was presented: %v", tr.events)
	}

	if err := d.Binding.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Binding.Close(); !errors.Is(err, scripting.ErrBindingClosed) {
		t.Errorf("second Close = %v", err)
	}
	if n := tr.count("close"); n != 1 {
		t.Errorf("close ran %d times", n)
	}
}

func TestDriver_RenderFailure(t *testing.T) {
	d, tr, w := newDriver(t, script(0, 0))
	w.renderErr = render.ErrWindowClosed

	err := d.Run(context.Background())
	var te *scripting.TickError
	if !errors.As(err, &te) || te.Tick != 1 || !errors.Is(err, render.ErrWindowClosed) {
		t.Fatalf("Run = %v", err)
	}
	if tr.count("frame") != 0 {
		t.Error("frame ran after a failed render")
	}
}

func TestDriver_Reload(t *testing.T) {
	d, tr, _ := newDriver(t, script(0, 0))

	reload := make(chan struct{}, 1)
	d.Reload = reload
	calls := 0
	d.OnReload = func(cur *scripting.Binding) (*scripting.Binding, error) {
		calls++
		if err := cur.Close(); err != nil {
			return nil, err
		}
		reg := hostapi.NewRegistry()
		if err := reg.Install(tr); err != nil {
			return nil, err
		}
		ctx, err := scripting.Initialize(reg, scripting.Source{Name: "v2.js", Code: `
const Main = {
	begin() { return 0; },
	frame(s) { trace.mark("frame v2"); },
	close(s) {},
};`})
		if err != nil {
			return nil, err
		}
		return ctx.Bootstrap()
	}

	// First pass: two ticks on the original script.
	d.MaxTicks = 2
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	reload <- struct{}{}
	d.MaxTicks = 4
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if calls != 1 || d.Stats().Reloads != 1 {
		t.Errorf("reload calls = %d, stats = %+v", calls, d.Stats())
	}
	if tr.count("frame") != 2 || tr.count("frame v2") != 2 || tr.count("close") != 1 {
		t.Errorf("events = %v", tr.events)
	}
}

func TestDriver_FailedReloadKeepsBinding(t *testing.T) {
	d, tr, _ := newDriver(t, script(0, 0))
	d.MaxTicks = 2
	reload := make(chan struct{}, 1)
	reload <- struct{}{}
	d.Reload = reload
	d.OnReload = func(*scripting.Binding) (*scripting.Binding, error) {
		return nil, errors.New("compile failed")
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if tr.count("frame") != 2 {
		t.Errorf("events = %v", tr.events)
	}
}

func TestDriver_ReloadErrors(t *testing.T) {
	compileErr := &scripting.CompileError{Unit: "v2.js", Diagnostics: []scripting.Diagnostic{
		{File: "v2.js", Line: 2, Column: 5, Message: "camera.nope is not defined by module camera"},
		{File: "v2.js", Line: 7, Column: 1, Message: "scene.add expects 1 argument(s), called with 0"},
	}}
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		wantTicks uint64
		reason    string
		wantLog   []string
	}{
		{
			name:      "read failure keeps the binding",
			err:       errors.New("failed to read script"),
			wantTicks: 2,
			reason:    StopMaxTicks,
			wantLog:   []string{"keeping the running script", "failed to read script"},
		},
		{
			name:      "compile failure logs each diagnostic",
			err:       fmt.Errorf("reload: %w", compileErr),
			wantTicks: 2,
			reason:    StopMaxTicks,
			wantLog: []string{
				"keeping the running script",
				`at="v2.js:2:5: camera.nope is not defined by module camera"`,
				`at="v2.js:7:1: scene.add expects 1 argument(s), called with 0"`,
			},
		},
		{
			name:      "bootstrap failure ends the run",
			err:       &scripting.BootstrapError{Reason: "Main is not defined"},
			wantErr:   true,
			wantTicks: 1,
			reason:    StopReload,
			wantLog:   []string{"reload failed to bootstrap", "Main is not defined"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, tr, _ := newDriver(t, script(0, 0))
			var logs bytes.Buffer
			d.Logger = util.NewLogger(&logs, false)
			d.MaxTicks = 1
			if err := d.Run(context.Background()); err != nil {
				t.Fatal(err)
			}

			reload := make(chan struct{}, 1)
			reload <- struct{}{}
			d.Reload = reload
			d.OnReload = func(cur *scripting.Binding) (*scripting.Binding, error) {
				var be *scripting.BootstrapError
				if errors.As(tt.err, &be) {
					if err := cur.Close(); err != nil {
						return nil, err
					}
				}
				return nil, tt.err
			}
			d.MaxTicks = 2
			err := d.Run(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("Run = %v, want %v", err, tt.err)
			}

			s := d.Stats()
			if s.Ticks != tt.wantTicks || s.StopReason != tt.reason {
				t.Errorf("stats = %+v", s)
			}
			if n := tr.count("frame"); uint64(n) != tt.wantTicks {
				t.Errorf("frame ran %d times, want %d", n, tt.wantTicks)
			}
			if n := tr.count("render"); uint64(n) != tt.wantTicks {
				t.Errorf("render ran %d times, want %d", n, tt.wantTicks)
			}
			for _, w := range tt.wantLog {
				if !strings.Contains(logs.String(), w) {
					t.Errorf("log missing %q:\n%s", w, logs.String())
				}
			}
			if n := strings.Count(logs.String(), `msg="compile error"`); n != 0 && n != len(compileErr.Diagnostics) {
				t.Errorf("logged %d compile errors:\n%s", n, logs.String())
			}
		})
	}
}

func TestDriver_RequiresBinding(t *testing.T) {
	d := &Driver{}
	if err := d.Run(context.Background()); !errors.Is(err, scripting.ErrNotBootstrapped) {
		t.Errorf("Run = %v", err)
	}
}
