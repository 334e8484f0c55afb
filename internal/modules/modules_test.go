// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/aplane-algo/kestrel/internal/assets"
	"github.com/aplane-algo/kestrel/internal/hostapi"
	"github.com/aplane-algo/kestrel/internal/render"
	"github.com/aplane-algo/kestrel/internal/scripting"
	"github.com/aplane-algo/kestrel/internal/store"
	"github.com/aplane-algo/kestrel/internal/util"
)

type fixture struct {
	set    *Set
	reg    *hostapi.Registry
	ctx    *scripting.Context
	scene  *render.Scene
	window *render.HeadlessWindow
	log    *bytes.Buffer
	clock  time.Time
}

func newFixture(t *testing.T, deps Deps) *fixture {
	t.Helper()
	win, err := render.NewHeadless(render.Options{}).CreateWindow(render.Settings{Width: 64, Height: 48})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = win.Close() })

	f := &fixture{
		scene:  render.NewScene(64, 48, "#000000"),
		window: win.(*render.HeadlessWindow),
		log:    &bytes.Buffer{},
		clock:  time.Unix(1000, 0),
	}
	deps.Window = f.window
	deps.Scene = f.scene
	deps.Logger = util.NewLogger(f.log, false)
	if deps.Title == "" {
		deps.Title = "test"
	}
	if deps.Mixer == nil {
		deps.Mixer = NewMixer()
		deps.Mixer.now = func() time.Time { return f.clock }
	}
	f.set = Standard(deps)

	f.reg = hostapi.NewRegistry()
	if err := f.reg.Install(f.set.Modules()...); err != nil {
		t.Fatalf("Install: %v", err)
	}
	f.ctx, err = scripting.Initialize(f.reg, scripting.Source{Name: "test.js", Code: ""})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return f
}

// eval runs code and renders the result with fmt.Sprint ("" when empty).
func (f *fixture) eval(t *testing.T, code string) string {
	t.Helper()
	res, err := f.ctx.Run(code)
	if err != nil {
		t.Fatalf("Run(%q): %v", code, err)
	}
	if res.IsEmpty {
		return ""
	}
	return fmt.Sprint(res.Value)
}

func (f *fixture) evalErr(t *testing.T, code string) error {
	t.Helper()
	_, err := f.ctx.Run(code)
	if err == nil {
		t.Fatalf("Run(%q) succeeded, want error", code)
	}
	return err
}

func (f *fixture) tick(n uint64, keys ...string) {
	f.set.BeginTick(n, render.FrameInput{
		Width:   64,
		Height:  48,
		Delta:   time.Second / 60,
		Elapsed: time.Duration(n) * time.Second / 60,
		Keys:    keys,
	})
}

func wav(t *testing.T, byteRate, dataLen uint32) []byte {
	t.Helper()
	var b bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	b.WriteString("RIFF")
	w(uint32(36 + dataLen))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1)) // PCM
	w(uint16(1)) // mono
	w(byteRate / 2)
	w(byteRate)
	w(uint16(2))
	w(uint16(16))
	b.WriteString("data")
	w(dataLen)
	b.Write(make([]byte, dataLen))
	return b.Bytes()
}

func TestStandard_Namespaces(t *testing.T) {
	f := newFixture(t, Deps{})
	want := []string{"console", "app", "frame", "camera", "image", "scene", "input", "audio", "storage", "assets"}
	for _, name := range want {
		if _, ok := f.reg.Lookup(name); !ok {
			t.Errorf("namespace %s not installed", name)
		}
	}
	for _, typ := range []string{"Frame", "Camera", "Image", "Node", "Sound"} {
		if _, ok := f.reg.Type(typ); !ok {
			t.Errorf("type %s not registered", typ)
		}
	}

	// A second standard set cannot share the registry.
	err := f.reg.Install(Standard(Deps{Scene: f.scene}).Modules()...)
	var installErr *hostapi.InstallError
	if !errors.As(err, &installErr) || installErr.Module != "console" {
		t.Errorf("duplicate install: err = %v", err)
	}
}

func TestConsole(t *testing.T) {
	f := newFixture(t, Deps{})
	f.eval(t, `console.log("score", 12, true); console.warn({a: 1}); console.error()`)

	out := f.log.String()
	for _, want := range []string{`msg="score 12 true"`, "level=WARN", "level=ERROR", "source=script"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestApp(t *testing.T) {
	f := newFixture(t, Deps{Title: "Bounce"})
	if got := f.eval(t, `app.title()`); got != "Bounce" {
		t.Errorf("title = %q", got)
	}
	f.tick(3)
	if got := f.eval(t, `app.ticks()`); got != "3" {
		t.Errorf("ticks = %q", got)
	}
	if f.set.QuitRequested() {
		t.Fatal("quit before app.quit()")
	}
	f.eval(t, `app.quit()`)
	if !f.set.QuitRequested() {
		t.Error("app.quit() not observed")
	}
	f.reg.Reset()
	if f.set.QuitRequested() {
		t.Error("Reset kept the quit request")
	}
}

func TestFrame_StaleAfterTick(t *testing.T) {
	f := newFixture(t, Deps{})
	if got := f.eval(t, `frame.current() === undefined`); got != "true" {
		t.Errorf("frame before first tick: %q", got)
	}

	f.tick(1)
	f.eval(t, `var kept = frame.current()`)
	if got := f.eval(t, `kept.index()`); got != "1" {
		t.Errorf("index = %q", got)
	}
	if got := f.eval(t, `kept.width() + "x" + kept.height()`); got != "64x48" {
		t.Errorf("size = %q", got)
	}

	f.tick(2)
	err := f.evalErr(t, `kept.index()`)
	if !errors.Is(err, hostapi.ErrStaleHandle) {
		t.Errorf("kept frame: err = %v, want stale handle", err)
	}
	if got := f.eval(t, `frame.current().index()`); got != "2" {
		t.Errorf("current index = %q", got)
	}
}

func TestCamera(t *testing.T) {
	f := newFixture(t, Deps{})
	if got := f.eval(t, `camera.main() === camera.main()`); got != "true" {
		t.Error("camera.main() returned distinct objects")
	}
	f.eval(t, `var cam = camera.main(); cam.moveTo(5, 7); cam.setZoom(2)`)
	if c := f.scene.Camera; c.X != 5 || c.Y != 7 || c.Zoom != 2 {
		t.Errorf("scene camera = %+v", *c)
	}

	var argErr *hostapi.ArgumentError
	if err := f.evalErr(t, `cam.setZoom(0)`); !errors.As(err, &argErr) {
		t.Errorf("setZoom(0): err = %v", err)
	}

	f.reg.Reset()
	if c := f.scene.Camera; c.X != 0 || c.Zoom != 1 {
		t.Errorf("camera after reset = %+v", *c)
	}
	if err := f.evalErr(t, `cam.x()`); !errors.Is(err, hostapi.ErrStaleHandle) {
		t.Errorf("camera after reset: err = %v", err)
	}
}

func TestImage_CreateDrawRelease(t *testing.T) {
	f := newFixture(t, Deps{})
	f.eval(t, `var img = image.create(4, 3, "#ff0000")`)
	if got := f.eval(t, `img.width() * 10 + img.height()`); got != "43" {
		t.Errorf("size = %q", got)
	}

	f.eval(t, `img.draw(camera.main(), 10, 10, 2)`)
	r, g, _, a := f.window.Canvas().Image().At(12, 12).RGBA()
	if r>>8 < 200 || g>>8 > 50 || a>>8 < 200 {
		t.Errorf("pixel after draw = %d,%d,%d", r>>8, g>>8, a>>8)
	}

	tests := []struct {
		code string
		want any
	}{
		{`image.create(0, 1)`, &hostapi.ArgumentError{}},
		{`image.create(1, 5000)`, &hostapi.ArgumentError{}},
		{`image.create("a", 1)`, &hostapi.ArgumentError{}},
		{`img.draw(img, 0, 0)`, &hostapi.StaleHandleError{}},
	}
	for _, tt := range tests {
		err := f.evalErr(t, tt.code)
		switch tt.want.(type) {
		case *hostapi.ArgumentError:
			var target *hostapi.ArgumentError
			if !errors.As(err, &target) {
				t.Errorf("%s: err = %v, want argument error", tt.code, err)
			}
		case *hostapi.StaleHandleError:
			if !errors.Is(err, hostapi.ErrWrongHandleType) {
				t.Errorf("%s: err = %v, want wrong handle type", tt.code, err)
			}
		}
	}

	f.eval(t, `img.release()`)
	if err := f.evalErr(t, `img.width()`); !errors.Is(err, hostapi.ErrStaleHandle) {
		t.Errorf("released image: err = %v", err)
	}
}

func TestImage_Load(t *testing.T) {
	root := assets.New("mem", fstest.MapFS{"bad.png": {Data: []byte("not an image")}})
	f := newFixture(t, Deps{Assets: root})
	if err := f.evalErr(t, `image.load("missing.png")`); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing: err = %v", err)
	}
	if err := f.evalErr(t, `image.load("../x.png")`); !errors.Is(err, assets.ErrInvalidPath) {
		t.Errorf("escape: err = %v", err)
	}
	if err := f.evalErr(t, `image.load("bad.png")`); !strings.Contains(err.Error(), "decode image") {
		t.Errorf("garbage: err = %v", err)
	}
}

func TestScene_NodesAnimateNatively(t *testing.T) {
	f := newFixture(t, Deps{})
	f.eval(t, `var img = image.create(2, 2); var n = scene.spawn(img, 1, 2); n.velocity(60, -30); n.grow(0.5)`)
	if got := f.eval(t, `scene.count()`); got != "1" {
		t.Fatalf("count = %q", got)
	}

	f.scene.Update(render.FrameInput{Delta: time.Second})
	if got := f.eval(t, `n.x() + "," + n.y() + "," + n.scale()`); got != "61,-28,1.5" {
		t.Errorf("after update = %q", got)
	}

	f.eval(t, `n.moveTo(0, 0); n.remove()`)
	if f.scene.Len() != 0 {
		t.Errorf("scene still has %d nodes", f.scene.Len())
	}
	if err := f.evalErr(t, `n.x()`); !errors.Is(err, hostapi.ErrStaleHandle) {
		t.Errorf("removed node: err = %v", err)
	}

	f.eval(t, `scene.spawn(img, 0, 0); scene.spawn(img, 1, 1)`)
	f.reg.Reset()
	if f.scene.Len() != 0 {
		t.Errorf("Reset left %d nodes", f.scene.Len())
	}
}

func TestInput(t *testing.T) {
	f := newFixture(t, Deps{})
	f.tick(1, "Left", "a", "left")
	if got := f.eval(t, `input.down("left") + " " + input.down("right") + " " + input.keys()`); got != "true false left,a" {
		t.Errorf("input = %q", got)
	}
	f.tick(2)
	if got := f.eval(t, `input.down("left")`); got != "false" {
		t.Errorf("key held into next tick")
	}
}

func TestAudio_SoundGoesStaleWhenFinished(t *testing.T) {
	root := assets.New("mem", fstest.MapFS{
		"beep.wav": {Data: wav(t, 8000, 4000)}, // 0.5s
		"loop.ogg": {Data: []byte("OggS")},
	})
	f := newFixture(t, Deps{Assets: root})

	f.eval(t, `var beep = audio.play("beep.wav", 0.5); var loop = audio.play("loop.ogg")`)
	if got := f.eval(t, `beep.playing() && loop.playing()`); got != "true" {
		t.Fatalf("playing = %q", got)
	}

	f.clock = f.clock.Add(600 * time.Millisecond)
	if got := f.eval(t, `beep.playing() + " " + loop.playing() + " " + audio.playing()`); got != "false true 1" {
		t.Errorf("after 600ms = %q", got)
	}

	f.tick(1)
	if err := f.evalErr(t, `beep.playing()`); !errors.Is(err, hostapi.ErrStaleHandle) {
		t.Errorf("finished sound: err = %v", err)
	}
	f.eval(t, `loop.stop()`)
	if err := f.evalErr(t, `loop.stop()`); !errors.Is(err, hostapi.ErrStaleHandle) {
		t.Errorf("double stop: err = %v", err)
	}

	if err := f.evalErr(t, `audio.play("beep.wav", 2)`); err == nil {
		t.Error("volume 2 accepted")
	}
}

func TestClipLength(t *testing.T) {
	tests := []struct {
		name string
		clip []byte
		want time.Duration
	}{
		{"one second", wav(t, 16000, 16000), time.Second},
		{"quarter", wav(t, 16000, 4000), 250 * time.Millisecond},
		{"not wav", []byte("ID3...."), DefaultSoundLength},
		{"truncated", []byte("RIFF\x00\x00\x00\x00WAVE"), DefaultSoundLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClipLength(tt.clip); got != tt.want {
				t.Errorf("ClipLength = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStorage_PersistsOnFlush(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = st.Close() }()

	f := newFixture(t, Deps{Store: st, SaveNamespace: "bounce"})
	f.eval(t, `storage.set("best", 42); storage.set("name", "ada"); storage.set("gone", true)`)
	if got := f.eval(t, `storage.get("best") + storage.get("missing", 1)`); got != "43" {
		t.Errorf("get = %q", got)
	}
	if got := f.eval(t, `storage.remove("gone") + " " + storage.remove("gone")`); got != "true false" {
		t.Errorf("remove = %q", got)
	}
	if err := f.evalErr(t, `storage.set("cam", camera.main())`); !errors.Is(err, store.ErrNotStorable) {
		t.Errorf("storing a handle: err = %v", err)
	}
	if err := f.evalErr(t, `storage.set("obj", {a: 1})`); err == nil {
		t.Error("storing an object succeeded")
	}

	if _, ok, _ := st.Get(t.Context(), "bounce", "best"); ok {
		t.Error("write reached the store before Flush")
	}
	if err := f.set.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	again := newFixture(t, Deps{Store: st, SaveNamespace: "bounce"})
	if got := again.eval(t, `storage.keys()`); got != "best,name" {
		t.Errorf("reloaded keys = %q", got)
	}
	if got := again.eval(t, `storage.get("name")`); got != "ada" {
		t.Errorf("reloaded name = %q", got)
	}
}

func TestAssets(t *testing.T) {
	root := assets.New("mem", fstest.MapFS{"levels/1.txt": {Data: []byte("#..#")}})
	f := newFixture(t, Deps{Assets: root})
	if got := f.eval(t, `assets.read("levels/1.txt")`); got != "#..#" {
		t.Errorf("read = %q", got)
	}
	if got := f.eval(t, `assets.exists("./levels/1.txt") + " " + assets.exists("levels") + " " + assets.exists("/etc/passwd")`); got != "true false false" {
		t.Errorf("exists = %q", got)
	}
	if err := f.evalErr(t, `assets.read("../secret")`); !errors.Is(err, assets.ErrInvalidPath) {
		t.Errorf("escape: err = %v", err)
	}
}
