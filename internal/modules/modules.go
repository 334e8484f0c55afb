// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package modules provides the standard native capability modules.
//
// Each module installs one namespace into a hostapi.Registry. Modules are
// organized into files by namespace:
//   - console.go: console.log/warn/error routed to the structured logger
//   - app.go: quit request, title, tick counter
//   - frame.go: per-tick Frame handle (stale after the tick ends)
//   - camera.go: the scene's main Camera
//   - image.go: Image load/create/draw/release
//   - scene.go: animated Node sprites
//   - input.go: keys held this frame
//   - audio.go, mixer.go: Sound playback over a locked mixer
//   - storage.go: persistent key/value save data
//   - assets.go: raw asset reads
package modules

import (
	"log/slog"
	"strings"
	"time"

	"github.com/aplane-algo/kestrel/internal/assets"
	"github.com/aplane-algo/kestrel/internal/hostapi"
	"github.com/aplane-algo/kestrel/internal/render"
	"github.com/aplane-algo/kestrel/internal/store"
	"github.com/aplane-algo/kestrel/internal/util"
)

// Deps are the native services the standard modules wrap.
type Deps struct {
	Logger *slog.Logger
	Title  string

	Window render.Window
	Scene  *render.Scene
	Assets *assets.Root

	// Store and SaveNamespace back the storage module; a nil Store
	// disables persistence.
	Store         *store.Store
	SaveNamespace string

	Mixer *Mixer
}

// Set is the standard module set. It also implements the render loop's
// per-tick hooks.
type Set struct {
	Console *Console
	App     *App
	Frame   *Frame
	Camera  *Camera
	Image   *Image
	Scene   *Scene
	Input   *Input
	Audio   *Audio
	Storage *Storage
	Assets  *Assets
}

// Standard builds the standard modules over deps.
func Standard(deps Deps) *Set {
	if deps.Logger == nil {
		deps.Logger = util.Logger
	}
	if deps.Mixer == nil {
		deps.Mixer = NewMixer()
	}
	if deps.Assets == nil {
		deps.Assets = assets.Empty()
	}

	cam := &Camera{scene: deps.Scene, cameras: hostapi.NewArena[*render.Camera]("Camera")}
	img := &Image{
		assets: deps.Assets,
		window: deps.Window,
		camera: cam,
		images: hostapi.NewArena[*imageEntry]("Image"),
	}
	return &Set{
		Console: &Console{logger: deps.Logger},
		App:     &App{title: deps.Title},
		Frame:   &Frame{frames: hostapi.NewArena[frameInfo]("Frame")},
		Camera:  cam,
		Image:   img,
		Scene:   &Scene{scene: deps.Scene, image: img, nodes: hostapi.NewArena[*render.Node]("Node")},
		Input:   &Input{},
		Audio:   &Audio{mixer: deps.Mixer, assets: deps.Assets, sounds: hostapi.NewArena[uint64]("Sound")},
		Storage: NewStorage(deps.Store, deps.SaveNamespace),
		Assets:  &Assets{root: deps.Assets},
	}
}

// Surface returns a sealed registry holding the standard namespaces with no
// native services behind them. It serves compile-only checks and API docs;
// its functions must not be called.
func Surface() (*hostapi.Registry, error) {
	reg := hostapi.NewRegistry()
	if err := reg.Install(Standard(Deps{}).Modules()...); err != nil {
		return nil, err
	}
	reg.Seal()
	return reg, nil
}

// Modules returns the modules in install order.
func (s *Set) Modules() []hostapi.Module {
	return []hostapi.Module{
		s.Console, s.App, s.Frame, s.Camera, s.Image,
		s.Scene, s.Input, s.Audio, s.Storage, s.Assets,
	}
}

// BeginTick publishes the tick's timing and input to the modules. It runs
// after the native scene was rendered and before the script's frame call.
func (s *Set) BeginTick(tick uint64, in render.FrameInput) {
	s.App.tick = tick
	s.Frame.publish(frameInfo{
		index:   tick,
		delta:   in.Delta,
		elapsed: in.Elapsed,
		width:   in.Width,
		height:  in.Height,
	})
	s.Input.publish(in.Keys)
	s.Audio.sweep()
}

// QuitRequested reports whether the script called app.quit().
func (s *Set) QuitRequested() bool {
	return s.App.quit
}

// Flush persists pending storage writes.
func (s *Set) Flush() error {
	return s.Storage.Flush()
}

// register adds fns to ns in order.
func register(ns *hostapi.Namespace, fns ...*hostapi.Function) error {
	for _, fn := range fns {
		if err := ns.Func(fn); err != nil {
			return err
		}
	}
	return nil
}

// methods adds fns to t in order.
func methods(t *hostapi.Type, fns ...*hostapi.Function) error {
	for _, fn := range fns {
		if err := t.Method(fn); err != nil {
			return err
		}
	}
	return nil
}

func seconds(d time.Duration) hostapi.Value {
	return hostapi.Number(d.Seconds())
}

func joinValues(args []hostapi.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}
