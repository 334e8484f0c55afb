// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package shell wires the capability modules, script runtime and render
// loop into one application run with guaranteed teardown.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aplane-algo/kestrel/internal/assets"
	"github.com/aplane-algo/kestrel/internal/hostapi"
	"github.com/aplane-algo/kestrel/internal/loop"
	"github.com/aplane-algo/kestrel/internal/modules"
	"github.com/aplane-algo/kestrel/internal/render"
	"github.com/aplane-algo/kestrel/internal/scripting"
	"github.com/aplane-algo/kestrel/internal/store"
	"github.com/aplane-algo/kestrel/internal/util"
)

// Background is the scene's clear colour.
const Background = "#101018"

// Session statuses recorded in the save store.
const (
	StatusOK              = "ok"
	StatusBootstrapFailed = "bootstrap failed"
	StatusTickFailed      = "tick failed"
)

// App is one run of a script.
type App struct {
	config   util.Config
	script   string
	backend  render.Backend
	logger   *slog.Logger
	extra    []hostapi.Module
	debounce time.Duration

	reloadCh chan struct{}

	// Set during Run.
	reg     *hostapi.Registry
	set     *modules.Set
	rt      *scripting.Context
	session uuid.UUID
	stats   loop.Stats
}

// Option configures an App.
type Option func(*App)

// WithModules installs extra capability modules after the standard set.
func WithModules(mods ...hostapi.Module) Option {
	return func(a *App) {
		a.extra = append(a.extra, mods...)
	}
}

// WithBackend overrides the backend named in the config.
func WithBackend(b render.Backend) Option {
	return func(a *App) {
		a.backend = b
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// New creates an app running the script at path.
func New(cfg util.Config, path string, opts ...Option) *App {
	a := &App{
		config:   cfg,
		script:   path,
		logger:   util.Logger,
		debounce: 500 * time.Millisecond,
		reloadCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Session returns the ID of the last run, or uuid.Nil.
func (a *App) Session() uuid.UUID {
	return a.session
}

// Stats returns the loop summary of the last run.
func (a *App) Stats() loop.Stats {
	return a.stats
}

// RequestReload asks the loop to reload the script before its next tick.
// Safe to call from any goroutine; requests coalesce.
func (a *App) RequestReload() {
	select {
	case a.reloadCh <- struct{}{}:
	default:
	}
}

// Run executes the script until the window closes, the script quits, ctx is
// canceled or a tick fails. Modules are installed before the script is
// compiled. Once Main.begin has succeeded, Main.close runs exactly once on
// every exit path; a failing close is logged and never returned.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, err := scripting.LoadSource(a.script)
	if err != nil {
		return err
	}

	saveDB := a.config.SaveDB
	if saveDB == "" {
		saveDB = ":memory:"
	}
	st, err := store.Open(saveDB)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	root := assets.Empty()
	if a.config.Assets != "" {
		if root, err = assets.Open(a.config.Assets); err != nil {
			return err
		}
	}
	defer func() { _ = root.Close() }()

	backend := a.backend
	if backend == nil {
		backend, err = render.NewBackend(a.config.Backend, render.Options{
			DumpDir:   a.config.DumpDir,
			DumpEvery: a.config.DumpEvery,
		})
		if err != nil {
			return err
		}
	}
	window, err := backend.CreateWindow(render.Settings{
		Title:      a.config.Title,
		Width:      a.config.Width,
		Height:     a.config.Height,
		FPS:        a.config.FPS,
		Background: Background,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s window: %w", backend.Name(), err)
	}
	defer func() { _ = window.Close() }()

	scene := render.NewScene(a.config.Width, a.config.Height, Background)
	mixer := modules.NewMixer()
	go mixer.Run(ctx)

	a.set = modules.Standard(modules.Deps{
		Logger:        a.logger,
		Title:         a.config.Title,
		Window:        window,
		Scene:         scene,
		Assets:        root,
		Store:         st,
		SaveNamespace: a.config.Title,
		Mixer:         mixer,
	})
	a.reg = hostapi.NewRegistry()
	if err := a.reg.Install(append(a.set.Modules(), a.extra...)...); err != nil {
		return err
	}
	a.reg.Seal()

	a.rt, err = scripting.Initialize(a.reg, src, a.runtimeOptions()...)
	if err != nil {
		return err
	}

	a.session, err = st.StartSession(ctx, src.Name, fmt.Sprintf("%x", a.rt.Unit().Digest))
	if err != nil {
		return err
	}
	log := a.logger.With("session", a.session.String())
	log.Info("script loaded", "unit", src.Name, "namespaces", a.rt.Unit().Namespaces)

	driver := &loop.Driver{
		Window:   window,
		Scene:    scene,
		Observer: a.set,
		MaxTicks: a.config.MaxTicks,
		Reload:   a.reloadCh,
		OnReload: a.reload,
		Logger:   log,
	}
	status := StatusOK
	defer func() {
		a.stats = driver.Stats()
		if endErr := st.EndSession(context.Background(), a.session, a.stats.Ticks, status); endErr != nil {
			log.Warn("failed to record session", "error", endErr)
		}
	}()

	binding, err := a.rt.Bootstrap()
	if err != nil {
		status = StatusBootstrapFailed
		return err
	}
	driver.Binding = binding
	defer a.teardown(log, driver)

	if a.config.Watch {
		if err := a.watch(ctx, log); err != nil {
			log.Warn("hot reload disabled", "error", err)
		}
	}

	if err := driver.Run(ctx); err != nil {
		status = StatusTickFailed
		var be *scripting.BootstrapError
		if errors.As(err, &be) {
			status = StatusBootstrapFailed
		}
		return err
	}
	return nil
}

func (a *App) runtimeOptions() []scripting.Option {
	return []scripting.Option{
		scripting.WithLogger(a.logger),
		scripting.WithCallBudget(time.Duration(a.config.FrameBudgetMS) * time.Millisecond),
	}
}

// teardown closes the binding the driver currently runs and flushes save data.
func (a *App) teardown(log *slog.Logger, driver *loop.Driver) {
	if err := driver.Binding.Close(); err != nil && !errors.Is(err, scripting.ErrBindingClosed) {
		log.Warn("script teardown failed", "error", err)
	}
	if err := a.set.Flush(); err != nil {
		log.Warn("failed to save data", "error", err)
	}
	s := driver.Stats()
	log.Info("run finished", "ticks", s.Ticks, "reason", s.StopReason,
		"script_time", s.ScriptTime.Round(time.Millisecond), "reloads", s.Reloads)
}

// reload recompiles the script. A compile failure or an unchanged source
// keeps the running binding. Otherwise the running binding is closed,
// module state is reset and the new unit is bootstrapped; a failure from
// then on is a *scripting.BootstrapError that ends the run.
func (a *App) reload(cur *scripting.Binding) (*scripting.Binding, error) {
	src, err := scripting.LoadSource(a.script)
	if err != nil {
		return nil, err
	}
	unit, err := scripting.Compile(a.reg, src)
	if err != nil {
		return nil, err
	}
	if unit.Digest == a.rt.Unit().Digest {
		return nil, nil
	}

	if err := cur.Close(); err != nil {
		a.logger.Warn("script teardown failed", "error", err)
	}
	if err := a.set.Flush(); err != nil {
		a.logger.Warn("failed to save data", "error", err)
	}
	a.reg.Reset()

	rt, err := scripting.NewContext(a.reg, unit, a.runtimeOptions()...)
	if err != nil {
		return nil, &scripting.BootstrapError{Reason: "preparing the reloaded script failed", Cause: err}
	}
	b, err := rt.Bootstrap()
	if err != nil {
		return nil, err
	}
	a.rt = rt
	return b, nil
}
