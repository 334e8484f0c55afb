// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"fmt"

	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// App exposes the application shell to scripts.
type App struct {
	title string
	tick  uint64
	quit  bool
}

func (a *App) Name() string { return "app" }

func (a *App) Install(reg *hostapi.Registry) error {
	ns, err := reg.Namespace("app", "Application shell control.")
	if err != nil {
		return err
	}
	err = register(ns,
		&hostapi.Function{
			Name: "quit",
			Doc:  "Asks the shell to stop after the current tick. Main.close still runs.",
			Fn: func(*hostapi.Call) (hostapi.Value, error) {
				a.quit = true
				return hostapi.Undefined(), nil
			},
		},
		&hostapi.Function{
			Name:    "title",
			Doc:     "Returns the window title.",
			Returns: "string",
			Fn: func(*hostapi.Call) (hostapi.Value, error) {
				return hostapi.String(a.title), nil
			},
		},
		&hostapi.Function{
			Name:    "ticks",
			Doc:     "Returns the number of the tick in progress (0 before the first tick).",
			Returns: "number",
			Fn: func(*hostapi.Call) (hostapi.Value, error) {
				return hostapi.Number(float64(a.tick)), nil
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register app functions: %w", err)
	}
	return nil
}

// Reset clears a pending quit request and the tick counter.
func (a *App) Reset() {
	a.quit = false
	a.tick = 0
}
