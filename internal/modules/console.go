// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// Console routes script output to the structured logger.
type Console struct {
	logger *slog.Logger
}

func (c *Console) Name() string { return "console" }

func (c *Console) Install(reg *hostapi.Registry) error {
	ns, err := reg.Namespace("console", "Script output, written to the host log.")
	if err != nil {
		return err
	}
	out := func(level slog.Level) hostapi.Func {
		return func(call *hostapi.Call) (hostapi.Value, error) {
			c.logger.Log(context.Background(), level, joinValues(call.Args), "source", "script")
			return hostapi.Undefined(), nil
		}
	}
	for _, f := range []struct {
		name  string
		level slog.Level
	}{
		{"log", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	} {
		err := ns.Func(&hostapi.Function{
			Name:     f.name,
			Doc:      fmt.Sprintf("Writes the arguments to the host log at %s level.", f.level),
			Variadic: true,
			Coerce:   true,
			Fn:       out(f.level),
		})
		if err != nil {
			return fmt.Errorf("failed to register console.%s: %w", f.name, err)
		}
	}
	return nil
}
