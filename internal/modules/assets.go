// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"fmt"

	"github.com/aplane-algo/kestrel/internal/assets"
	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// Assets gives scripts read access to the asset root.
type Assets struct {
	root *assets.Root
}

func (a *Assets) Name() string { return "assets" }

func (a *Assets) Install(reg *hostapi.Registry) error {
	ns, err := reg.Namespace("assets", "Read-only access to bundled files.")
	if err != nil {
		return err
	}
	path := []hostapi.Param{{Name: "path", Type: "string"}}
	err = register(ns,
		&hostapi.Function{
			Name:    "read",
			Doc:     "Returns a text asset's contents.",
			Params:  path,
			Returns: "string",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				p, err := call.String(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				data, err := a.root.Read(p)
				if err != nil {
					return hostapi.Undefined(), err
				}
				return hostapi.String(string(data)), nil
			},
		},
		&hostapi.Function{
			Name:    "exists",
			Doc:     "Reports whether path names a file in the asset root.",
			Params:  path,
			Returns: "boolean",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				p, err := call.String(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				return hostapi.Bool(a.root.Exists(p)), nil
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register assets functions: %w", err)
	}
	return nil
}
