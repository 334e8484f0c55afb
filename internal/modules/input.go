// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"fmt"
	"strings"

	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// Input reports the keys held during the tick in progress.
type Input struct {
	keys []string
	held map[string]bool
}

func (in *Input) Name() string { return "input" }

func (in *Input) Install(reg *hostapi.Registry) error {
	ns, err := reg.Namespace("input", "Keyboard state for the tick in progress.")
	if err != nil {
		return err
	}
	err = register(ns,
		&hostapi.Function{
			Name:    "down",
			Doc:     `Reports whether key is held ("left", "a", "space", ...).`,
			Params:  []hostapi.Param{{Name: "key", Type: "string"}},
			Returns: "boolean",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				key, err := call.String(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				return hostapi.Bool(in.held[strings.ToLower(key)]), nil
			},
		},
		&hostapi.Function{
			Name:    "keys",
			Doc:     "Returns the held keys, comma separated.",
			Returns: "string",
			Fn: func(*hostapi.Call) (hostapi.Value, error) {
				return hostapi.String(strings.Join(in.keys, ",")), nil
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register input functions: %w", err)
	}
	return nil
}

func (in *Input) publish(keys []string) {
	in.keys = in.keys[:0]
	in.held = make(map[string]bool, len(keys))
	for _, k := range keys {
		k = strings.ToLower(k)
		if !in.held[k] {
			in.held[k] = true
			in.keys = append(in.keys, k)
		}
	}
}

// Reset forgets the held keys.
func (in *Input) Reset() {
	in.publish(nil)
}
