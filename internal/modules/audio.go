// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"fmt"

	"github.com/aplane-algo/kestrel/internal/assets"
	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// Audio plays sound assets through the mixer. A Sound handle goes stale
// at the first tick that begins after its voice finished.
type Audio struct {
	mixer  *Mixer
	assets *assets.Root
	sounds *hostapi.Arena[uint64]
}

func (a *Audio) Name() string { return "audio" }

func (a *Audio) Install(reg *hostapi.Registry) error {
	ns, err := reg.Namespace("audio", "Sound playback.")
	if err != nil {
		return err
	}
	t, err := ns.Type("Sound", "A playing voice.")
	if err != nil {
		return err
	}

	err = register(ns,
		&hostapi.Function{
			Name: "play",
			Doc:  "Plays a sound asset at volume (0 to 1, default 1).",
			Params: []hostapi.Param{
				{Name: "path", Type: "string"},
				{Name: "volume", Type: "number", Optional: true},
			},
			Returns: "Sound",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				p, err := call.String(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				vol, err := call.NumberOr(1, 1)
				if err != nil {
					return hostapi.Undefined(), err
				}
				if vol < 0 || vol > 1 {
					return hostapi.Undefined(), &hostapi.ArgumentError{Func: call.Func.QualifiedName(), Index: 1, Detail: "volume must be between 0 and 1"}
				}
				clip, err := a.assets.Read(p)
				if err != nil {
					return hostapi.Undefined(), err
				}
				id := a.mixer.Play(p, clip, vol)
				return hostapi.HandleValue(a.sounds.Insert(id)), nil
			},
		},
		&hostapi.Function{
			Name:    "playing",
			Doc:     "Returns the number of sounds still audible.",
			Returns: "number",
			Fn: func(*hostapi.Call) (hostapi.Value, error) {
				return hostapi.Int(int64(a.mixer.Active())), nil
			},
		},
		&hostapi.Function{
			Name: "stopAll",
			Doc:  "Silences every sound.",
			Fn: func(*hostapi.Call) (hostapi.Value, error) {
				a.mixer.StopAll()
				a.sounds.Clear()
				return hostapi.Undefined(), nil
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register audio functions: %w", err)
	}

	err = methods(t,
		&hostapi.Function{
			Name:    "playing",
			Doc:     "Reports whether the sound is still audible.",
			Returns: "boolean",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				id, err := a.sounds.Get(call.Receiver)
				if err != nil {
					return hostapi.Undefined(), err
				}
				return hostapi.Bool(a.mixer.Playing(id)), nil
			},
		},
		&hostapi.Function{
			Name: "stop",
			Doc:  "Silences the sound. Further use of this handle fails.",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				id, err := a.sounds.Remove(call.Receiver)
				if err != nil {
					return hostapi.Undefined(), err
				}
				a.mixer.Stop(id)
				return hostapi.Undefined(), nil
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register Sound methods: %w", err)
	}
	return nil
}

// sweep releases handles of finished voices.
func (a *Audio) sweep() {
	var done []hostapi.Handle
	a.sounds.Each(func(h hostapi.Handle, id uint64) bool {
		if !a.mixer.Playing(id) {
			done = append(done, h)
		}
		return true
	})
	for _, h := range done {
		_, _ = a.sounds.Remove(h)
	}
}

// Reset silences every sound.
func (a *Audio) Reset() {
	a.mixer.StopAll()
	a.sounds.Clear()
}
