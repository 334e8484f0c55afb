// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package scripting

import (
	"errors"
	"testing"

	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// sensorModule is a small capability module used to observe scripts from Go.
type sensorModule struct {
	records []float64
	tokens  *hostapi.Arena[int]
	next    int
	reenter func() error
}

func newSensor() *sensorModule {
	return &sensorModule{tokens: hostapi.NewArena[int]("Token")}
}

func (p *sensorModule) Name() string { return "sensor" }

func (p *sensorModule) Install(reg *hostapi.Registry) error {
	ns, err := reg.Namespace("sensor", "test sensor")
	if err != nil {
		return err
	}
	funcs := []*hostapi.Function{
		{
			Name:   "record",
			Params: []hostapi.Param{{Name: "n", Type: "number"}},
			Fn: func(c *hostapi.Call) (hostapi.Value, error) {
				n, err := c.Number(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				p.records = append(p.records, n)
				return hostapi.Undefined(), nil
			},
		},
		{
			Name:    "token",
			Returns: "Token",
			Fn: func(c *hostapi.Call) (hostapi.Value, error) {
				p.next++
				return hostapi.HandleValue(p.tokens.Insert(p.next)), nil
			},
		},
		{
			Name:   "drop",
			Params: []hostapi.Param{{Name: "token", Type: "Token"}},
			Fn: func(c *hostapi.Call) (hostapi.Value, error) {
				h, err := c.Handle(0, "Token")
				if err != nil {
					return hostapi.Undefined(), err
				}
				_, err = p.tokens.Remove(h)
				return hostapi.Undefined(), err
			},
		},
		{
			Name:    "echo",
			Params:  []hostapi.Param{{Name: "v", Type: "any", Optional: true}},
			Returns: "any",
			Fn: func(c *hostapi.Call) (hostapi.Value, error) {
				return c.Arg(0), nil
			},
		},
		{
			Name: "fail",
			Fn: func(c *hostapi.Call) (hostapi.Value, error) {
				return hostapi.Undefined(), errors.New("sensor failure")
			},
		},
		{
			Name: "boom",
			Fn: func(c *hostapi.Call) (hostapi.Value, error) {
				panic("sensor panic")
			},
		},
		{
			Name: "reenter",
			Fn: func(c *hostapi.Call) (hostapi.Value, error) {
				if p.reenter == nil {
					return hostapi.Undefined(), nil
				}
				return hostapi.Undefined(), p.reenter()
			},
		},
	}
	for _, fn := range funcs {
		if err := ns.Func(fn); err != nil {
			return err
		}
	}

	tok, err := ns.Type("Token", "test token")
	if err != nil {
		return err
	}
	return tok.Method(&hostapi.Function{
		Name:    "id",
		Returns: "number",
		Fn: func(c *hostapi.Call) (hostapi.Value, error) {
			id, err := p.tokens.Get(c.Receiver)
			if err != nil {
				return hostapi.Undefined(), err
			}
			return hostapi.Int(int64(id)), nil
		},
	})
}

func newTestRegistry(t *testing.T) (*hostapi.Registry, *sensorModule) {
	t.Helper()
	sensor := newSensor()
	reg := hostapi.NewRegistry()
	if err := reg.Install(sensor); err != nil {
		t.Fatalf("Install: %v", err)
	}
	return reg, sensor
}

func mustContext(t *testing.T, reg *hostapi.Registry, code string, opts ...Option) *Context {
	t.Helper()
	ctx, err := Initialize(reg, Source{Name: "main.js", Code: code}, opts...)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return ctx
}

func mustBootstrap(t *testing.T, reg *hostapi.Registry, code string, opts ...Option) *Binding {
	t.Helper()
	b, err := mustContext(t, reg, code, opts...).Bootstrap()
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return b
}

// countScript records each tick number, then -1 on close.
const countScript = `
const Main = {
	begin() { return { ticks: 0 }; },
	frame(state) { state.ticks++; sensor.record(state.ticks); },
	close(state) { sensor.record(-1); },
};
`
