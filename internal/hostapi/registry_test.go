// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package hostapi

import (
	"errors"
	"testing"
)

// funcModule installs one namespace with the given function names.
type funcModule struct {
	name      string
	namespace string
	funcs     []string
	typeName  string
	resets    int
}

func (m *funcModule) Name() string { return m.name }

func (m *funcModule) Install(reg *Registry) error {
	ns, err := reg.Namespace(m.namespace, "test namespace")
	if err != nil {
		return err
	}
	for _, f := range m.funcs {
		err := ns.Func(&Function{
			Name: f,
			Fn:   func(*Call) (Value, error) { return Undefined(), nil },
		})
		if err != nil {
			return err
		}
	}
	if m.typeName != "" {
		if _, err := ns.Type(m.typeName, ""); err != nil {
			return err
		}
	}
	return nil
}

func (m *funcModule) Reset() { m.resets++ }

func TestRegistry_InstallAndLookup(t *testing.T) {
	reg := NewRegistry()
	err := reg.Install(
		&funcModule{name: "cam", namespace: "camera", funcs: []string{"main"}, typeName: "Camera"},
		&funcModule{name: "img", namespace: "image", funcs: []string{"load", "create"}, typeName: "Image"},
	)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	ns, ok := reg.Lookup("image")
	if !ok {
		t.Fatal("image namespace missing")
	}
	if ns.Module != "img" {
		t.Errorf("namespace module = %q, want img", ns.Module)
	}
	if fn, ok := ns.Lookup("load"); !ok || fn.QualifiedName() != "image.load" {
		t.Errorf("Lookup(load) = %v, %v", fn, ok)
	}
	if _, ok := reg.Type("Camera"); !ok {
		t.Error("Camera type missing")
	}

	names := reg.Namespaces()
	if len(names) != 2 || names[0].Name != "camera" || names[1].Name != "image" {
		t.Errorf("Namespaces not in install order: %v", names)
	}

	want := []string{"camera.main", "image.load", "image.create"}
	got := reg.Completions()
	if len(got) != len(want) {
		t.Fatalf("Completions = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Completions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistry_NamespaceCollision(t *testing.T) {
	reg := NewRegistry()
	err := reg.Install(
		&funcModule{name: "first", namespace: "audio", funcs: []string{"play"}},
		&funcModule{name: "second", namespace: "audio", funcs: []string{"stop"}},
	)

	var ie *InstallError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *InstallError", err)
	}
	if ie.Module != "second" {
		t.Errorf("InstallError.Module = %q, want second", ie.Module)
	}
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("err = %v, want ErrDuplicateName", err)
	}

	// The first module's surface is untouched
	ns, _ := reg.Lookup("audio")
	if _, ok := ns.Lookup("play"); !ok {
		t.Error("first module's function lost")
	}
	if len(reg.Modules()) != 1 {
		t.Errorf("Modules = %d, want 1", len(reg.Modules()))
	}
}

func TestRegistry_FailedInstallRollsBack(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Install(&funcModule{name: "a", namespace: "first", typeName: "Shared"}); err != nil {
		t.Fatal(err)
	}

	// Claims a namespace, then fails on the type collision
	err := reg.Install(&funcModule{name: "b", namespace: "second", typeName: "Shared"})
	if err == nil {
		t.Fatal("expected type collision")
	}
	if _, ok := reg.Lookup("second"); ok {
		t.Error("namespace of failed module was not rolled back")
	}
}

func TestRegistry_InvalidNames(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		funcs     []string
	}{
		{"reserved Main", "Main", nil},
		{"reserved eval", "eval", nil},
		{"not an identifier", "my-module", nil},
		{"leading digit", "2d", nil},
		{"bad function name", "ok", []string{"do it"}},
		{"duplicate function", "ok", []string{"f", "f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			err := reg.Install(&funcModule{name: "m", namespace: tt.namespace, funcs: tt.funcs})
			var ie *InstallError
			if !errors.As(err, &ie) {
				t.Fatalf("err = %v, want *InstallError", err)
			}
		})
	}
}

func TestRegistry_SealAndReset(t *testing.T) {
	reg := NewRegistry()
	m := &funcModule{name: "m", namespace: "app"}
	if err := reg.Install(m); err != nil {
		t.Fatal(err)
	}

	reg.Reset()
	if m.resets != 1 {
		t.Errorf("resets = %d, want 1", m.resets)
	}

	reg.Seal()
	err := reg.Install(&funcModule{name: "late", namespace: "late"})
	if !errors.Is(err, ErrRegistrySealed) {
		t.Errorf("err = %v, want ErrRegistrySealed", err)
	}
}
