// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package stubgen

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aplane-algo/kestrel/internal/hostapi"
	"github.com/aplane-algo/kestrel/internal/modules"
)

type spriteModule struct{}

func (spriteModule) Name() string { return "sprites" }

func (spriteModule) Install(reg *hostapi.Registry) error {
	nop := func(*hostapi.Call) (hostapi.Value, error) { return hostapi.Undefined(), nil }
	ns, err := reg.Namespace("sprites", "Sprite sheets.")
	if err != nil {
		return err
	}
	t, err := ns.Type("Sprite", "One frame of a sheet.\nFrames are immutable.")
	if err != nil {
		return err
	}
	if err := t.Method(&hostapi.Function{Name: "width", Returns: "number", Fn: nop}); err != nil {
		return err
	}
	if err := ns.Func(&hostapi.Function{
		Name:    "cut",
		Doc:     "Cuts a sprite out of a sheet.",
		Params:  []hostapi.Param{{Name: "sheet", Type: "string"}, {Name: "index", Type: "number", Optional: true}},
		Returns: "Sprite",
		Fn:      nop,
	}); err != nil {
		return err
	}
	return ns.Func(&hostapi.Function{Name: "log", Variadic: true, Fn: nop})
}

func TestRender(t *testing.T) {
	reg := hostapi.NewRegistry()
	if err := reg.Install(spriteModule{}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, reg); err != nil {
		t.Fatal(err)
	}

	want := `
/**
 * One frame of a sheet.
 * Frames are immutable.
 */
declare class Sprite {
	private constructor();
	width(): number;
}

/** Sprite sheets. */
declare namespace sprites {
	/** Cuts a sprite out of a sheet. */
	function cut(sheet: string, index?: number): Sprite;
	function log(...rest: any[]): void;
}
`
	got := buf.String()
	if !strings.HasPrefix(got, Header) {
		t.Errorf("missing header:\n%s", got)
	}
	if !strings.Contains(got, "interface KestrelMain<S = unknown>") {
		t.Error("missing Main declaration")
	}
	if !strings.HasSuffix(got, want) {
		t.Errorf("declarations:\n%s\nwant suffix:\n%s", got, want)
	}
}

func TestRender_StandardModules(t *testing.T) {
	reg, err := modules.Surface()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, reg); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"declare class Image {",
		"declare namespace camera {",
		"\tfunction main(): Camera;",
		"declare namespace storage {",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestWriteDoc_EscapesCommentEnd(t *testing.T) {
	var buf bytes.Buffer
	writeDoc(&buf, "", "ends */ early")
	if got := buf.String(); got != "/** ends *\\/ early */\n" {
		t.Errorf("got %q", got)
	}
}
