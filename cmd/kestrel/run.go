// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aplane-algo/kestrel/internal/modules"
	"github.com/aplane-algo/kestrel/internal/scripting"
	"github.com/aplane-algo/kestrel/internal/shell"
	"github.com/aplane-algo/kestrel/internal/util"
)

// runScript runs one script to completion and returns the exit code.
func runScript(ctx context.Context, config util.Config, path string) int {
	app := shell.New(config, path)
	if err := app.Run(ctx); err != nil {
		reportError(os.Stderr, util.NewStyled(), err)
		return 1
	}
	return 0
}

// checkScripts compiles every script against the standard modules and prints
// a line per script, plus its diagnostics. It returns the exit code.
func checkScripts(w io.Writer, paths []string) int {
	styled := util.NewStyled()
	reg, err := modules.Surface()
	if err != nil {
		reportError(w, styled, err)
		return 1
	}

	failed := 0
	for _, path := range paths {
		src, err := scripting.LoadSource(path)
		if err != nil {
			reportError(w, styled, err)
			failed++
			continue
		}
		unit, err := scripting.Compile(reg, src)
		if err != nil {
			reportError(w, styled, err)
			failed++
			continue
		}
		_, _ = fmt.Fprintf(w, "%s %s %s\n", styled.OK("ok"), path, styled.Location(fmt.Sprintf("(uses %v)", unit.Namespaces)))
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// reportError prints err, listing compile diagnostics one per line.
func reportError(w io.Writer, styled util.Styled, err error) {
	var ce *scripting.CompileError
	if !errors.As(err, &ce) {
		_, _ = fmt.Fprintf(w, "%s %v\n", styled.Error("Error:"), err)
		return
	}
	for _, d := range ce.Diagnostics {
		loc := d.File
		if d.Line > 0 {
			loc = fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
		}
		_, _ = fmt.Fprintf(w, "%s %s %s\n", styled.Location(loc+":"), styled.Error("error:"), d.Message)
	}
}
