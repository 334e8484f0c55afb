// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
	"golang.org/x/crypto/blake2b"

	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// entryName is the host-synthesized function appended to every unit. It
// resolves Main from inside the script's own scope, so Main may be declared
// with var, let, const or class.
const entryName = "__kestrel_main__"

const entryRoutine = "\nfunction " + entryName + "() {\n" +
	"\tif (typeof Main === \"undefined\" || Main === null) { return undefined; }\n" +
	"\treturn Main;\n" +
	"}\n"

// Source is script text plus the name used in diagnostics and stack traces.
type Source struct {
	Name string
	Code string
}

// LoadSource reads a script file.
func LoadSource(path string) (Source, error) {
	data, err := os.ReadFile(path) // #nosec G304 - script path is user-provided by design
	if err != nil {
		return Source{}, fmt.Errorf("failed to read script: %w", err)
	}
	return Source{Name: filepath.Base(path), Code: string(data)}, nil
}

// Unit is a compiled script. It is immutable and may be run by any VM
// whose registry has the same namespaces installed.
type Unit struct {
	Name   string
	Digest [blake2b.Size256]byte

	// Namespaces lists the installed namespaces the script references.
	Namespaces []string

	Program *goja.Program
	source  Source
}

// Source returns the script text the unit was compiled from.
func (u *Unit) Source() Source {
	return u.source
}

// Compile parses src, checks its host references against reg and compiles
// it. Every diagnostic found is reported in a single *CompileError.
func Compile(reg *hostapi.Registry, src Source) (*Unit, error) {
	if src.Name == "" {
		src.Name = "script.js"
	}

	prog, err := parser.ParseFile(nil, src.Name, src.Code+entryRoutine, 0)
	if err != nil {
		return nil, &CompileError{Unit: src.Name, Diagnostics: syntaxDiagnostics(src.Name, err)}
	}

	refs, diags := checkProgram(reg, src, prog)
	if len(diags) > 0 {
		return nil, &CompileError{Unit: src.Name, Diagnostics: diags}
	}

	program, err := goja.CompileAST(prog, false)
	if err != nil {
		return nil, &CompileError{Unit: src.Name, Diagnostics: []Diagnostic{{File: src.Name, Message: err.Error()}}}
	}

	return &Unit{
		Name:       src.Name,
		Digest:     blake2b.Sum256([]byte(src.Code)),
		Namespaces: refs,
		Program:    program,
		source:     src,
	}, nil
}

func syntaxDiagnostics(name string, err error) []Diagnostic {
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		out := make([]Diagnostic, 0, len(list))
		for _, e := range list {
			out = append(out, Diagnostic{
				File:    name,
				Line:    e.Position.Line,
				Column:  e.Position.Column,
				Message: e.Message,
			})
		}
		return out
	}
	var single *parser.Error
	if errors.As(err, &single) {
		return []Diagnostic{{File: name, Line: single.Position.Line, Column: single.Position.Column, Message: single.Message}}
	}
	return []Diagnostic{{File: name, Message: err.Error()}}
}
