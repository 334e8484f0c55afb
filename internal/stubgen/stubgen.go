// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package stubgen renders a TypeScript declaration file for the script
// surface installed in a registry, so editors can complete and type-check
// game scripts.
package stubgen

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// Header opens every generated file.
const Header = "// Code generated by stubgen. DO NOT EDIT.\n"

const mainDecl = `/** The script entry point. Declare it as a top-level Main binding. */
interface KestrelMain<S = unknown> {
	/** Runs once before the first frame; its result is the state. */
	begin(): S;
	/** Runs once per tick with the state begin returned. */
	frame(state: S): void;
	/** Runs exactly once at shutdown after a successful begin. */
	close(state: S): void;
}
`

// Render writes declarations for every opaque type and namespace in reg.
func Render(w io.Writer, reg *hostapi.Registry) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		_, _ = fmt.Fprintf(bw, format, args...)
	}

	p("%s\n", Header)
	p("%s", mainDecl)

	for _, t := range reg.Types() {
		p("\n")
		writeDoc(bw, "", t.Doc)
		p("declare class %s {\n", t.Name)
		p("\tprivate constructor();\n")
		for _, m := range t.Methods() {
			writeDoc(bw, "\t", m.Doc)
			p("\t%s;\n", m.Signature())
		}
		p("}\n")
	}

	for _, ns := range reg.Namespaces() {
		p("\n")
		writeDoc(bw, "", ns.Doc)
		p("declare namespace %s {\n", ns.Name)
		for _, fn := range ns.Funcs() {
			writeDoc(bw, "\t", fn.Doc)
			p("\tfunction %s;\n", fn.Signature())
		}
		p("}\n")
	}
	return bw.Flush()
}

// writeDoc emits a one-paragraph JSDoc comment, or nothing for empty docs.
func writeDoc(w io.Writer, indent, doc string) {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return
	}
	doc = strings.ReplaceAll(doc, "*/", "*\\/")
	lines := strings.Split(doc, "\n")
	if len(lines) == 1 {
		_, _ = fmt.Fprintf(w, "%s/** %s */\n", indent, doc)
		return
	}
	_, _ = fmt.Fprintf(w, "%s/**\n", indent)
	for _, l := range lines {
		_, _ = fmt.Fprintf(w, "%s * %s\n", indent, strings.TrimSpace(l))
	}
	_, _ = fmt.Fprintf(w, "%s */\n", indent)
}
