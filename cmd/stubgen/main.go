// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// stubgen generates TypeScript declarations for the standard script modules.
// Usage: go run ./cmd/stubgen -o examples/kestrel.d.ts
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aplane-algo/kestrel/internal/modules"
	"github.com/aplane-algo/kestrel/internal/stubgen"
)

func main() {
	output := flag.String("o", "", "Output file (default: stdout)")
	flag.Parse()

	reg, err := modules.Surface()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output) // #nosec G304 - output path is user-provided by design
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := stubgen.Render(w, reg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
