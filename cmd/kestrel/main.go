// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// kestrel runs JavaScript games against the native capability modules.
//
// Usage:
//
//	kestrel [flags] [run] <script.js>
//	kestrel [flags] check <script.js>...
//	kestrel [flags] repl [script.js]
//	kestrel [flags] sessions [n]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aplane-algo/kestrel/internal/util"
	"github.com/aplane-algo/kestrel/internal/version"
)

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintln(out, "Usage:")
	_, _ = fmt.Fprintln(out, "  kestrel [flags] [run] <script.js>    run a script")
	_, _ = fmt.Fprintln(out, "  kestrel [flags] check <script.js>... compile and report diagnostics")
	_, _ = fmt.Fprintln(out, "  kestrel [flags] repl [script.js]     evaluate JavaScript interactively")
	_, _ = fmt.Fprintln(out, "  kestrel [flags] sessions [n]         list recent runs")
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Flags:")
	flag.PrintDefaults()
}

func main() {
	// Define all flags upfront before parsing
	printVersion := flag.Bool("version", false, "Print version and exit")
	showConfig := flag.Bool("show-config", false, "Print the effective configuration and exit")
	dataDir := flag.String("d", "", "Data directory (default: ~/.kestrel or KESTREL_DATA)")
	backend := flag.String("backend", "", "Render backend (headless, term); overrides config")
	frames := flag.Uint64("frames", 0, "Stop after this many ticks; overrides config")
	watch := flag.Bool("watch", false, "Reload the script when the file changes")
	dump := flag.String("dump", "", "Write presented frames as PNG into this directory (headless)")
	flag.Usage = usage
	flag.Parse()

	// Handle early-exit flags
	if *printVersion {
		fmt.Printf("kestrel %s\n", version.String())
		os.Exit(0)
	}

	// Initialize logger (supports KESTREL_DEBUG environment variable)
	util.InitLogger()

	// Resolve data directory: -d flag > KESTREL_DATA env var > ~/.kestrel
	resolvedDataDir := util.GetDataDir(*dataDir)

	config, err := util.LoadConfig(resolvedDataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Command-line overrides
	if *backend != "" {
		config.Backend = *backend
	}
	if *frames > 0 {
		config.MaxTicks = *frames
	}
	if *watch {
		config.Watch = true
	}
	if *dump != "" {
		config.DumpDir = *dump
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *showConfig {
		util.DisplayConfig(resolvedDataDir, config)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	switch args[0] {
	case "check":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: check needs at least one script")
			os.Exit(2)
		}
		code = checkScripts(os.Stdout, args[1:])
	case "repl":
		script := ""
		if len(args) > 1 {
			script = args[1]
		}
		code = startREPL(ctx, config, script)
	case "sessions":
		limit := 10
		if len(args) > 1 {
			if limit, err = strconv.Atoi(args[1]); err != nil || limit <= 0 {
				fmt.Fprintf(os.Stderr, "Error: invalid session count %q\n", args[1])
				os.Exit(2)
			}
		}
		code = listSessions(ctx, os.Stdout, config, limit)
	case "run":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "Error: run needs exactly one script")
			os.Exit(2)
		}
		code = runScript(ctx, config, args[1])
	default:
		if len(args) != 1 {
			usage()
			os.Exit(2)
		}
		code = runScript(ctx, config, args[0])
	}
	stop()
	os.Exit(code)
}
