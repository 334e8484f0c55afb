// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package scripting compiles game scripts against the installed capability
// modules and drives their lifecycle.
//
// A Context owns one goja VM and one compiled Unit. Bootstrap runs the unit,
// calls Main.begin() and returns the Binding: the (frame, close, state)
// triple the render loop drives once per tick and tears down exactly once.
package scripting

// Result holds the outcome of evaluating a snippet.
type Result struct {
	// Value is the exported result value (nil if IsEmpty is true)
	Value interface{}
	// IsEmpty is true if the snippet returned undefined/null/void
	IsEmpty bool
}

// Runner is the low-level VM abstraction for interactive evaluation.
//
// This interface is designed for:
//   - REPL usage (persistent runtime, line-by-line execution)
//   - Swappable engines
//
// It does NOT handle the game lifecycle; see Context.Bootstrap and Binding.
type Runner interface {
	// Run executes the given code and returns the result.
	// Errors include syntax errors, runtime exceptions, etc.
	Run(code string) (Result, error)

	// Interrupt stops the currently running code.
	// Safe to call from another goroutine.
	Interrupt()
}

// Compile-time interface check
var _ Runner = (*Context)(nil)
