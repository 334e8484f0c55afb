// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package scripting

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBindingClosed indicates a frame or close call after teardown
	ErrBindingClosed = errors.New("lifecycle binding is closed")

	// ErrNotBootstrapped indicates use of a runtime before Bootstrap succeeded
	ErrNotBootstrapped = errors.New("script runtime is not bootstrapped")

	// ErrAlreadyBootstrapped indicates a second Bootstrap on the same runtime
	ErrAlreadyBootstrapped = errors.New("script runtime is already bootstrapped")

	// ErrReentrantCall indicates a call into the script while another is running
	ErrReentrantCall = errors.New("reentrant script call")

	// ErrCallBudget indicates a script call interrupted for exceeding its time budget
	ErrCallBudget = errors.New("script call exceeded its time budget")

	// ErrHostPanic indicates a native panic raised during a script call
	ErrHostPanic = errors.New("native panic during script call")
)

// Diagnostic is one compile problem with its source position.
// Line and Column are 1-based; zero means unknown.
type Diagnostic struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.File, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
}

// CompileError reports a script that does not parse or does not check
// against the installed module surface. Diagnostics is never empty.
type CompileError struct {
	Unit        string
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "compile %s: %d error(s)", e.Unit, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		sb.WriteString("\n  ")
		sb.WriteString(d.String())
	}
	return sb.String()
}

// BootstrapError reports a failure to harvest the lifecycle binding: the
// script threw at top level, Main is missing or malformed, or begin threw.
type BootstrapError struct {
	Reason string
	Cause  error
}

func (e *BootstrapError) Error() string {
	if e.Cause == nil {
		return "bootstrap: " + e.Reason
	}
	return fmt.Sprintf("bootstrap: %s: %v", e.Reason, e.Cause)
}

func (e *BootstrapError) Unwrap() error {
	return e.Cause
}

// TickError reports a frame callback that failed. Tick is 1-based.
type TickError struct {
	Tick  uint64
	Cause error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick %d: %v", e.Tick, e.Cause)
}

func (e *TickError) Unwrap() error {
	return e.Cause
}

// TeardownError reports a close callback that failed. The binding is
// closed regardless.
type TeardownError struct {
	Cause error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown: %v", e.Cause)
}

func (e *TeardownError) Unwrap() error {
	return e.Cause
}

// ScriptError represents an error thrown by script code.
// Cause is set when the exception originated in a native function.
type ScriptError struct {
	Message string
	Cause   error
}

func (e *ScriptError) Error() string {
	return e.Message
}

func (e *ScriptError) Unwrap() error {
	return e.Cause
}
