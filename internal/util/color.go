// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// SupportsColor checks if the terminal supports ANSI color codes
func SupportsColor() bool {
	// Check if stdout is a terminal
	if !IsTerminal(os.Stdout) {
		return false
	}

	// Check TERM environment variable
	termEnv := os.Getenv("TERM")
	if termEnv == "" || termEnv == "dumb" {
		return false
	}

	return true
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) // #nosec G115 - file descriptors are small integers
}

// IsTerminalStdout reports whether both stdin and stdout are terminals.
func IsTerminalStdout() bool {
	return IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// TerminalSize returns the size of the terminal on stdout, or 80x24 if unknown.
func TerminalSize() (cols, rows int) {
	cols, rows, err := term.GetSize(int(os.Stdout.Fd())) // #nosec G115 - file descriptors are small integers
	if err != nil || cols <= 0 || rows <= 0 {
		return 80, 24
	}
	return cols, rows
}

var (
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))
)

// Styled holds render helpers that degrade to plain text off a terminal.
type Styled struct {
	color bool
}

// NewStyled returns render helpers; color is enabled only on a capable terminal.
func NewStyled() Styled {
	return Styled{color: SupportsColor()}
}

// Error renders s as an error label.
func (s Styled) Error(text string) string {
	if !s.color {
		return text
	}
	return errorStyle.Render(text)
}

// Location renders a source location.
func (s Styled) Location(text string) string {
	if !s.color {
		return text
	}
	return locationStyle.Render(text)
}

// OK renders a success label.
func (s Styled) OK(text string) string {
	if !s.color {
		return text
	}
	return okStyle.Render(text)
}
