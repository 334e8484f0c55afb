// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package repl holds the line-editing helpers of the kestrel REPL.
package repl

import (
	"sort"
	"strings"
	"unicode"

	"github.com/chzyer/readline"

	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// Commands are the REPL's dot commands.
var Commands = []string{".exit", ".help", ".quit", ".tick", ".types"}

// Completer completes namespaces, their functions and handle methods at the
// cursor. It implements readline.AutoCompleter.
type Completer struct {
	namespaces []string
	funcs      map[string][]string
	methods    []string
}

var _ readline.AutoCompleter = (*Completer)(nil)

// NewCompleter builds a completer over the registry's installed surface.
func NewCompleter(reg *hostapi.Registry) *Completer {
	c := &Completer{funcs: make(map[string][]string)}
	for _, ns := range reg.Namespaces() {
		c.namespaces = append(c.namespaces, ns.Name)
		for _, fn := range ns.Funcs() {
			c.funcs[ns.Name] = append(c.funcs[ns.Name], fn.Name)
		}
	}
	seen := make(map[string]bool)
	for _, t := range reg.Types() {
		for _, m := range t.Methods() {
			if !seen[m.Name] {
				seen[m.Name] = true
				c.methods = append(c.methods, m.Name)
			}
		}
	}
	sort.Strings(c.namespaces)
	sort.Strings(c.methods)
	return c
}

// Do implements readline.AutoCompleter.
func (c *Completer) Do(line []rune, pos int) ([][]rune, int) {
	before := string(line[:pos])

	// Dot commands only at the start of the line.
	if strings.HasPrefix(before, ".") && !strings.ContainsRune(before, ' ') {
		return suggestionsPartial(filterByPrefix(Commands, before), len(before), " "), len(before)
	}

	word := wordBefore(before)
	dot := strings.LastIndexByte(word, '.')
	if dot < 0 {
		return suggestionsPartial(filterByPrefix(c.namespaces, word), len(word), "."), len(word)
	}

	head, partial := word[:dot], word[dot+1:]
	candidates := c.methods
	if fns, ok := c.funcs[head]; ok {
		candidates = fns
	}
	return suggestionsPartial(filterByPrefix(candidates, partial), len(partial), "("), len(partial)
}

// wordBefore returns the identifier path ending at the cursor.
func wordBefore(s string) string {
	start := len(s)
	for start > 0 {
		r := rune(s[start-1])
		if r != '.' && r != '_' && r != '$' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		start--
	}
	return s[start:]
}

// filterByPrefix returns the strings starting with prefix.
func filterByPrefix(strs []string, prefix string) []string {
	var result []string
	for _, s := range strs {
		if strings.HasPrefix(s, prefix) {
			result = append(result, s)
		}
	}
	return result
}

// suggestionsPartial converts matches to suggestions showing only the part
// after the typed prefix, followed by suffix.
func suggestionsPartial(strs []string, partialLen int, suffix string) [][]rune {
	suggestions := make([][]rune, 0, len(strs))
	for _, s := range strs {
		if partialLen <= len(s) {
			suggestions = append(suggestions, []rune(s[partialLen:]+suffix))
		}
	}
	return suggestions
}
