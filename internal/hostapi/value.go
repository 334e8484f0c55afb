// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package hostapi defines the contract between native capability modules and
// the script runtime.
//
// A capability module registers a namespace of free functions and opaque
// types into a Registry. Every function exchanges only Values: a tagged union
// of undefined, bool, number, string and opaque handle. Handles are minted by
// an Arena and validated by type and generation on every use, so a script that
// keeps a handle past the native object's release gets a StaleHandleError
// instead of touching freed state.
//
// The package knows nothing about the script engine; internal/scripting
// bridges Values and Registry entries into the VM.
package hostapi

import (
	"fmt"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindBool
	KindNumber
	KindString
	KindHandle
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindHandle:
		return "handle"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a script-representable value.
// The zero Value is undefined.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	h    Handle
}

// Undefined returns the undefined value.
func Undefined() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int wraps an integer as a number.
func Int(i int64) Value { return Value{kind: KindNumber, n: float64(i)} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// HandleValue wraps an opaque handle. A zero handle yields undefined.
func HandleValue(h Handle) Value {
	if h.IsZero() {
		return Value{}
	}
	return Value{kind: KindHandle, h: h}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is undefined.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// AsBool returns the boolean and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number and whether v holds one.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string and whether v holds one.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsHandle returns the handle and whether v holds one.
func (v Value) AsHandle() (Handle, bool) { return v.h, v.kind == KindHandle }

// String renders v the way a script would print it.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindString:
		return v.s
	case KindHandle:
		return v.h.String()
	default:
		return "undefined"
	}
}

// Handle is an opaque reference to a natively owned resource.
// Slot indexes the owning Arena; Gen must match the slot's current
// generation for the handle to be live. The zero Handle is never valid.
type Handle struct {
	Type string
	Slot uint32
	Gen  uint32
}

// IsZero reports whether h is the invalid zero handle.
func (h Handle) IsZero() bool { return h.Gen == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("%s#%d.%d", h.Type, h.Slot, h.Gen)
}
