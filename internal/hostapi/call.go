// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package hostapi

import (
	"fmt"
	"math"
)

// Call carries one invocation of a native function.
// Receiver is the handle a method was called on (zero for free functions).
type Call struct {
	Func     *Function
	Receiver Handle
	Args     []Value
}

// NewCall builds a call, checking the argument count against the
// function's arity.
func NewCall(fn *Function, receiver Handle, args []Value) (*Call, error) {
	min, max := fn.Arity()
	if len(args) < min {
		return nil, &ArgumentError{Func: fn.QualifiedName(), Index: -1,
			Detail: fmt.Sprintf("expected at least %d argument(s), got %d", min, len(args))}
	}
	if max >= 0 && len(args) > max {
		return nil, &ArgumentError{Func: fn.QualifiedName(), Index: -1,
			Detail: fmt.Sprintf("expected at most %d argument(s), got %d", max, len(args))}
	}
	return &Call{Func: fn, Receiver: receiver, Args: args}, nil
}

// Invoke runs the function.
func (c *Call) Invoke() (Value, error) {
	return c.Func.Fn(c)
}

// Arg returns argument i, or undefined when absent.
func (c *Call) Arg(i int) Value {
	if i < 0 || i >= len(c.Args) {
		return Undefined()
	}
	return c.Args[i]
}

// Number returns argument i as a finite number.
func (c *Call) Number(i int) (float64, error) {
	n, ok := c.Arg(i).AsNumber()
	if !ok {
		return 0, c.argError(i, "number")
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, &ArgumentError{Func: c.name(), Index: i, Detail: "number must be finite"}
	}
	return n, nil
}

// NumberOr returns argument i as a number, or def when it is undefined.
func (c *Call) NumberOr(i int, def float64) (float64, error) {
	if c.Arg(i).IsUndefined() {
		return def, nil
	}
	return c.Number(i)
}

// Int returns argument i truncated to an integer.
func (c *Call) Int(i int) (int, error) {
	n, err := c.Number(i)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, &ArgumentError{Func: c.name(), Index: i, Detail: "integer out of range"}
	}
	return int(n), nil
}

// String returns argument i as a string.
func (c *Call) String(i int) (string, error) {
	s, ok := c.Arg(i).AsString()
	if !ok {
		return "", c.argError(i, "string")
	}
	return s, nil
}

// Bool returns argument i as a boolean.
func (c *Call) Bool(i int) (bool, error) {
	b, ok := c.Arg(i).AsBool()
	if !ok {
		return false, c.argError(i, "boolean")
	}
	return b, nil
}

// Handle returns argument i as a handle. Validation against an Arena is
// the caller's job; this only checks the variant and type name.
func (c *Call) Handle(i int, typeName string) (Handle, error) {
	h, ok := c.Arg(i).AsHandle()
	if !ok {
		return Handle{}, c.argError(i, typeName)
	}
	if h.Type != typeName {
		return Handle{}, &StaleHandleError{Handle: h, Want: typeName, Reason: ErrWrongHandleType}
	}
	return h, nil
}

func (c *Call) name() string {
	if c.Func == nil {
		return "call"
	}
	return c.Func.QualifiedName()
}

func (c *Call) argError(i int, want string) error {
	got := c.Arg(i)
	detail := fmt.Sprintf("expected %s, got %s", want, got.Kind())
	if h, ok := got.AsHandle(); ok {
		detail = fmt.Sprintf("expected %s, got %s", want, h.Type)
	}
	return &ArgumentError{Func: c.name(), Index: i, Detail: detail}
}
