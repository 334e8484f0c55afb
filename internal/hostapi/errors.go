// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package hostapi

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleHandle indicates a handle whose native object was released
	ErrStaleHandle = errors.New("stale handle")

	// ErrWrongHandleType indicates a live handle of another type
	ErrWrongHandleType = errors.New("wrong handle type")

	// ErrDuplicateName indicates a namespace, type or function name collision
	ErrDuplicateName = errors.New("name already registered")

	// ErrInvalidName indicates a name that is not a plain identifier or is reserved
	ErrInvalidName = errors.New("invalid name")

	// ErrRegistrySealed indicates an install attempt after the registry was sealed
	ErrRegistrySealed = errors.New("registry is sealed")
)

// InstallError reports a capability module that failed to register.
type InstallError struct {
	Module string
	Cause  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s: %v", e.Module, e.Cause)
}

func (e *InstallError) Unwrap() error {
	return e.Cause
}

// StaleHandleError reports a handle that no longer refers to a live object,
// or refers to one of a different type.
type StaleHandleError struct {
	Handle Handle
	Want   string
	Reason error
}

func (e *StaleHandleError) Error() string {
	if errors.Is(e.Reason, ErrWrongHandleType) {
		return fmt.Sprintf("%v: %s is not a %s", e.Reason, e.Handle, e.Want)
	}
	return fmt.Sprintf("%v: %s was released", e.Reason, e.Handle)
}

func (e *StaleHandleError) Unwrap() error {
	return e.Reason
}

// ArgumentError reports a call argument of the wrong kind or a missing one.
type ArgumentError struct {
	Func   string
	Index  int
	Detail string
}

func (e *ArgumentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", e.Func, e.Detail)
	}
	return fmt.Sprintf("%s: argument %d: %s", e.Func, e.Index+1, e.Detail)
}
