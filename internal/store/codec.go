// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package store

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/aplane-algo/kestrel/internal/hostapi"
)

// ErrNotStorable indicates a value that cannot be persisted (a handle).
var ErrNotStorable = errors.New("value cannot be stored")

// record is the wire form of a stored Value.
type record struct {
	Kind uint8   `cbor:"1,keyasint"`
	Bool bool    `cbor:"2,keyasint,omitempty"`
	Num  float64 `cbor:"3,keyasint,omitempty"`
	Str  string  `cbor:"4,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// EncodeValue serializes v. Handles refer to live native objects and are
// rejected.
func EncodeValue(v hostapi.Value) ([]byte, error) {
	r := record{Kind: uint8(v.Kind())}
	switch v.Kind() {
	case hostapi.KindBool:
		r.Bool, _ = v.AsBool()
	case hostapi.KindNumber:
		r.Num, _ = v.AsNumber()
	case hostapi.KindString:
		r.Str, _ = v.AsString()
	case hostapi.KindHandle:
		return nil, fmt.Errorf("%w: %s is a native handle", ErrNotStorable, v)
	}
	return encMode.Marshal(r)
}

// DecodeValue deserializes a value written by EncodeValue.
func DecodeValue(data []byte) (hostapi.Value, error) {
	var r record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return hostapi.Undefined(), fmt.Errorf("store: unmarshal value: %w", err)
	}
	switch hostapi.Kind(r.Kind) {
	case hostapi.KindUndefined:
		return hostapi.Undefined(), nil
	case hostapi.KindBool:
		return hostapi.Bool(r.Bool), nil
	case hostapi.KindNumber:
		return hostapi.Number(r.Num), nil
	case hostapi.KindString:
		return hostapi.String(r.Str), nil
	default:
		return hostapi.Undefined(), fmt.Errorf("store: unknown value kind %d", r.Kind)
	}
}
