// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aplane-algo/kestrel/internal/hostapi"
	"github.com/aplane-algo/kestrel/internal/store"
)

// Storage is persistent key/value save data. Reads and writes hit an
// in-memory cache; Flush writes the changes to the store. Save data
// survives script reloads.
type Storage struct {
	store     *store.Store
	namespace string

	loaded  bool
	cache   map[string][]byte
	dirty   map[string]bool
	deleted map[string]bool
}

// NewStorage creates the storage module. A nil st keeps data in memory only.
func NewStorage(st *store.Store, namespace string) *Storage {
	if namespace == "" {
		namespace = "default"
	}
	return &Storage{
		store:     st,
		namespace: namespace,
		cache:     make(map[string][]byte),
		dirty:     make(map[string]bool),
		deleted:   make(map[string]bool),
	}
}

func (s *Storage) Name() string { return "storage" }

func (s *Storage) Install(reg *hostapi.Registry) error {
	if err := s.load(context.Background()); err != nil {
		return err
	}
	ns, err := reg.Namespace("storage", "Save data that persists between runs.")
	if err != nil {
		return err
	}
	key := hostapi.Param{Name: "key", Type: "string"}
	err = register(ns,
		&hostapi.Function{
			Name:    "get",
			Doc:     "Returns the saved value for key, or fallback when unset.",
			Params:  []hostapi.Param{key, {Name: "fallback", Type: "any", Optional: true}},
			Returns: "any",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				k, err := call.String(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				data, ok := s.cache[k]
				if !ok {
					return call.Arg(1), nil
				}
				return store.DecodeValue(data)
			},
		},
		&hostapi.Function{
			Name:   "set",
			Doc:    "Saves a boolean, number or string under key.",
			Params: []hostapi.Param{key, {Name: "value", Type: "any"}},
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				k, err := call.String(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				data, err := store.EncodeValue(call.Arg(1))
				if err != nil {
					return hostapi.Undefined(), err
				}
				s.cache[k] = data
				s.dirty[k] = true
				delete(s.deleted, k)
				return hostapi.Undefined(), nil
			},
		},
		&hostapi.Function{
			Name:    "remove",
			Doc:     "Deletes key and reports whether it was set.",
			Params:  []hostapi.Param{key},
			Returns: "boolean",
			Fn: func(call *hostapi.Call) (hostapi.Value, error) {
				k, err := call.String(0)
				if err != nil {
					return hostapi.Undefined(), err
				}
				_, ok := s.cache[k]
				if ok {
					delete(s.cache, k)
					delete(s.dirty, k)
					s.deleted[k] = true
				}
				return hostapi.Bool(ok), nil
			},
		},
		&hostapi.Function{
			Name:    "keys",
			Doc:     "Returns the saved keys in order, comma separated.",
			Returns: "string",
			Fn: func(*hostapi.Call) (hostapi.Value, error) {
				return hostapi.String(strings.Join(s.Keys(), ",")), nil
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register storage functions: %w", err)
	}
	return nil
}

func (s *Storage) load(ctx context.Context) error {
	if s.loaded || s.store == nil {
		return nil
	}
	keys, err := s.store.Keys(ctx, s.namespace)
	if err != nil {
		return fmt.Errorf("failed to load save data: %w", err)
	}
	for _, k := range keys {
		data, ok, err := s.store.Get(ctx, s.namespace, k)
		if err != nil {
			return fmt.Errorf("failed to load save data: %w", err)
		}
		if ok {
			s.cache[k] = data
		}
	}
	s.loaded = true
	return nil
}

// Keys returns the cached keys in lexical order.
func (s *Storage) Keys() []string {
	keys := make([]string, 0, len(s.cache))
	for k := range s.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flush writes pending changes to the store.
func (s *Storage) Flush() error {
	if s.store == nil {
		return nil
	}
	ctx := context.Background()
	for k := range s.deleted {
		if _, err := s.store.Delete(ctx, s.namespace, k); err != nil {
			return err
		}
		delete(s.deleted, k)
	}
	for k := range s.dirty {
		if err := s.store.Put(ctx, s.namespace, k, s.cache[k]); err != nil {
			return err
		}
		delete(s.dirty, k)
	}
	return nil
}
