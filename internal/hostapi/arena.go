// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package hostapi

// Dropper is optionally implemented by arena values that need cleanup when
// their handle is removed.
type Dropper interface {
	Drop()
}

// Arena stores natively owned objects behind generation-checked handles.
//
// Removing an entry bumps its slot generation, so every handle minted for
// the previous occupant fails validation from then on even after the slot
// is reused. Arenas are owned by the driver thread and are not locked.
type Arena[T any] struct {
	typeName string
	slots    []arenaSlot[T]
	free     []uint32
	live     int
}

type arenaSlot[T any] struct {
	value T
	gen   uint32
	live  bool
}

// NewArena creates an empty arena whose handles carry typeName.
func NewArena[T any](typeName string) *Arena[T] {
	return &Arena[T]{
		typeName: typeName,
		slots:    make([]arenaSlot[T], 0, 16),
	}
}

// TypeName returns the handle type minted by this arena.
func (a *Arena[T]) TypeName() string {
	return a.typeName
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	if n := len(a.free); n > 0 {
		slot := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[slot]
		s.value = v
		s.live = true
		a.live++
		return Handle{Type: a.typeName, Slot: slot, Gen: s.gen}
	}

	a.slots = append(a.slots, arenaSlot[T]{value: v, gen: 1, live: true})
	a.live++
	return Handle{Type: a.typeName, Slot: uint32(len(a.slots) - 1), Gen: 1} // #nosec G115 - slot count is bounded by memory
}

// Get validates h and returns the object it refers to.
func (a *Arena[T]) Get(h Handle) (T, error) {
	s, err := a.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Valid reports whether h refers to a live object in this arena.
func (a *Arena[T]) Valid(h Handle) bool {
	_, err := a.lookup(h)
	return err == nil
}

// Remove releases the object behind h and invalidates every copy of h.
func (a *Arena[T]) Remove(h Handle) (T, error) {
	s, err := a.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}

	v := s.value
	var zero T
	s.value = zero
	s.live = false
	s.gen++
	if s.gen == 0 {
		// Generation 0 marks the zero handle; skip it on wraparound.
		s.gen = 1
	}
	a.free = append(a.free, h.Slot)
	a.live--

	if d, ok := any(v).(Dropper); ok {
		d.Drop()
	}
	return v, nil
}

// Len returns the number of live objects.
func (a *Arena[T]) Len() int {
	return a.live
}

// Each calls fn for every live object until fn returns false.
func (a *Arena[T]) Each(fn func(Handle, T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		h := Handle{Type: a.typeName, Slot: uint32(i), Gen: s.gen} // #nosec G115 - slot count is bounded by memory
		if !fn(h, s.value) {
			return
		}
	}
}

// Clear removes every live object, invalidating all outstanding handles.
func (a *Arena[T]) Clear() {
	var handles []Handle
	a.Each(func(h Handle, _ T) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		_, _ = a.Remove(h)
	}
}

func (a *Arena[T]) lookup(h Handle) (*arenaSlot[T], error) {
	if h.Type != a.typeName {
		return nil, &StaleHandleError{Handle: h, Want: a.typeName, Reason: ErrWrongHandleType}
	}
	if h.IsZero() || int(h.Slot) >= len(a.slots) {
		return nil, &StaleHandleError{Handle: h, Want: a.typeName, Reason: ErrStaleHandle}
	}
	s := &a.slots[h.Slot]
	if !s.live || s.gen != h.Gen {
		return nil, &StaleHandleError{Handle: h, Want: a.typeName, Reason: ErrStaleHandle}
	}
	return s, nil
}
