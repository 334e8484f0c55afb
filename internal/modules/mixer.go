// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package modules

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"time"
)

// DefaultSoundLength is used for clips whose length cannot be read.
const DefaultSoundLength = time.Second

type voice struct {
	name   string
	volume float64
	ends   time.Time
}

// Mixer tracks playing voices. The audio side expires voices on its own
// goroutine while the driver thread starts and queries them, so all state
// is guarded by mu.
type Mixer struct {
	mu     sync.Mutex
	voices map[uint64]*voice
	nextID uint64
	now    func() time.Time
}

// NewMixer creates an idle mixer.
func NewMixer() *Mixer {
	return &Mixer{voices: make(map[uint64]*voice), now: time.Now}
}

// Play starts a clip and returns its voice id.
func (m *Mixer) Play(name string, clip []byte, volume float64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.voices[m.nextID] = &voice{name: name, volume: volume, ends: m.now().Add(ClipLength(clip))}
	return m.nextID
}

// Stop silences a voice and reports whether it was playing.
func (m *Mixer) Stop(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.voices[id]
	delete(m.voices, id)
	return ok
}

// Playing reports whether a voice is still sounding.
func (m *Mixer) Playing(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.voices[id]
	return ok && m.now().Before(v.ends)
}

// Active returns the number of voices still sounding.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for _, v := range m.voices {
		if now.Before(v.ends) {
			n++
		}
	}
	return n
}

// StopAll silences every voice.
func (m *Mixer) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.voices)
}

// Expire drops voices that finished and returns how many were dropped.
func (m *Mixer) Expire() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, v := range m.voices {
		if !now.Before(v.ends) {
			delete(m.voices, id)
			n++
		}
	}
	return n
}

// Run expires finished voices until ctx is done.
func (m *Mixer) Run(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.StopAll()
			return
		case <-ticker.C:
			m.Expire()
		}
	}
}

// ClipLength reads the playing time from a PCM WAV header. Other formats
// get DefaultSoundLength.
func ClipLength(clip []byte) time.Duration {
	if len(clip) < 12 || !bytes.Equal(clip[0:4], []byte("RIFF")) || !bytes.Equal(clip[8:12], []byte("WAVE")) {
		return DefaultSoundLength
	}
	var byteRate uint32
	for off := 12; off+8 <= len(clip); {
		id := string(clip[off : off+4])
		size := binary.LittleEndian.Uint32(clip[off+4 : off+8])
		body := off + 8
		switch id {
		case "fmt ":
			if body+12 <= len(clip) {
				byteRate = binary.LittleEndian.Uint32(clip[body+8 : body+12])
			}
		case "data":
			if byteRate == 0 {
				return DefaultSoundLength
			}
			return time.Duration(float64(size) / float64(byteRate) * float64(time.Second))
		}
		off = body + int(size) + int(size&1)
	}
	return DefaultSoundLength
}
