// Package audio synthesizes the contact sounds the simulation asks for.
// Sounds are procedural descriptors, not samples; a Bank assigns them the
// stable ids that go on the wire, and a Sink turns play requests into
// audible output.
package audio

import (
	"fmt"
	"time"

	"github.com/milk9111/matter/material"
)

// WaveType defines oscillator wave shapes.
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveSaw
	WaveNoise
)

var waveByName = map[string]WaveType{
	"sine":   WaveSine,
	"square": WaveSquare,
	"saw":    WaveSaw,
	"noise":  WaveNoise,
}

// ParseWave resolves a wave shape name from a definition file.
func ParseWave(name string) (WaveType, error) {
	w, ok := waveByName[name]
	if !ok {
		return 0, fmt.Errorf("audio: unknown wave %q", name)
	}
	return w, nil
}

func (w WaveType) String() string {
	switch w {
	case WaveSine:
		return "sine"
	case WaveSquare:
		return "square"
	case WaveSaw:
		return "saw"
	case WaveNoise:
		return "noise"
	}
	return "unknown"
}

// Descriptor is the recipe for one synthesized sound.
type Descriptor struct {
	Wave     WaveType
	Freq     float64
	Duration time.Duration
	Attack   time.Duration
	Release  time.Duration
	Loop     bool
}

// Sound is a registered descriptor. It implements material.SoundRef, so
// materials reference sounds without knowing how they are produced.
type Sound struct {
	id   uint32
	name string
	Descriptor
}

func (s *Sound) SoundID() uint32   { return s.id }
func (s *Sound) SoundName() string { return s.name }

// Bank assigns stable ids to sounds in registration order, mirroring the
// material registry so both sides of a stream agree on ids.
type Bank struct {
	byName  map[string]*Sound
	byID    map[uint32]*Sound
	ordered []*Sound
	nextID  uint32
}

func NewBank() *Bank {
	return &Bank{
		byName: make(map[string]*Sound),
		byID:   make(map[uint32]*Sound),
		nextID: 1,
	}
}

// Add registers a sound under a unique name.
func (b *Bank) Add(name string, d Descriptor) (*Sound, error) {
	if name == "" {
		return nil, fmt.Errorf("audio: empty sound name")
	}
	if _, ok := b.byName[name]; ok {
		return nil, fmt.Errorf("audio: duplicate sound name %q", name)
	}
	s := &Sound{id: b.nextID, name: name, Descriptor: d}
	b.nextID++
	b.byName[name] = s
	b.byID[s.id] = s
	b.ordered = append(b.ordered, s)
	return s, nil
}

// Lookup resolves a name to the concrete sound.
func (b *Bank) Lookup(name string) (*Sound, bool) {
	s, ok := b.byName[name]
	return s, ok
}

// SoundByName implements the sound half of material.Refs.
func (b *Bank) SoundByName(name string) (material.SoundRef, error) {
	s, ok := b.byName[name]
	if !ok {
		return nil, fmt.Errorf("audio: sound %q: %w", name, material.ErrNotFound)
	}
	return s, nil
}

// SoundByID implements the sound half of material.RefTable.
func (b *Bank) SoundByID(id uint32) (material.SoundRef, error) {
	s, ok := b.byID[id]
	if !ok {
		return nil, fmt.Errorf("audio: sound id %d: %w", id, material.ErrNotFound)
	}
	return s, nil
}

// All returns the registered sounds in registration order.
func (b *Bank) All() []*Sound {
	out := make([]*Sound, len(b.ordered))
	copy(out, b.ordered)
	return out
}
