package audio

import "github.com/milk9111/matter/material"

// Sink is the playback surface the simulation drives. One-shot and impact
// sounds fire and forget; skid and roll voices are keyed by contact and
// live until stopped. The impact choice index is made by the caller so a
// replay can reproduce it.
type Sink interface {
	PlayOnce(ref material.SoundRef, volume float32)
	PlayImpact(refs []material.SoundRef, choice int, volume float32)
	StartVoice(key uint64, ref material.SoundRef)
	SetVoiceGain(key uint64, gain float32)
	StopVoice(key uint64)
}

// NullSink discards everything. Used headless and in tests.
type NullSink struct{}

func (NullSink) PlayOnce(material.SoundRef, float32)          {}
func (NullSink) PlayImpact([]material.SoundRef, int, float32) {}
func (NullSink) StartVoice(uint64, material.SoundRef)         {}
func (NullSink) SetVoiceGain(uint64, float32)                 {}
func (NullSink) StopVoice(uint64)                             {}
