package audio

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"

	"github.com/milk9111/matter/material"
)

const (
	synthRate = beep.SampleRate(44100)

	// Contacts can fire the same sound many times per step; plays of one
	// sound inside this window collapse into the first.
	repeatWindow = 50 * time.Millisecond
)

// osc generates one wave shape. limit is in samples; zero or less means
// the stream never ends, which is what loop voices use.
type osc struct {
	freq  float64
	phase float64
	limit int
	pos   int
	wave  WaveType
	rate  beep.SampleRate
}

func newOsc(wave WaveType, freq float64, duration time.Duration, rate beep.SampleRate) *osc {
	limit := 0
	if duration > 0 {
		limit = rate.N(duration)
	}
	return &osc{freq: freq, limit: limit, wave: wave, rate: rate}
}

func (o *osc) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if o.limit > 0 && o.pos >= o.limit {
			return i, i > 0
		}

		var val float64
		switch o.wave {
		case WaveSine:
			val = math.Sin(2 * math.Pi * o.phase)
		case WaveSquare:
			if o.phase < 0.5 {
				val = 1.0
			} else {
				val = -1.0
			}
		case WaveSaw:
			val = 2.0 * (o.phase - 0.5)
		case WaveNoise:
			val = rand.Float64()*2 - 1
		}

		samples[i][0] = val
		samples[i][1] = val

		o.phase += o.freq / float64(o.rate)
		o.phase = o.phase - math.Floor(o.phase)
		o.pos++
	}
	return len(samples), true
}

func (o *osc) Err() error { return nil }

// envelope applies attack/release shaping to a finite stream.
type envelope struct {
	streamer       beep.Streamer
	position       int
	attackSamples  int
	releaseSamples int
	sustainSamples int
	totalSamples   int
}

func newEnvelope(s beep.Streamer, duration, attack, release time.Duration, rate beep.SampleRate) beep.Streamer {
	total := rate.N(duration)
	att := rate.N(attack)
	rel := rate.N(release)
	sus := total - att - rel
	if sus < 0 {
		sus = 0
	}
	return &envelope{
		streamer:       s,
		attackSamples:  att,
		releaseSamples: rel,
		sustainSamples: sus,
		totalSamples:   total,
	}
}

func (e *envelope) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.streamer.Stream(samples)

	for i := 0; i < n; i++ {
		if e.position >= e.totalSamples {
			return i, i > 0
		}

		var vol float64 = 1.0
		if e.position < e.attackSamples && e.attackSamples > 0 {
			vol = float64(e.position) / float64(e.attackSamples)
		}
		releaseStart := e.attackSamples + e.sustainSamples
		if e.position >= releaseStart && e.releaseSamples > 0 {
			remaining := e.totalSamples - e.position
			vol = float64(remaining) / float64(e.releaseSamples)
			if vol < 0 {
				vol = 0
			}
		}

		samples[i][0] *= vol
		samples[i][1] *= vol
		e.position++
	}

	return n, ok
}

func (e *envelope) Err() error { return e.streamer.Err() }

// newVolume wraps a stream in a gain stage. math.Log2(0) is -Inf, so zero
// and negative gains become silence instead.
func newVolume(s beep.Streamer, vol float64) *effects.Volume {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol), Silent: false}
}

// voice is one looping skid or roll stream, keyed by contact.
type voice struct {
	ctrl *beep.Ctrl
	vol  *effects.Volume
}

// Synth is the beep-backed Sink. All play methods are cheap and safe to
// call before Start; they simply do nothing until the speaker is up.
type Synth struct {
	mu       sync.Mutex
	mixer    *beep.Mixer
	voices   map[uint64]*voice
	lastPlay map[uint32]time.Time
	started  bool
}

func NewSynth() *Synth {
	return &Synth{
		mixer:    &beep.Mixer{},
		voices:   make(map[uint64]*voice),
		lastPlay: make(map[uint32]time.Time),
	}
}

// Start brings up the speaker and attaches the mixer.
func (s *Synth) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := speaker.Init(synthRate, synthRate.N(time.Millisecond*100)); err != nil {
		return err
	}
	speaker.Play(s.mixer)
	s.started = true
	return nil
}

// Stop silences everything. The speaker itself stays initialized; beep has
// no teardown for it.
func (s *Synth) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	s.started = false
}

// Reset drops every live voice and queued one-shot while keeping the
// speaker running. Scene teardown uses it so loop voices from removed
// contacts cannot outlive their space.
func (s *Synth) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
}

func (s *Synth) clearLocked() {
	for key, v := range s.voices {
		v.ctrl.Streamer = nil
		delete(s.voices, key)
	}
	s.mixer.Clear()
}

func (s *Synth) PlayOnce(ref material.SoundRef, volume float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snd, ok := s.playable(ref)
	if !ok {
		return
	}
	s.mixer.Add(s.oneShot(snd, float64(volume)))
}

func (s *Synth) PlayImpact(refs []material.SoundRef, choice int, volume float32) {
	if choice < 0 || choice >= len(refs) {
		return
	}
	s.PlayOnce(refs[choice], volume)
}

func (s *Synth) StartVoice(key uint64, ref material.SoundRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if _, ok := s.voices[key]; ok {
		return
	}
	snd, ok := ref.(*Sound)
	if !ok {
		return
	}

	// Loop voices start silent; gain follows contact motion each step.
	gen := newOsc(snd.Wave, snd.Freq, 0, synthRate)
	vol := newVolume(gen, 0)
	ctrl := &beep.Ctrl{Streamer: vol}
	s.voices[key] = &voice{ctrl: ctrl, vol: vol}
	s.mixer.Add(ctrl)
}

func (s *Synth) SetVoiceGain(key uint64, gain float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.voices[key]
	if !ok {
		return
	}
	if gain <= 0 {
		v.vol.Silent = true
		return
	}
	v.vol.Silent = false
	v.vol.Volume = math.Log2(float64(gain))
}

func (s *Synth) StopVoice(key uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.voices[key]
	if !ok {
		return
	}
	// A Ctrl with a nil streamer drains, so the mixer drops it.
	v.ctrl.Streamer = nil
	delete(s.voices, key)
}

// playable applies the repeat window and resolves the concrete sound.
// Callers hold s.mu.
func (s *Synth) playable(ref material.SoundRef) (*Sound, bool) {
	if !s.started {
		return nil, false
	}
	snd, ok := ref.(*Sound)
	if !ok {
		return nil, false
	}
	now := time.Now()
	if last, ok := s.lastPlay[snd.id]; ok && now.Sub(last) < repeatWindow {
		return nil, false
	}
	s.lastPlay[snd.id] = now
	return snd, true
}

func (s *Synth) oneShot(snd *Sound, vol float64) beep.Streamer {
	gen := newOsc(snd.Wave, snd.Freq, snd.Duration, synthRate)
	shaped := newEnvelope(gen, snd.Duration, snd.Attack, snd.Release, synthRate)
	return newVolume(shaped, vol)
}
