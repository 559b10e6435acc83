// Package dynamics runs the simulation: a chipmunk space whose contacts
// are resolved through material rule trees. Parts carry materials, the
// collision handlers build a context per touching pair, and the products
// (attribute overrides, sounds, messages, callbacks) are applied in a
// deterministic order each step.
package dynamics

import (
	"math/rand"
	"sync"

	"github.com/jakecoffman/cp"

	"github.com/milk9111/matter/audio"
	"github.com/milk9111/matter/material"
	"github.com/milk9111/matter/scene"
)

// Config sets up a Space. Zero values get sensible defaults.
type Config struct {
	// Gravity applied to dynamic bodies. Zero means none.
	Gravity cp.Vector
	// Iterations for the chipmunk solver. Zero means 20.
	Iterations uint
	// Seed for the impact-sound picker. Replays must reuse it.
	Seed int64
	// Sink receives sound products. Nil means silent.
	Sink audio.Sink
}

// Space owns the physics world and everything contact resolution touches:
// the material registry, the scene graph for message delivery, the audio
// sink and the seeded picker for impact sounds. Not safe for concurrent
// use; cross-thread work goes through Post.
type Space struct {
	cp       *cp.Space
	registry *material.Registry
	scene    *scene.Scene
	sink     audio.Sink
	rng      *rand.Rand

	now     uint64
	accMS   float64
	nextID  uint64
	nextSeq uint64

	parts     map[*cp.Shape]*Part
	contacts  map[partKey]*contact
	nodePairs map[nodePair]*pairState
	pending   []material.DeferredOp

	mu     sync.Mutex
	posted []func()
}

// NewSpace builds a Space from the config.
func NewSpace(cfg Config) *Space {
	space := cp.NewSpace()
	if cfg.Iterations > 0 {
		space.Iterations = cfg.Iterations
	} else {
		space.Iterations = 20
	}
	space.SetGravity(cfg.Gravity)

	sink := cfg.Sink
	if sink == nil {
		sink = audio.NullSink{}
	}

	s := &Space{
		cp:        space,
		registry:  material.NewRegistry(),
		scene:     scene.New(),
		sink:      sink,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		nextID:    1,
		nextSeq:   1,
		parts:     make(map[*cp.Shape]*Part),
		contacts:  make(map[partKey]*contact),
		nodePairs: make(map[nodePair]*pairState),
	}
	s.setupHandlers()
	return s
}

// Materials returns the registry backing this space.
func (s *Space) Materials() *material.Registry { return s.registry }

// Scene returns the node graph messages are delivered through.
func (s *Space) Scene() *scene.Scene { return s.scene }

// CP exposes the underlying chipmunk space for debug drawing.
func (s *Space) CP() *cp.Space { return s.cp }

// Now returns the sim clock in milliseconds.
func (s *Space) Now() uint64 { return s.now }

// Contacts returns the number of live contact records.
func (s *Space) Contacts() int { return len(s.contacts) }

// PartForShape resolves the part owning a shape, for callers walking the
// chipmunk space directly.
func (s *Space) PartForShape(shape *cp.Shape) (*Part, bool) {
	p, ok := s.parts[shape]
	return p, ok
}

// OverriddenPairs returns the number of node pairs with collision
// currently disabled by a modify_node_collision action.
func (s *Space) OverriddenPairs() int {
	n := 0
	for _, p := range s.nodePairs {
		if p.collideOff {
			n++
		}
	}
	return n
}

// Post queues fn to run on the sim thread at the start of the next Step.
// Safe to call from any goroutine.
func (s *Space) Post(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
}

// ReleaseMaterial removes the material from the registry at the start of
// the next Step, once no callback can be holding it. Safe to call from
// any goroutine.
func (s *Space) ReleaseMaterial(m *material.Material) {
	if m == nil {
		return
	}
	s.Post(func() {
		s.registry.Remove(m)
	})
}

// Step advances the simulation by dt seconds: drains posted work, steps
// chipmunk (which runs the contact handlers), then applies the deferred
// products in order, delivers scene messages and refreshes voice gains.
func (s *Space) Step(dt float64) {
	s.mu.Lock()
	posted := s.posted
	s.posted = nil
	s.mu.Unlock()
	for _, fn := range posted {
		fn()
	}

	s.accMS += dt * 1000
	whole := uint64(s.accMS)
	s.now += whole
	s.accMS -= float64(whole)

	s.cp.Step(dt)

	pending := s.pending
	s.pending = nil
	for _, op := range pending {
		if op.Call != nil {
			op.Call()
			continue
		}
		s.scene.Post(op.NodeID, op.Payload)
	}
	s.scene.Flush()

	s.updateVoices()
}
