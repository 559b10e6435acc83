package dynamics

import (
	"math"

	"github.com/jakecoffman/cp"

	"github.com/milk9111/matter/material"
)

const (
	// impactVolumeFloor drops impact sounds too quiet to matter.
	impactVolumeFloor = 0.05
	// minMotionSpeed is the relative speed below which skid and roll
	// voices stay silent.
	minMotionSpeed = 0.05
)

type partKey struct {
	a, b uint64
}

func keyFor(a, b *Part) partKey {
	if a.id < b.id {
		return partKey{a: a.id, b: b.id}
	}
	return partKey{a: b.id, b: a.id}
}

type nodePair struct {
	a, b uint64
}

func pairKeyFor(na, nb uint64) nodePair {
	if na < nb {
		return nodePair{a: na, b: nb}
	}
	return nodePair{a: nb, b: na}
}

// pairState tracks a node pair while any of their parts overlap. Once a
// resolution turns node collision off, the pair stays off until the
// overlap count drains back to zero.
type pairState struct {
	overlap    int
	collideOff bool
}

// contact is the live record for one touching part pair, built when the
// pair begins to touch and dropped when it separates.
type contact struct {
	seq       uint64
	a, b      *Part
	connected bool
	physical  bool
	friction  float64
	bounce    float64

	impacted   bool
	impacts    []material.ImpactSpec
	skids      []material.MotionSpec
	rolls      []material.MotionSpec
	disconnect []material.DeferredOp
}

func (c *contact) skidKey(i int) uint64 { return c.seq<<8 | uint64(i)<<1 }
func (c *contact) rollKey(i int) uint64 { return c.seq<<8 | uint64(i)<<1 | 1 }

func (s *Space) setupHandlers() {
	handler := s.cp.NewCollisionHandler(collisionTypePart, collisionTypePart)
	handler.UserData = s
	handler.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		sp, ok := userData.(*Space)
		if !ok {
			return true
		}
		return sp.onBegin(arb)
	}
	handler.PreSolveFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		sp, ok := userData.(*Space)
		if !ok {
			return true
		}
		return sp.onPreSolve(arb)
	}
	handler.PostSolveFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) {
		sp, ok := userData.(*Space)
		if !ok {
			return
		}
		sp.onPostSolve(arb)
	}
	handler.SeparateFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) {
		sp, ok := userData.(*Space)
		if !ok {
			return
		}
		sp.onSeparate(arb)
	}
}

func (s *Space) lookup(arb *cp.Arbiter) (*Part, *Part, bool) {
	shapeA, shapeB := arb.Shapes()
	a, okA := s.parts[shapeA]
	b, okB := s.parts[shapeB]
	if !okA || !okB {
		return nil, nil, false
	}
	return a, b, true
}

// onBegin resolves the pair's materials from both perspectives, applies
// any node-collision override, and tells chipmunk whether to keep the
// collision. Returning false here means no solver work and no presolve,
// but separate still fires when the shapes part, so the overlap count
// stays balanced.
func (s *Space) onBegin(arb *cp.Arbiter) bool {
	a, b, ok := s.lookup(arb)
	if !ok {
		return true
	}

	pair := s.pairFor(a.node, b.node)
	pair.overlap++

	ctx := material.NewContext()
	material.Resolve(ctx, a, b, s.now)
	material.Resolve(ctx, b, a, s.now)

	if !ctx.NodeCollide {
		pair.collideOff = true
	}
	collide := ctx.Collide
	if ctx.UseNodeCollide && pair.collideOff {
		collide = false
	}

	rec := &contact{
		seq:      s.nextSeq,
		a:        a,
		b:        b,
		physical: ctx.Physical,
		friction: float64(ctx.Friction),
		bounce:   float64(ctx.Bounce),
	}
	s.nextSeq++
	s.contacts[keyFor(a, b)] = rec

	if !collide {
		return false
	}

	rec.connected = true
	rec.impacts = ctx.Impacts
	rec.skids = ctx.Skids
	rec.rolls = ctx.Rolls
	rec.disconnect = ctx.DisconnectOps()
	s.pending = append(s.pending, ctx.ConnectOps()...)

	for _, spec := range ctx.OneShots {
		s.sink.PlayOnce(spec.Ref, spec.Volume)
	}
	for i, spec := range rec.skids {
		s.sink.StartVoice(rec.skidKey(i), spec.Ref)
	}
	for i, spec := range rec.rolls {
		s.sink.StartVoice(rec.rollKey(i), spec.Ref)
	}

	return rec.physical
}

func (s *Space) onPreSolve(arb *cp.Arbiter) bool {
	a, b, ok := s.lookup(arb)
	if !ok {
		return true
	}
	rec, ok := s.contacts[keyFor(a, b)]
	if !ok {
		return true
	}
	arb.SetFriction(rec.friction)
	arb.SetRestitution(rec.bounce)
	return rec.physical
}

// onPostSolve plays the pair's impact sounds off the first solver
// impulse, scaled against each spec's target.
func (s *Space) onPostSolve(arb *cp.Arbiter) {
	a, b, ok := s.lookup(arb)
	if !ok {
		return
	}
	rec, ok := s.contacts[keyFor(a, b)]
	if !ok || rec.impacted || len(rec.impacts) == 0 {
		return
	}
	rec.impacted = true

	impulse := arb.TotalImpulse().Length()
	for _, spec := range rec.impacts {
		if len(spec.Refs) == 0 {
			continue
		}
		vol := impactVolume(impulse, spec)
		if vol <= impactVolumeFloor {
			continue
		}
		s.sink.PlayImpact(spec.Refs, s.rng.Intn(len(spec.Refs)), vol)
	}
}

func (s *Space) onSeparate(arb *cp.Arbiter) {
	a, b, ok := s.lookup(arb)
	if !ok {
		return
	}

	pk := pairKeyFor(a.node, b.node)
	if pair, ok := s.nodePairs[pk]; ok {
		pair.overlap--
		if pair.overlap <= 0 {
			delete(s.nodePairs, pk)
		}
	}

	key := keyFor(a, b)
	rec, ok := s.contacts[key]
	if !ok {
		return
	}
	delete(s.contacts, key)
	if !rec.connected {
		return
	}

	s.pending = append(s.pending, rec.disconnect...)
	for i := range rec.skids {
		s.sink.StopVoice(rec.skidKey(i))
	}
	for i := range rec.rolls {
		s.sink.StopVoice(rec.rollKey(i))
	}
}

func (s *Space) pairFor(na, nb uint64) *pairState {
	k := pairKeyFor(na, nb)
	p, ok := s.nodePairs[k]
	if !ok {
		p = &pairState{}
		s.nodePairs[k] = p
	}
	return p
}

// updateVoices refreshes skid and roll gains from how fast the pair is
// sliding and spinning against each other.
func (s *Space) updateVoices() {
	for _, rec := range s.contacts {
		if !rec.connected || !rec.physical {
			continue
		}
		if len(rec.skids) == 0 && len(rec.rolls) == 0 {
			continue
		}
		slide := rec.a.body.Velocity().Sub(rec.b.body.Velocity()).Length()
		spin := math.Abs(rec.a.body.AngularVelocity() - rec.b.body.AngularVelocity())
		for i, spec := range rec.skids {
			s.sink.SetVoiceGain(rec.skidKey(i), motionGain(slide, spec))
		}
		for i, spec := range rec.rolls {
			s.sink.SetVoiceGain(rec.rollKey(i), motionGain(spin, spec))
		}
	}
}

func motionGain(speed float64, spec material.MotionSpec) float32 {
	target := float64(spec.TargetImpulse)
	if target <= 0 || speed < minMotionSpeed {
		return 0
	}
	g := speed / target
	if g > 1 {
		g = 1
	}
	return float32(g) * spec.Volume
}

func impactVolume(impulse float64, spec material.ImpactSpec) float32 {
	target := float64(spec.TargetImpulse)
	if target <= 0 {
		return 0
	}
	g := impulse / target
	if g > 1 {
		g = 1
	}
	return float32(g) * spec.Volume
}
