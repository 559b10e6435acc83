package dynamics

import (
	"math"

	"github.com/jakecoffman/cp"

	"github.com/milk9111/matter/material"
	"github.com/milk9111/matter/scene"
)

const (
	collisionTypePart cp.CollisionType = iota + 1
)

// Part is one collidable piece of a node: a chipmunk body and shape plus
// the ordered material list that decides how its contacts behave. Parts
// implement material.Body, which is all conditions ever see of them.
type Part struct {
	id    uint64
	node  uint64
	born  uint64
	body  *cp.Body
	shape *cp.Shape
	mats  []*material.Material
}

// ID returns the space-assigned part id.
func (p *Part) ID() uint64 { return p.id }

// NodeID returns the owning node's id, zero for detached parts.
func (p *Part) NodeID() uint64 { return p.node }

// BornAt returns the sim time the part was created, in milliseconds.
func (p *Part) BornAt() uint64 { return p.born }

// Materials returns the part's materials in attachment order.
func (p *Part) Materials() []*material.Material { return p.mats }

// HasMaterial reports whether the part carries the material.
func (p *Part) HasMaterial(m *material.Material) bool {
	for _, o := range p.mats {
		if o == m {
			return true
		}
	}
	return false
}

// AddMaterial appends a material. Attachment order is evaluation order, so
// later materials win attribute conflicts against earlier ones.
func (p *Part) AddMaterial(m *material.Material) {
	if m == nil {
		return
	}
	p.mats = append(p.mats, m)
}

// SetMaterials replaces the material list.
func (p *Part) SetMaterials(mats []*material.Material) {
	p.mats = append(p.mats[:0:0], mats...)
}

// Body returns the underlying chipmunk body.
func (p *Part) Body() *cp.Body { return p.body }

// Shape returns the underlying chipmunk shape.
func (p *Part) Shape() *cp.Shape { return p.shape }

// Position returns the body position.
func (p *Part) Position() cp.Vector { return p.body.Position() }

// NewBoxPart creates a box part. mass <= 0 makes it static.
func (s *Space) NewBoxPart(node *scene.Node, pos cp.Vector, w, h, mass float64) *Part {
	var body *cp.Body
	if mass > 0 {
		body = cp.NewBody(mass, cp.MomentForBox(mass, w, h))
		body.SetPosition(pos)
		s.cp.AddBody(body)
	} else {
		body = s.cp.StaticBody
	}

	var shape *cp.Shape
	if mass > 0 {
		shape = cp.NewBox(body, w, h, 0)
	} else {
		bb := cp.BB{L: pos.X - w/2, B: pos.Y - h/2, R: pos.X + w/2, T: pos.Y + h/2}
		shape = cp.NewBox2(body, bb, 0)
	}
	return s.addPart(node, body, shape)
}

// NewCirclePart creates a circle part. mass <= 0 makes it static.
func (s *Space) NewCirclePart(node *scene.Node, pos cp.Vector, radius, mass float64) *Part {
	var body *cp.Body
	var shape *cp.Shape
	if mass > 0 {
		body = cp.NewBody(mass, cp.MomentForCircle(mass, 0, radius, cp.Vector{}))
		body.SetPosition(pos)
		s.cp.AddBody(body)
		shape = cp.NewCircle(body, radius, cp.Vector{})
	} else {
		body = s.cp.StaticBody
		shape = cp.NewCircle(body, radius, pos)
	}
	return s.addPart(node, body, shape)
}

// NewSegmentPart creates a static segment part, the usual floor and wall
// building block.
func (s *Space) NewSegmentPart(node *scene.Node, a, b cp.Vector, radius float64) *Part {
	shape := cp.NewSegment(s.cp.StaticBody, a, b, radius)
	return s.addPart(node, s.cp.StaticBody, shape)
}

func (s *Space) addPart(node *scene.Node, body *cp.Body, shape *cp.Shape) *Part {
	p := &Part{
		id:    s.nextID,
		born:  s.now,
		body:  body,
		shape: shape,
	}
	s.nextID++
	if node != nil {
		p.node = node.ID()
	}

	shape.SetCollisionType(collisionTypePart)
	shape.SetFriction(float64(material.DefaultFriction))
	s.cp.AddShape(shape)
	s.parts[shape] = p
	return p
}

// FixRotation pins the part upright by giving it infinite moment.
func (p *Part) FixRotation() {
	p.body.SetMoment(math.Inf(1))
}

// RemovePart takes the part out of the space. Must not be called from
// inside a collision callback; post it instead.
func (s *Space) RemovePart(p *Part) {
	if p == nil {
		return
	}
	if _, ok := s.parts[p.shape]; !ok {
		return
	}
	// Removing the shape fires separate handlers for live contacts, which
	// still need the lookup map populated.
	s.cp.RemoveShape(p.shape)
	delete(s.parts, p.shape)
	if p.body != s.cp.StaticBody {
		s.cp.RemoveBody(p.body)
	}
}
