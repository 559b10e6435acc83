package material

// Engine defaults for a fresh contact context. The physics side reads the
// final values after resolution, so these are the response parameters a
// contact gets when no material touches them.
const (
	DefaultFriction  float32 = 0.5
	DefaultStiffness float32 = 1.0
	DefaultDamping   float32 = 1.0
	DefaultBounce    float32 = 0.0
)

// PartAttr enumerates the context attributes a part-mod action can set.
type PartAttr uint8

const (
	AttrCollide PartAttr = iota
	AttrUseNodeCollide
	AttrPhysical
	AttrFriction
	AttrStiffness
	AttrDamping
	AttrBounce
)

// NodeAttr enumerates node-level override attributes. Only collide exists.
type NodeAttr uint8

const (
	NodeAttrCollide NodeAttr = iota
)

// DeferredOp is a message delivery or callback produced during resolution
// but executed by the physics side when the contact transitions to
// connected (AtDisconnect false) or disconnected (AtDisconnect true).
// Exactly one of Payload or Call is set; a single ordered list preserves
// the declared interleaving of messages and calls.
type DeferredOp struct {
	AtDisconnect bool
	NodeID       uint64 // message target, resolved at apply time
	Payload      []byte
	Call         func()
}

// SoundSpec is a fixed-volume sound played once at contact start.
type SoundSpec struct {
	Ref    SoundRef
	Volume float32
}

// ImpactSpec is a sound choice scaled by collision impulse.
type ImpactSpec struct {
	Refs          []SoundRef
	TargetImpulse float32
	Volume        float32
}

// MotionSpec is a sound continuously scaled by sliding or rolling speed
// while the contact persists.
type MotionSpec struct {
	Ref           SoundRef
	TargetImpulse float32
	Volume        float32
}

// Context is the transient per-contact value every component of both parts
// reads and mutates during one resolution pass. A fresh one is built for
// each contact on the simulation goroutine and discarded once the physics
// side has consumed the result.
type Context struct {
	Collide        bool
	UseNodeCollide bool
	Physical       bool
	Friction       float32
	Stiffness      float32
	Damping        float32
	Bounce         float32

	// NodeCollide is the node-level collide value for the two owning nodes.
	// When a resolution leaves it false the dynamics layer disables the
	// whole node pair until they fully separate.
	NodeCollide bool

	// Products of resolution, consumed by the physics side.
	Ops      []DeferredOp
	OneShots []SoundSpec
	Impacts  []ImpactSpec
	Skids    []MotionSpec
	Rolls    []MotionSpec

	set uint8
}

// NewContext returns a context holding the engine defaults.
func NewContext() *Context {
	return &Context{
		Collide:        true,
		UseNodeCollide: true,
		Physical:       true,
		NodeCollide:    true,
		Friction:       DefaultFriction,
		Stiffness:      DefaultStiffness,
		Damping:        DefaultDamping,
		Bounce:         DefaultBounce,
	}
}

// SetPart assigns one part-level attribute. Booleans are carried as floats
// in the authoring language, so nonzero means true.
func (c *Context) SetPart(attr PartAttr, v float32) {
	switch attr {
	case AttrCollide:
		c.Collide = v != 0
	case AttrUseNodeCollide:
		c.UseNodeCollide = v != 0
	case AttrPhysical:
		c.Physical = v != 0
	case AttrFriction:
		c.Friction = v
	case AttrStiffness:
		c.Stiffness = v
	case AttrDamping:
		c.Damping = v
	case AttrBounce:
		c.Bounce = v
	default:
		warnOnce(&warnedAction, uint8(attr), "material: unhandled part attr %d")
		return
	}
	c.set |= 1 << uint8(attr)
}

// SetNode assigns one node-level attribute.
func (c *Context) SetNode(attr NodeAttr, v float32) {
	switch attr {
	case NodeAttrCollide:
		c.NodeCollide = v != 0
	default:
		warnOnce(&warnedAction, uint8(attr), "material: unhandled node attr %d")
	}
}

// Explicit reports whether the attribute was assigned during this contact,
// as opposed to still holding its default.
func (c *Context) Explicit(attr PartAttr) bool {
	return c.set&(1<<uint8(attr)) != 0
}

// ConnectOps returns the deferred ops to run when the contact connects.
func (c *Context) ConnectOps() []DeferredOp {
	return c.opsFor(false)
}

// DisconnectOps returns the deferred ops to run when the contact separates.
func (c *Context) DisconnectOps() []DeferredOp {
	return c.opsFor(true)
}

func (c *Context) opsFor(atDisconnect bool) []DeferredOp {
	var out []DeferredOp
	for _, op := range c.Ops {
		if op.AtDisconnect == atDisconnect {
			out = append(out, op)
		}
	}
	return out
}
