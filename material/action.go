package material

// ActionType tags each action variant; the tag doubles as the wire tag for
// flattened actions.
type ActionType uint8

const (
	ActionPartMod ActionType = iota + 1
	ActionNodeMod
	ActionSound
	ActionImpactSound
	ActionSkidSound
	ActionRollSound
	ActionMessage
	ActionCallback
)

// Target selects which of the two contacting parts an action aims at, from
// the perspective of the part owning the action.
type Target uint8

const (
	TargetSrc Target = iota
	TargetDst
)

// Timing selects whether a deferred op fires when the contact is
// established or when it ends.
type Timing uint8

const (
	AtConnect Timing = iota
	AtDisconnect
)

// Action is one instruction inside a component. Apply never executes side
// effects directly; it only mutates the contact context or appends to its
// deferred lists, so a resolution pass stays pure and order is everything.
type Action interface {
	Type() ActionType
	Apply(ctx *Context, src, dst Body)
}

// PartModAction sets one part-level context attribute. Later writes to the
// same attribute win.
type PartModAction struct {
	Attr  PartAttr
	Value float32
}

func (a *PartModAction) Type() ActionType { return ActionPartMod }

func (a *PartModAction) Apply(ctx *Context, src, dst Body) {
	ctx.SetPart(a.Attr, a.Value)
}

// NodeModAction sets one node-level context attribute.
type NodeModAction struct {
	Attr  NodeAttr
	Value float32
}

func (a *NodeModAction) Type() ActionType { return ActionNodeMod }

func (a *NodeModAction) Apply(ctx *Context, src, dst Body) {
	ctx.SetNode(a.Attr, a.Value)
}

// SoundAction plays a sound once when the contact connects.
type SoundAction struct {
	Sound  SoundRef
	Volume float32
}

func (a *SoundAction) Type() ActionType { return ActionSound }

func (a *SoundAction) Apply(ctx *Context, src, dst Body) {
	ctx.OneShots = append(ctx.OneShots, SoundSpec{Ref: a.Sound, Volume: a.Volume})
}

// ImpactSoundAction plays one of a set of sounds at a volume scaled by
// collision impulse. The dynamics layer picks which sound.
type ImpactSoundAction struct {
	Sounds        []SoundRef
	TargetImpulse float32
	Volume        float32
}

func (a *ImpactSoundAction) Type() ActionType { return ActionImpactSound }

func (a *ImpactSoundAction) Apply(ctx *Context, src, dst Body) {
	ctx.Impacts = append(ctx.Impacts, ImpactSpec{
		Refs:          a.Sounds,
		TargetImpulse: a.TargetImpulse,
		Volume:        a.Volume,
	})
}

// SkidSoundAction plays a looping sound whose volume tracks sliding
// friction while the contact persists.
type SkidSoundAction struct {
	Sound         SoundRef
	TargetImpulse float32
	Volume        float32
}

func (a *SkidSoundAction) Type() ActionType { return ActionSkidSound }

func (a *SkidSoundAction) Apply(ctx *Context, src, dst Body) {
	ctx.Skids = append(ctx.Skids, MotionSpec{
		Ref:           a.Sound,
		TargetImpulse: a.TargetImpulse,
		Volume:        a.Volume,
	})
}

// RollSoundAction plays a looping sound whose volume tracks rolling motion
// while the contact persists.
type RollSoundAction struct {
	Sound         SoundRef
	TargetImpulse float32
	Volume        float32
}

func (a *RollSoundAction) Type() ActionType { return ActionRollSound }

func (a *RollSoundAction) Apply(ctx *Context, src, dst Body) {
	ctx.Rolls = append(ctx.Rolls, MotionSpec{
		Ref:           a.Sound,
		TargetImpulse: a.TargetImpulse,
		Volume:        a.Volume,
	})
}

// MessageAction delivers an opaque payload to one of the two owning nodes
// when the contact connects or disconnects. The target node is resolved
// here so the op survives the perspective flip between the two passes.
type MessageAction struct {
	Target  Target
	Timing  Timing
	Payload []byte
}

func (a *MessageAction) Type() ActionType { return ActionMessage }

func (a *MessageAction) Apply(ctx *Context, src, dst Body) {
	to := src
	if a.Target == TargetDst {
		to = dst
	}
	ctx.Ops = append(ctx.Ops, DeferredOp{
		AtDisconnect: a.Timing == AtDisconnect,
		NodeID:       to.NodeID(),
		Payload:      a.Payload,
	})
}

// CallbackAction runs an arbitrary function when the contact connects or
// disconnects. Callbacks are host-local and have no flattened form, so a
// replaying client never sees them.
type CallbackAction struct {
	Timing Timing
	Fn     func()
}

func (a *CallbackAction) Type() ActionType { return ActionCallback }

func (a *CallbackAction) Apply(ctx *Context, src, dst Body) {
	if a.Fn == nil {
		return
	}
	ctx.Ops = append(ctx.Ops, DeferredOp{
		AtDisconnect: a.Timing == AtDisconnect,
		Call:         a.Fn,
	})
}

func (t ActionType) String() string {
	switch t {
	case ActionPartMod:
		return "modify_part_collision"
	case ActionNodeMod:
		return "modify_node_collision"
	case ActionSound:
		return "sound"
	case ActionImpactSound:
		return "impact_sound"
	case ActionSkidSound:
		return "skid_sound"
	case ActionRollSound:
		return "roll_sound"
	case ActionMessage:
		return "message"
	case ActionCallback:
		return "call"
	}
	return "unknown"
}
