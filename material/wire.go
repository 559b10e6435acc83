package material

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire sentinels. An unknown tag while restoring means the byte stream and
// this build disagree about the format; callers treat that as a desync and
// stop decoding.
var (
	ErrUnknownActionType = errors.New("material: unknown action type")
	ErrShortBuffer       = errors.New("material: short buffer")
)

// RefTable resolves wire ids back to live references while restoring.
type RefTable interface {
	MaterialByID(id uint32) (*Material, error)
	SoundByID(id uint32) (SoundRef, error)
}

// Replicated reports whether the action has a wire form. Callbacks are
// host-local; catalog encoders skip them.
func Replicated(a Action) bool {
	_, ok := a.(*CallbackAction)
	return !ok
}

// FlattenedSize returns the payload size of the action's wire form, not
// counting the leading tag byte. Callbacks report zero.
func FlattenedSize(a Action) int {
	switch t := a.(type) {
	case *PartModAction, *NodeModAction:
		return 1 + 4
	case *SoundAction:
		return 4 + 4
	case *ImpactSoundAction:
		return 4 + 4*len(t.Sounds) + 8
	case *SkidSoundAction, *RollSoundAction:
		return 12
	case *MessageAction:
		return 2 + 4 + len(t.Payload)
	}
	return 0
}

// AppendFlatten appends the tag byte and payload of the action's wire form.
// All multi-byte fields are little-endian. Restoring the result through
// RestoreAction yields an equal action, which is what keeps replayed
// collisions identical to live ones.
func AppendFlatten(buf []byte, a Action) ([]byte, error) {
	switch t := a.(type) {
	case *PartModAction:
		buf = append(buf, byte(ActionPartMod), byte(t.Attr))
		return appendF32(buf, t.Value), nil
	case *NodeModAction:
		buf = append(buf, byte(ActionNodeMod), byte(t.Attr))
		return appendF32(buf, t.Value), nil
	case *SoundAction:
		buf = append(buf, byte(ActionSound))
		buf = appendU32(buf, soundID(t.Sound))
		return appendF32(buf, t.Volume), nil
	case *ImpactSoundAction:
		buf = append(buf, byte(ActionImpactSound))
		buf = appendU32(buf, uint32(len(t.Sounds)))
		for _, s := range t.Sounds {
			buf = appendU32(buf, soundID(s))
		}
		buf = appendF32(buf, t.TargetImpulse)
		return appendF32(buf, t.Volume), nil
	case *SkidSoundAction:
		buf = append(buf, byte(ActionSkidSound))
		buf = appendU32(buf, soundID(t.Sound))
		buf = appendF32(buf, t.TargetImpulse)
		return appendF32(buf, t.Volume), nil
	case *RollSoundAction:
		buf = append(buf, byte(ActionRollSound))
		buf = appendU32(buf, soundID(t.Sound))
		buf = appendF32(buf, t.TargetImpulse)
		return appendF32(buf, t.Volume), nil
	case *MessageAction:
		buf = append(buf, byte(ActionMessage), byte(t.Target), byte(t.Timing))
		buf = appendU32(buf, uint32(len(t.Payload)))
		return append(buf, t.Payload...), nil
	}
	return buf, fmt.Errorf("material: action %s has no wire form", a.Type())
}

// RestoreAction decodes one action from the front of buf, returning the
// action and the number of bytes consumed. Attr bytes inside a known tag
// are not validated here; an out-of-range attr is caught at apply time.
func RestoreAction(buf []byte, refs RefTable) (Action, int, error) {
	if len(buf) < 1 {
		return nil, 0, ErrShortBuffer
	}
	tag := ActionType(buf[0])
	p := buf[1:]
	switch tag {
	case ActionPartMod:
		if len(p) < 5 {
			return nil, 0, ErrShortBuffer
		}
		return &PartModAction{Attr: PartAttr(p[0]), Value: f32(p[1:])}, 6, nil
	case ActionNodeMod:
		if len(p) < 5 {
			return nil, 0, ErrShortBuffer
		}
		return &NodeModAction{Attr: NodeAttr(p[0]), Value: f32(p[1:])}, 6, nil
	case ActionSound:
		if len(p) < 8 {
			return nil, 0, ErrShortBuffer
		}
		ref, err := refs.SoundByID(u32(p))
		if err != nil {
			return nil, 0, err
		}
		return &SoundAction{Sound: ref, Volume: f32(p[4:])}, 9, nil
	case ActionImpactSound:
		if len(p) < 4 {
			return nil, 0, ErrShortBuffer
		}
		n := int(u32(p))
		need := 4 + 4*n + 8
		if len(p) < need {
			return nil, 0, ErrShortBuffer
		}
		refsOut := make([]SoundRef, n)
		for i := 0; i < n; i++ {
			ref, err := refs.SoundByID(u32(p[4+4*i:]))
			if err != nil {
				return nil, 0, err
			}
			refsOut[i] = ref
		}
		return &ImpactSoundAction{
			Sounds:        refsOut,
			TargetImpulse: f32(p[4+4*n:]),
			Volume:        f32(p[8+4*n:]),
		}, 1 + need, nil
	case ActionSkidSound, ActionRollSound:
		if len(p) < 12 {
			return nil, 0, ErrShortBuffer
		}
		ref, err := refs.SoundByID(u32(p))
		if err != nil {
			return nil, 0, err
		}
		if tag == ActionSkidSound {
			return &SkidSoundAction{Sound: ref, TargetImpulse: f32(p[4:]), Volume: f32(p[8:])}, 13, nil
		}
		return &RollSoundAction{Sound: ref, TargetImpulse: f32(p[4:]), Volume: f32(p[8:])}, 13, nil
	case ActionMessage:
		if len(p) < 6 {
			return nil, 0, ErrShortBuffer
		}
		l := int(u32(p[2:]))
		need := 6 + l
		if len(p) < need {
			return nil, 0, ErrShortBuffer
		}
		payload := make([]byte, l)
		copy(payload, p[6:need])
		return &MessageAction{Target: Target(p[0]), Timing: Timing(p[1]), Payload: payload}, 1 + need, nil
	}
	return nil, 0, fmt.Errorf("material: tag %d: %w", tag, ErrUnknownActionType)
}

// FlattenedConditionsSize returns the wire size of a condition tree. A nil
// tree has no wire form; containers write a presence flag.
func FlattenedConditionsSize(n *ConditionNode) int {
	if n == nil {
		return 0
	}
	if n.Op != OpLeaf {
		return 1 + FlattenedConditionsSize(n.Left) + FlattenedConditionsSize(n.Right)
	}
	argc, _ := condOperands(n.Cond)
	return 2 + 4*argc
}

// AppendFlattenConditions appends the tree's wire form: branch nodes write
// their op byte then both children; leaves write the leaf op byte, the
// condition kind, then its operand (material id or duration).
func AppendFlattenConditions(buf []byte, n *ConditionNode) []byte {
	if n == nil {
		return buf
	}
	if n.Op != OpLeaf {
		buf = append(buf, byte(n.Op))
		buf = AppendFlattenConditions(buf, n.Left)
		return AppendFlattenConditions(buf, n.Right)
	}
	buf = append(buf, byte(OpLeaf), byte(n.Cond))
	argc, isMaterial := condOperands(n.Cond)
	if argc == 1 {
		if isMaterial {
			var id uint32
			if n.Mat != nil {
				id = n.Mat.ID()
			}
			buf = appendU32(buf, id)
		} else {
			buf = appendU32(buf, n.Value)
		}
	}
	return buf
}

// RestoreConditions decodes one condition tree from the front of buf,
// returning the tree and the bytes consumed.
func RestoreConditions(buf []byte, refs RefTable) (*ConditionNode, int, error) {
	if len(buf) < 1 {
		return nil, 0, ErrShortBuffer
	}
	op := Op(buf[0])
	switch op {
	case OpAnd, OpOr, OpXor:
		left, nl, err := RestoreConditions(buf[1:], refs)
		if err != nil {
			return nil, 0, err
		}
		right, nr, err := RestoreConditions(buf[1+nl:], refs)
		if err != nil {
			return nil, 0, err
		}
		return &ConditionNode{Op: op, Left: left, Right: right}, 1 + nl + nr, nil
	case OpLeaf:
		if len(buf) < 2 {
			return nil, 0, ErrShortBuffer
		}
		cond := Cond(buf[1])
		if cond == CondNone || cond > CondDifferentNode {
			return nil, 0, fmt.Errorf("material: restore condition: unknown kind %d", cond)
		}
		n := &ConditionNode{Op: OpLeaf, Cond: cond}
		argc, isMaterial := condOperands(cond)
		if argc == 0 {
			return n, 2, nil
		}
		if len(buf) < 6 {
			return nil, 0, ErrShortBuffer
		}
		if isMaterial {
			m, err := refs.MaterialByID(u32(buf[2:]))
			if err != nil {
				return nil, 0, err
			}
			n.Mat = m
		} else {
			n.Value = u32(buf[2:])
		}
		return n, 6, nil
	}
	return nil, 0, fmt.Errorf("material: restore condition: unknown op %d", op)
}

func soundID(s SoundRef) uint32 {
	if s == nil {
		return 0
	}
	return s.SoundID()
}

func appendU32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

func appendF32(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}

func u32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
