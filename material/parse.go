package material

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Authoring names. These are the only strings the parser understands; the
// same tables drive the dump side, so names stay consistent both ways.
var condByName = map[string]Cond{
	"they_have_material":              CondDstHasMaterial,
	"they_dont_have_material":         CondDstLacksMaterial,
	"eval_colliding":                  CondEvalColliding,
	"eval_not_colliding":              CondEvalNotColliding,
	"we_are_younger_than":             CondSrcYoungerThan,
	"we_are_older_than":               CondSrcOlderThan,
	"they_are_younger_than":           CondDstYoungerThan,
	"they_are_older_than":             CondDstOlderThan,
	"they_are_same_node_as_us":        CondSameNode,
	"they_are_different_node_than_us": CondDifferentNode,
}

var opByName = map[string]Op{
	"and": OpAnd,
	"&&":  OpAnd,
	"or":  OpOr,
	"||":  OpOr,
	"xor": OpXor,
	"^":   OpXor,
}

var partAttrByName = map[string]PartAttr{
	"collide":          AttrCollide,
	"use_node_collide": AttrUseNodeCollide,
	"physical":         AttrPhysical,
	"friction":         AttrFriction,
	"stiffness":        AttrStiffness,
	"damping":          AttrDamping,
	"bounce":           AttrBounce,
}

var nodeAttrByName = map[string]NodeAttr{
	"collide": NodeAttrCollide,
}

// ParseConditions parses a nested condition form into a tree. The form is
// either a leaf list ("name", operands...) or an alternating list
// (conditions, op, conditions, op, conditions...) combined left to right.
// nil input means no conditions.
func ParseConditions(v any, refs Refs) (*ConditionNode, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := asSlice(v)
	if !ok {
		return nil, fmt.Errorf("material: conditions must be a list, got %T", v)
	}
	return parseCondNode(items, refs)
}

func parseCondNode(items []any, refs Refs) (*ConditionNode, error) {
	if len(items) == 0 {
		return nil, errors.New("material: empty condition")
	}
	if name, ok := items[0].(string); ok {
		return parseCondLeaf(name, items[1:], refs)
	}
	if len(items)%2 != 1 {
		return nil, fmt.Errorf("material: condition list wants an odd number of elements, got %d", len(items))
	}
	left, err := parseCondChild(items[0], refs)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(items); i += 2 {
		opName, ok := items[i].(string)
		if !ok {
			return nil, fmt.Errorf("material: operator must be a string, got %T", items[i])
		}
		op, ok := opByName[opName]
		if !ok {
			return nil, fmt.Errorf("material: unknown operator %q", opName)
		}
		right, err := parseCondChild(items[i+1], refs)
		if err != nil {
			return nil, err
		}
		left = &ConditionNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func parseCondChild(v any, refs Refs) (*ConditionNode, error) {
	items, ok := asSlice(v)
	if !ok {
		return nil, fmt.Errorf("material: condition must be a list, got %T", v)
	}
	return parseCondNode(items, refs)
}

func parseCondLeaf(name string, args []any, refs Refs) (*ConditionNode, error) {
	cond, ok := condByName[name]
	if !ok {
		return nil, fmt.Errorf("material: unknown condition %q", name)
	}
	argc, wantsMaterial := condOperands(cond)
	if len(args) != argc {
		return nil, fmt.Errorf("material: condition %q wants %d args, got %d", name, argc, len(args))
	}
	n := &ConditionNode{Op: OpLeaf, Cond: cond}
	if argc == 0 {
		return n, nil
	}
	if wantsMaterial {
		m, err := materialOperand(args[0], refs)
		if err != nil {
			return nil, err
		}
		n.Mat = m
		return n, nil
	}
	ms, err := durationOperand(name, args[0])
	if err != nil {
		return nil, err
	}
	n.Value = ms
	return n, nil
}

// ParseActions parses one action list ("name", args...) or a list of such
// lists. Actions come back in declared order.
func ParseActions(v any, refs Refs) ([]Action, error) {
	items, ok := asSlice(v)
	if !ok {
		return nil, fmt.Errorf("material: actions must be a list, got %T", v)
	}
	if len(items) == 0 {
		return nil, errors.New("material: empty action")
	}
	if _, ok := items[0].(string); ok {
		a, err := parseAction(items, refs)
		if err != nil {
			return nil, err
		}
		return []Action{a}, nil
	}
	out := make([]Action, 0, len(items))
	for _, it := range items {
		sub, ok := asSlice(it)
		if !ok {
			return nil, fmt.Errorf("material: action must be a list, got %T", it)
		}
		a, err := parseAction(sub, refs)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ParseComponent builds one component from nested condition and action
// forms. conditions may be nil for an unconditional component. Nothing is
// returned on error, so a failed parse installs nothing.
func ParseComponent(conditions, actions any, refs Refs) (*Component, error) {
	tree, err := ParseConditions(conditions, refs)
	if err != nil {
		return nil, err
	}
	acts, err := ParseActions(actions, refs)
	if err != nil {
		return nil, err
	}
	return &Component{Conditions: tree, Actions: acts}, nil
}

func parseAction(items []any, refs Refs) (Action, error) {
	if len(items) == 0 {
		return nil, errors.New("material: empty action")
	}
	name, ok := items[0].(string)
	if !ok {
		return nil, fmt.Errorf("material: action name must be a string, got %T", items[0])
	}
	args := items[1:]
	switch name {
	case "modify_part_collision":
		if len(args) != 2 {
			return nil, arityErr(name, 2, len(args))
		}
		attrName, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("material: attr name must be a string, got %T", args[0])
		}
		attr, ok := partAttrByName[attrName]
		if !ok {
			return nil, fmt.Errorf("material: unknown part attr %q", attrName)
		}
		val, ok := floatOperand(args[1])
		if !ok {
			return nil, fmt.Errorf("material: bad value for attr %q: %v", attrName, args[1])
		}
		return &PartModAction{Attr: attr, Value: val}, nil
	case "modify_node_collision":
		if len(args) != 2 {
			return nil, arityErr(name, 2, len(args))
		}
		attrName, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("material: attr name must be a string, got %T", args[0])
		}
		attr, ok := nodeAttrByName[attrName]
		if !ok {
			return nil, fmt.Errorf("material: unknown node attr %q", attrName)
		}
		val, ok := floatOperand(args[1])
		if !ok {
			return nil, fmt.Errorf("material: bad value for attr %q: %v", attrName, args[1])
		}
		return &NodeModAction{Attr: attr, Value: val}, nil
	case "call":
		if len(args) != 2 {
			return nil, arityErr(name, 2, len(args))
		}
		timing, err := timingOperand(args[0])
		if err != nil {
			return nil, err
		}
		fn, ok := args[1].(func())
		if !ok {
			return nil, fmt.Errorf("material: call wants a func(), got %T", args[1])
		}
		return &CallbackAction{Timing: timing, Fn: fn}, nil
	case "message":
		if len(args) < 3 {
			return nil, fmt.Errorf("material: action %q wants at least 3 args, got %d", name, len(args))
		}
		target, err := targetOperand(args[0])
		if err != nil {
			return nil, err
		}
		timing, err := timingOperand(args[1])
		if err != nil {
			return nil, err
		}
		payload, err := payloadOperand(args[2:])
		if err != nil {
			return nil, err
		}
		return &MessageAction{Target: target, Timing: timing, Payload: payload}, nil
	case "sound":
		if len(args) != 2 {
			return nil, arityErr(name, 2, len(args))
		}
		ref, err := soundOperand(args[0], refs)
		if err != nil {
			return nil, err
		}
		vol, ok := floatOperand(args[1])
		if !ok {
			return nil, fmt.Errorf("material: bad volume for %q: %v", name, args[1])
		}
		return &SoundAction{Sound: ref, Volume: vol}, nil
	case "impact_sound":
		if len(args) != 3 {
			return nil, arityErr(name, 3, len(args))
		}
		sounds, err := soundListOperand(args[0], refs)
		if err != nil {
			return nil, err
		}
		target, ok := floatOperand(args[1])
		if !ok {
			return nil, fmt.Errorf("material: bad target impulse for %q: %v", name, args[1])
		}
		vol, ok := floatOperand(args[2])
		if !ok {
			return nil, fmt.Errorf("material: bad volume for %q: %v", name, args[2])
		}
		return &ImpactSoundAction{Sounds: sounds, TargetImpulse: target, Volume: vol}, nil
	case "skid_sound", "roll_sound":
		if len(args) != 3 {
			return nil, arityErr(name, 3, len(args))
		}
		ref, err := soundOperand(args[0], refs)
		if err != nil {
			return nil, err
		}
		target, ok := floatOperand(args[1])
		if !ok {
			return nil, fmt.Errorf("material: bad target impulse for %q: %v", name, args[1])
		}
		vol, ok := floatOperand(args[2])
		if !ok {
			return nil, fmt.Errorf("material: bad volume for %q: %v", name, args[2])
		}
		if name == "skid_sound" {
			return &SkidSoundAction{Sound: ref, TargetImpulse: target, Volume: vol}, nil
		}
		return &RollSoundAction{Sound: ref, TargetImpulse: target, Volume: vol}, nil
	default:
		return nil, fmt.Errorf("material: unknown action %q", name)
	}
}

func arityErr(name string, want, got int) error {
	return fmt.Errorf("material: action %q wants %d args, got %d", name, want, got)
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func materialOperand(v any, refs Refs) (*Material, error) {
	switch t := v.(type) {
	case *Material:
		if t == nil {
			return nil, errors.New("material: nil material operand")
		}
		return t, nil
	case string:
		if refs == nil {
			return nil, fmt.Errorf("material: no resolver for material %q", t)
		}
		return refs.MaterialByName(t)
	default:
		return nil, fmt.Errorf("material: bad material operand %T", v)
	}
}

func soundOperand(v any, refs Refs) (SoundRef, error) {
	if v == nil {
		return nil, errors.New("material: nil sound operand")
	}
	switch t := v.(type) {
	case SoundRef:
		return t, nil
	case string:
		if refs == nil {
			return nil, fmt.Errorf("material: no resolver for sound %q", t)
		}
		return refs.SoundByName(t)
	default:
		return nil, fmt.Errorf("material: bad sound operand %T", v)
	}
}

// soundListOperand accepts a single sound or a non-empty list of them.
func soundListOperand(v any, refs Refs) ([]SoundRef, error) {
	items, ok := asSlice(v)
	if !ok {
		s, err := soundOperand(v, refs)
		if err != nil {
			return nil, err
		}
		return []SoundRef{s}, nil
	}
	if len(items) == 0 {
		return nil, errors.New("material: impact_sound wants at least one sound")
	}
	out := make([]SoundRef, 0, len(items))
	for _, it := range items {
		s, err := soundOperand(it, refs)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func targetOperand(v any) (Target, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("material: target must be a string, got %T", v)
	}
	switch s {
	case "our_node":
		return TargetSrc, nil
	case "their_node":
		return TargetDst, nil
	}
	return 0, fmt.Errorf("material: unknown target %q", s)
}

func timingOperand(v any) (Timing, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("material: timing must be a string, got %T", v)
	}
	switch s {
	case "at_connect":
		return AtConnect, nil
	case "at_disconnect":
		return AtDisconnect, nil
	}
	return 0, fmt.Errorf("material: unknown timing %q", s)
}

// durationOperand converts an age operand to sim milliseconds. Fractional
// values are rejected rather than truncated.
func durationOperand(name string, v any) (uint32, error) {
	bad := func() error {
		return fmt.Errorf("material: condition %q wants a non-negative integer duration, got %v", name, v)
	}
	switch t := v.(type) {
	case int:
		if t < 0 {
			return 0, bad()
		}
		return uint32(t), nil
	case int32:
		if t < 0 {
			return 0, bad()
		}
		return uint32(t), nil
	case int64:
		if t < 0 {
			return 0, bad()
		}
		return uint32(t), nil
	case uint:
		return uint32(t), nil
	case uint32:
		return t, nil
	case uint64:
		return uint32(t), nil
	case float64:
		if t < 0 || t != math.Trunc(t) {
			return 0, bad()
		}
		return uint32(t), nil
	case float32:
		f := float64(t)
		if f < 0 || f != math.Trunc(f) {
			return 0, bad()
		}
		return uint32(f), nil
	}
	return 0, bad()
}

// floatOperand converts an action value. Booleans come through the
// authoring layer for on/off attrs, so they map to 1 and 0.
func floatOperand(v any) (float32, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int:
		return float32(t), true
	case int32:
		return float32(t), true
	case int64:
		return float32(t), true
	case uint:
		return float32(t), true
	case uint32:
		return float32(t), true
	case uint64:
		return float32(t), true
	case float32:
		return t, true
	case float64:
		return float32(t), true
	}
	return 0, false
}

// payloadOperand renders message args to the payload bytes a node handler
// receives. A single []byte passes through untouched; everything else
// becomes one space-joined string.
func payloadOperand(args []any) ([]byte, error) {
	if len(args) == 1 {
		if b, ok := args[0].([]byte); ok {
			return b, nil
		}
	}
	parts := make([]string, len(args))
	for i, a := range args {
		switch t := a.(type) {
		case string:
			parts[i] = t
		case []byte:
			parts[i] = string(t)
		case bool:
			parts[i] = strconv.FormatBool(t)
		case int:
			parts[i] = strconv.Itoa(t)
		case int64:
			parts[i] = strconv.FormatInt(t, 10)
		case float64:
			parts[i] = strconv.FormatFloat(t, 'g', -1, 64)
		default:
			return nil, fmt.Errorf("material: bad message arg %T", a)
		}
	}
	return []byte(strings.Join(parts, " ")), nil
}

// String returns the authoring name of the condition kind.
func (c Cond) String() string {
	for name, cc := range condByName {
		if cc == c {
			return name
		}
	}
	return fmt.Sprintf("cond(%d)", uint8(c))
}

func (o Op) String() string {
	switch o {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	}
	return "leaf"
}

// String returns the authoring name of the part attr.
func (a PartAttr) String() string {
	for name, aa := range partAttrByName {
		if aa == a {
			return name
		}
	}
	return fmt.Sprintf("attr(%d)", uint8(a))
}

func (a NodeAttr) String() string {
	if a == NodeAttrCollide {
		return "collide"
	}
	return fmt.Sprintf("attr(%d)", uint8(a))
}

func (t Target) String() string {
	if t == TargetDst {
		return "their_node"
	}
	return "our_node"
}

func (t Timing) String() string {
	if t == AtDisconnect {
		return "at_disconnect"
	}
	return "at_connect"
}
