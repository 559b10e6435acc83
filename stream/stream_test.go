package stream

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/milk9111/matter/material"
)

type streamSound struct {
	id   uint32
	name string
}

func (s *streamSound) SoundID() uint32   { return s.id }
func (s *streamSound) SoundName() string { return s.name }

type soundTable map[uint32]material.SoundRef

func (t soundTable) SoundByID(id uint32) (material.SoundRef, error) {
	s, ok := t[id]
	if !ok {
		return nil, fmt.Errorf("sound id %d: %w", id, material.ErrNotFound)
	}
	return s, nil
}

var (
	thud  = &streamSound{id: 7, name: "thud"}
	clank = &streamSound{id: 9, name: "clank"}
)

func testSounds() soundTable {
	return soundTable{thud.id: thud, clank.id: clank}
}

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func sampleActions() []material.Action {
	return []material.Action{
		&material.PartModAction{Attr: material.AttrFriction, Value: 0.5},
		&material.NodeModAction{Attr: material.NodeAttrCollide, Value: 0},
		&material.SoundAction{Sound: thud, Volume: 1},
		&material.ImpactSoundAction{Sounds: []material.SoundRef{thud, clank}, TargetImpulse: 2, Volume: 0.25},
		&material.SkidSoundAction{Sound: clank, TargetImpulse: 4, Volume: 1},
		&material.RollSoundAction{Sound: thud, TargetImpulse: 0.125, Volume: 0.5},
		&material.MessageAction{Target: material.TargetDst, Timing: material.AtDisconnect, Payload: []byte("boom")},
	}
}

// sampleCatalog builds a registry exercising every replicable record kind:
// unconditional and conditional components, a material cross reference, a
// branch condition tree, and a callback that must stay off the wire.
func sampleCatalog(t *testing.T) *material.Registry {
	t.Helper()
	reg := material.NewRegistry()
	rock, err := reg.New("rock")
	if err != nil {
		t.Fatalf("new rock: %v", err)
	}
	metal, err := reg.New("metal")
	if err != nil {
		t.Fatalf("new metal: %v", err)
	}
	rock.AddComponent(&material.Component{
		Actions: []material.Action{
			&material.ImpactSoundAction{Sounds: []material.SoundRef{thud, clank}, TargetImpulse: 2, Volume: 1},
			&material.MessageAction{Target: material.TargetSrc, Timing: material.AtConnect, Payload: []byte("hit")},
			&material.CallbackAction{Timing: material.AtConnect, Fn: func() {}},
		},
	})
	rock.AddComponent(&material.Component{
		Conditions: &material.ConditionNode{Op: material.OpLeaf, Cond: material.CondDstHasMaterial, Mat: metal},
		Actions: []material.Action{
			&material.SoundAction{Sound: clank, Volume: 0.5},
		},
	})
	metal.AddComponent(&material.Component{
		Conditions: &material.ConditionNode{
			Op:    material.OpAnd,
			Left:  &material.ConditionNode{Op: material.OpLeaf, Cond: material.CondDstOlderThan, Value: 250},
			Right: &material.ConditionNode{Op: material.OpLeaf, Cond: material.CondDifferentNode},
		},
		Actions: []material.Action{
			&material.PartModAction{Attr: material.AttrBounce, Value: 0.25},
		},
	})
	return reg
}

func TestActionRecordsGolden(t *testing.T) {
	enc := NewEncoder(nil)
	acts := sampleActions()
	for _, a := range acts {
		if err := enc.AppendAction(a); err != nil {
			t.Fatalf("append %T: %v", a, err)
		}
	}
	golden(t).Assert(t, "action_records", []byte(hex.Dump(enc.Bytes())))

	dec := NewDecoder(enc.Bytes())
	refs := &catalogRefs{sounds: testSounds()}
	for i := range acts {
		a, err := dec.ReadAction(refs)
		if err != nil {
			t.Fatalf("read action %d: %v", i, err)
		}
		if a.Type() != acts[i].Type() {
			t.Fatalf("action %d: expected type %v, got %v", i, acts[i].Type(), a.Type())
		}
	}
	if dec.Remaining() != 0 {
		t.Fatalf("expected empty decoder, %d bytes left", dec.Remaining())
	}
}

func TestCatalogGolden(t *testing.T) {
	enc := NewEncoder(nil)
	if err := enc.AppendCatalog(sampleCatalog(t)); err != nil {
		t.Fatalf("append catalog: %v", err)
	}
	golden(t).Assert(t, "catalog", []byte(hex.Dump(enc.Bytes())))
}

func TestCatalogRoundTrip(t *testing.T) {
	enc := NewEncoder(nil)
	if err := enc.AppendCatalog(sampleCatalog(t)); err != nil {
		t.Fatalf("append catalog: %v", err)
	}

	out := material.NewRegistry()
	dec := NewDecoder(enc.Bytes())
	if err := dec.ReadCatalog(out, testSounds()); err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	if dec.Remaining() != 0 {
		t.Fatalf("expected empty decoder, %d bytes left", dec.Remaining())
	}

	rock, err := out.MaterialByName("rock")
	if err != nil {
		t.Fatalf("rock missing after decode: %v", err)
	}
	metal, err := out.MaterialByName("metal")
	if err != nil {
		t.Fatalf("metal missing after decode: %v", err)
	}

	comps := rock.Components()
	if len(comps) != 2 {
		t.Fatalf("expected 2 rock components, got %d", len(comps))
	}
	if comps[0].Conditions != nil {
		t.Fatalf("first component should be unconditional")
	}
	if len(comps[0].Actions) != 2 {
		t.Fatalf("callback should be dropped from the wire, got %d actions", len(comps[0].Actions))
	}
	imp, ok := comps[0].Actions[0].(*material.ImpactSoundAction)
	if !ok {
		t.Fatalf("expected impact sound first, got %T", comps[0].Actions[0])
	}
	if len(imp.Sounds) != 2 || imp.Sounds[0].SoundName() != "thud" || imp.TargetImpulse != 2 {
		t.Fatalf("impact sound wrong: %+v", imp)
	}
	msg, ok := comps[0].Actions[1].(*material.MessageAction)
	if !ok || string(msg.Payload) != "hit" || msg.Timing != material.AtConnect {
		t.Fatalf("message wrong: %+v", comps[0].Actions[1])
	}
	if comps[1].Conditions == nil || comps[1].Conditions.Cond != material.CondDstHasMaterial {
		t.Fatalf("conditional component wrong: %+v", comps[1].Conditions)
	}
	if comps[1].Conditions.Mat != metal {
		t.Fatalf("condition should reference the decoded metal material")
	}

	mcomps := metal.Components()
	if len(mcomps) != 1 {
		t.Fatalf("expected 1 metal component, got %d", len(mcomps))
	}
	tree := mcomps[0].Conditions
	if tree == nil || tree.Op != material.OpAnd {
		t.Fatalf("expected and branch, got %+v", tree)
	}
	if tree.Left.Cond != material.CondDstOlderThan || tree.Left.Value != 250 {
		t.Fatalf("left leaf wrong: %+v", tree.Left)
	}
	if tree.Right.Cond != material.CondDifferentNode {
		t.Fatalf("right leaf wrong: %+v", tree.Right)
	}

	reenc := NewEncoder(nil)
	if err := reenc.AppendCatalog(out); err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(reenc.Bytes(), enc.Bytes()) {
		t.Fatalf("re-encoded catalog differs from original")
	}
}

func TestCatalogRemapsMaterialIDs(t *testing.T) {
	src := material.NewRegistry()
	scrap, err := src.New("scrap")
	if err != nil {
		t.Fatalf("new scrap: %v", err)
	}
	rock, err := src.New("rock")
	if err != nil {
		t.Fatalf("new rock: %v", err)
	}
	metal, err := src.New("metal")
	if err != nil {
		t.Fatalf("new metal: %v", err)
	}
	src.Remove(scrap)
	rock.AddComponent(&material.Component{
		Conditions: &material.ConditionNode{Op: material.OpLeaf, Cond: material.CondDstLacksMaterial, Mat: metal},
		Actions:    []material.Action{&material.PartModAction{Attr: material.AttrCollide, Value: 0}},
	})

	enc := NewEncoder(nil)
	if err := enc.AppendCatalog(src); err != nil {
		t.Fatalf("append catalog: %v", err)
	}

	out := material.NewRegistry()
	if err := NewDecoder(enc.Bytes()).ReadCatalog(out, soundTable{}); err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	gotRock, err := out.MaterialByName("rock")
	if err != nil {
		t.Fatalf("rock missing: %v", err)
	}
	gotMetal, err := out.MaterialByName("metal")
	if err != nil {
		t.Fatalf("metal missing: %v", err)
	}
	// The sender numbered these 2 and 3; the receiver renumbers from 1.
	if gotRock.ID() != 1 || gotMetal.ID() != 2 {
		t.Fatalf("expected renumbered ids 1 and 2, got %d and %d", gotRock.ID(), gotMetal.ID())
	}
	cond := gotRock.Components()[0].Conditions
	if cond.Mat != gotMetal {
		t.Fatalf("condition should follow the remap to the local metal")
	}
}

func TestActionDecodeErrors(t *testing.T) {
	danglingSound := appendU32([]byte{3}, 99)
	danglingSound = appendU32(danglingSound, 0x3f800000)

	cases := []struct {
		name    string
		buf     []byte
		wantIs  error
		wantMsg string
	}{
		{"unknown_tag", []byte{0xff}, material.ErrUnknownActionType, "offset 0"},
		{"empty_buffer", nil, material.ErrShortBuffer, "offset 0"},
		{"truncated_payload", []byte{3, 1}, material.ErrShortBuffer, "offset 0"},
		{"dangling_sound_id", danglingSound, material.ErrNotFound, "sound id"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			refs := &catalogRefs{sounds: testSounds()}
			_, err := NewDecoder(c.buf).ReadAction(refs)
			if err == nil {
				t.Fatalf("expected decode error")
			}
			if c.wantIs != nil && !errors.Is(err, c.wantIs) {
				t.Fatalf("expected %v, got %v", c.wantIs, err)
			}
			if !strings.Contains(err.Error(), c.wantMsg) {
				t.Fatalf("expected error mentioning %q, got %v", c.wantMsg, err)
			}
		})
	}
}

func TestDecodeErrorCarriesOffset(t *testing.T) {
	enc := NewEncoder(nil)
	if err := enc.AppendAction(&material.PartModAction{Attr: material.AttrFriction, Value: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := enc.AppendAction(&material.NodeModAction{Attr: material.NodeAttrCollide, Value: 0}); err != nil {
		t.Fatalf("append: %v", err)
	}
	buf := append(enc.Bytes(), 0xff)

	dec := NewDecoder(buf)
	refs := &catalogRefs{sounds: testSounds()}
	for i := 0; i < 2; i++ {
		if _, err := dec.ReadAction(refs); err != nil {
			t.Fatalf("read action %d: %v", i, err)
		}
	}
	if dec.Offset() != 12 {
		t.Fatalf("expected offset 12 after two records, got %d", dec.Offset())
	}
	_, err := dec.ReadAction(refs)
	if !errors.Is(err, material.ErrUnknownActionType) {
		t.Fatalf("expected unknown action type, got %v", err)
	}
	if !strings.Contains(err.Error(), "offset 12") {
		t.Fatalf("expected error at offset 12, got %v", err)
	}
}

// craftCatalog wraps a raw component block in a minimal one-material
// catalog so malformed blocks can be fed to the decoder directly.
func craftCatalog(blob []byte) []byte {
	var b []byte
	b = appendU32(b, 1)
	b = appendU32(b, 1)
	b = appendU32(b, 1)
	b = append(b, 'x')
	b = appendU32(b, uint32(len(blob)))
	return append(b, blob...)
}

func TestCatalogDecodeErrors(t *testing.T) {
	enc := NewEncoder(nil)
	if err := enc.AppendCatalog(sampleCatalog(t)); err != nil {
		t.Fatalf("append catalog: %v", err)
	}
	good := enc.Bytes()

	danglingMat := material.NewRegistry()
	solo, err := danglingMat.New("solo")
	if err != nil {
		t.Fatalf("new solo: %v", err)
	}
	solo.AddComponent(&material.Component{
		Conditions: &material.ConditionNode{Op: material.OpLeaf, Cond: material.CondDstHasMaterial, Mat: &material.Material{}},
		Actions:    []material.Action{&material.PartModAction{Attr: material.AttrCollide, Value: 0}},
	})
	dmEnc := NewEncoder(nil)
	if err := dmEnc.AppendCatalog(danglingMat); err != nil {
		t.Fatalf("append dangling catalog: %v", err)
	}

	badFlag := craftCatalog([]byte{1, 0, 0, 0, 2})
	trailing := craftCatalog([]byte{0, 0, 0, 0, 0})

	cases := []struct {
		name    string
		buf     []byte
		seed    []string
		wantIs  error
		wantMsg string
	}{
		{"truncated", good[:len(good)-5], nil, material.ErrShortBuffer, "offset"},
		{"truncated_header", good[:2], nil, material.ErrShortBuffer, "offset 0"},
		{"dangling_material_id", dmEnc.Bytes(), nil, material.ErrNotFound, "material id 0"},
		{"duplicate_label", good, []string{"rock"}, nil, "duplicate label"},
		{"bad_condition_flag", badFlag, nil, nil, "condition flag 2"},
		{"trailing_component_bytes", trailing, nil, nil, "trailing bytes"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			reg := material.NewRegistry()
			for _, label := range c.seed {
				if _, err := reg.New(label); err != nil {
					t.Fatalf("seed %s: %v", label, err)
				}
			}
			err := NewDecoder(c.buf).ReadCatalog(reg, testSounds())
			if err == nil {
				t.Fatalf("expected decode error")
			}
			if c.wantIs != nil && !errors.Is(err, c.wantIs) {
				t.Fatalf("expected %v, got %v", c.wantIs, err)
			}
			if !strings.Contains(err.Error(), c.wantMsg) {
				t.Fatalf("expected error mentioning %q, got %v", c.wantMsg, err)
			}
		})
	}
}

func TestCallbackHasNoWireForm(t *testing.T) {
	enc := NewEncoder(nil)
	err := enc.AppendAction(&material.CallbackAction{Timing: material.AtConnect, Fn: func() {}})
	if err == nil {
		t.Fatalf("expected append to fail for a callback")
	}
	if !strings.Contains(err.Error(), "no wire form") {
		t.Fatalf("expected no wire form error, got %v", err)
	}
	if enc.Len() != 0 {
		t.Fatalf("failed append should leave the buffer untouched, got %d bytes", enc.Len())
	}
}
