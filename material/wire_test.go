package material

import (
	"bytes"
	"encoding/hex"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func wireRefs() *fakeRefs {
	return &fakeRefs{
		mats: map[string]*Material{},
		sounds: map[string]*fakeSound{
			"thud":   {id: 2, name: "thud"},
			"clank":  {id: 3, name: "clank"},
			"scrape": {id: 5, name: "scrape"},
			"rumble": {id: 6, name: "rumble"},
			"chime":  {id: 7, name: "chime"},
		},
	}
}

func wireActions(refs *fakeRefs) []Action {
	return []Action{
		&PartModAction{Attr: AttrFriction, Value: 0.5},
		&NodeModAction{Attr: NodeAttrCollide, Value: 0},
		&SoundAction{Sound: refs.sounds["chime"], Volume: 1},
		&ImpactSoundAction{
			Sounds:        []SoundRef{refs.sounds["thud"], refs.sounds["clank"]},
			TargetImpulse: 2,
			Volume:        0.25,
		},
		&SkidSoundAction{Sound: refs.sounds["scrape"], TargetImpulse: 4, Volume: 1},
		&RollSoundAction{Sound: refs.sounds["rumble"], TargetImpulse: 0.5, Volume: 0.125},
		&MessageAction{Target: TargetDst, Timing: AtDisconnect, Payload: []byte("hit")},
	}
}

func TestActionRoundTrip(t *testing.T) {
	refs := wireRefs()
	for _, a := range wireActions(refs) {
		t.Run(a.Type().String(), func(t *testing.T) {
			buf, err := AppendFlatten(nil, a)
			if err != nil {
				t.Fatalf("flatten failed: %v", err)
			}
			if len(buf) != 1+FlattenedSize(a) {
				t.Fatalf("expected %d bytes, got %d", 1+FlattenedSize(a), len(buf))
			}
			back, n, err := RestoreAction(buf, refs)
			if err != nil {
				t.Fatalf("restore failed: %v", err)
			}
			if n != len(buf) {
				t.Fatalf("expected %d bytes consumed, got %d", len(buf), n)
			}
			if !reflect.DeepEqual(a, back) {
				t.Fatalf("round trip changed the action:\n before %+v\n after  %+v", a, back)
			}
		})
	}
}

func TestRestoreActionRejections(t *testing.T) {
	refs := wireRefs()

	t.Run("unknown_tag", func(t *testing.T) {
		buf := []byte{0xAB, 0, 0, 0, 0, 0, 0, 0}
		if _, _, err := RestoreAction(buf, refs); !errors.Is(err, ErrUnknownActionType) {
			t.Fatalf("expected ErrUnknownActionType, got %v", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, _, err := RestoreAction(nil, refs); !errors.Is(err, ErrShortBuffer) {
			t.Fatalf("expected ErrShortBuffer, got %v", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		for _, a := range wireActions(refs) {
			buf, err := AppendFlatten(nil, a)
			if err != nil {
				t.Fatalf("flatten failed: %v", err)
			}
			for cut := 1; cut < len(buf); cut++ {
				if _, _, err := RestoreAction(buf[:cut], refs); !errors.Is(err, ErrShortBuffer) {
					t.Fatalf("%s cut to %d bytes: expected ErrShortBuffer, got %v",
						a.Type(), cut, err)
				}
			}
		}
	})

	t.Run("dangling_sound_id", func(t *testing.T) {
		buf, err := AppendFlatten(nil, &SoundAction{Sound: &fakeSound{id: 99}, Volume: 1})
		if err != nil {
			t.Fatalf("flatten failed: %v", err)
		}
		if _, _, err := RestoreAction(buf, refs); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown sound id, got %v", err)
		}
	})
}

func TestCallbackHasNoWireForm(t *testing.T) {
	cb := &CallbackAction{Timing: AtConnect, Fn: func() {}}
	if Replicated(cb) {
		t.Fatalf("callbacks should not be replicated")
	}
	for _, a := range wireActions(wireRefs()) {
		if !Replicated(a) {
			t.Fatalf("%s should be replicated", a.Type())
		}
	}
	if _, err := AppendFlatten(nil, cb); err == nil {
		t.Fatalf("expected an error flattening a callback")
	}
	if FlattenedSize(cb) != 0 {
		t.Fatalf("callback size should be 0")
	}
}

func TestConditionTreeRoundTrip(t *testing.T) {
	reg := NewRegistry()
	metal, _ := reg.New("metal")
	refs := wireRefs()
	refs.mats["metal"] = metal

	in := []any{
		[]any{"they_have_material", "metal"},
		"and",
		[]any{"we_are_older_than", 250},
		"or",
		[]any{"eval_colliding"},
	}
	tree, err := ParseConditions(in, refs)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	buf := AppendFlattenConditions(nil, tree)
	if len(buf) != FlattenedConditionsSize(tree) {
		t.Fatalf("expected %d bytes, got %d", FlattenedConditionsSize(tree), len(buf))
	}
	back, n, err := RestoreConditions(buf, refs)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("expected %d bytes consumed, got %d", len(buf), n)
	}
	if !reflect.DeepEqual(tree, back) {
		t.Fatalf("round trip changed the tree:\n before %+v\n after  %+v", tree, back)
	}
}

func TestRestoreConditionsRejections(t *testing.T) {
	refs := wireRefs()

	cases := []struct {
		name string
		buf  []byte
		want string
	}{
		{"empty", nil, "short buffer"},
		{"leaf_missing_kind", []byte{0x00}, "short buffer"},
		{"leaf_missing_operand", []byte{0x00, 0x01, 0x01}, "short buffer"},
		{"unknown_kind", []byte{0x00, 0xBB}, "unknown kind"},
		{"unknown_op", []byte{0x77}, "unknown op"},
		{"branch_missing_child", []byte{0x01, 0x00, 0x03}, "short buffer"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := RestoreConditions(c.buf, refs)
			if err == nil {
				t.Fatalf("expected error, got none")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("expected error containing %q, got %q", c.want, err)
			}
		})
	}
}

// The wire layout is a compatibility contract; the golden files pin every
// byte so accidental format changes fail loudly.
func TestWireGoldenActions(t *testing.T) {
	refs := wireRefs()

	var out bytes.Buffer
	for _, a := range wireActions(refs) {
		buf, err := AppendFlatten(nil, a)
		if err != nil {
			t.Fatalf("flatten failed: %v", err)
		}
		out.WriteString(hex.EncodeToString(buf))
		out.WriteByte('\n')
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "actions", out.Bytes())
}

func TestWireGoldenConditions(t *testing.T) {
	reg := NewRegistry()
	metal, _ := reg.New("metal")
	refs := wireRefs()
	refs.mats["metal"] = metal

	tree, err := ParseConditions([]any{
		[]any{"they_have_material", "metal"},
		"and",
		[]any{"we_are_older_than", 250},
		"or",
		[]any{"eval_colliding"},
	}, refs)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var out bytes.Buffer
	out.WriteString(hex.EncodeToString(AppendFlattenConditions(nil, tree)))
	out.WriteByte('\n')

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "conditions", out.Bytes())
}
