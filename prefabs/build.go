package prefabs

import (
	"fmt"
	"time"

	"github.com/jakecoffman/cp"

	"github.com/milk9111/matter/audio"
	"github.com/milk9111/matter/dynamics"
	"github.com/milk9111/matter/material"
	"github.com/milk9111/matter/scene"
)

// Resolver glues a material registry and a sound bank into the lookup
// surfaces the parser and the wire codec want.
type Resolver struct {
	Registry *material.Registry
	Bank     *audio.Bank
}

func (r Resolver) MaterialByName(name string) (*material.Material, error) {
	return r.Registry.MaterialByName(name)
}

func (r Resolver) MaterialByID(id uint32) (*material.Material, error) {
	return r.Registry.MaterialByID(id)
}

func (r Resolver) SoundByName(name string) (material.SoundRef, error) {
	return r.Bank.SoundByName(name)
}

func (r Resolver) SoundByID(id uint32) (material.SoundRef, error) {
	return r.Bank.SoundByID(id)
}

// BuildSounds registers every sound in the spec with the bank. An empty
// wave means sine.
func BuildSounds(bank *audio.Bank, spec SoundsSpec) error {
	for _, ss := range spec.Sounds {
		wave := audio.WaveSine
		if ss.Wave != "" {
			w, err := audio.ParseWave(ss.Wave)
			if err != nil {
				return fmt.Errorf("prefabs: sound %s: %w", ss.Name, err)
			}
			wave = w
		}
		d := audio.Descriptor{
			Wave:     wave,
			Freq:     ss.Freq,
			Duration: time.Duration(ss.DurationMS) * time.Millisecond,
			Attack:   time.Duration(ss.AttackMS) * time.Millisecond,
			Release:  time.Duration(ss.ReleaseMS) * time.Millisecond,
			Loop:     ss.Loop,
		}
		if _, err := bank.Add(ss.Name, d); err != nil {
			return fmt.Errorf("prefabs: sound %s: %w", ss.Name, err)
		}
	}
	return nil
}

// BuildMaterials registers the spec's materials and parses their
// components. All labels are created up front so conditions can
// reference materials defined later in the same file.
func BuildMaterials(reg *material.Registry, refs material.Refs, spec MaterialsSpec) error {
	for _, ms := range spec.Materials {
		if _, err := reg.MaterialByName(ms.Label); err == nil {
			continue
		}
		if _, err := reg.New(ms.Label); err != nil {
			return fmt.Errorf("prefabs: material %s: %w", ms.Label, err)
		}
	}
	for _, ms := range spec.Materials {
		m, err := reg.MaterialByName(ms.Label)
		if err != nil {
			return err
		}
		for i, cs := range ms.Components {
			comp, err := material.ParseComponent(cs.Conditions, cs.Actions, refs)
			if err != nil {
				return fmt.Errorf("prefabs: material %s component %d: %w", ms.Label, i+1, err)
			}
			m.AddComponent(comp)
		}
	}
	return nil
}

// BuildScene creates the spec's nodes and parts inside the space. The
// materials the parts name must already be registered.
func BuildScene(space *dynamics.Space, spec SceneSpec) error {
	for _, ns := range spec.Nodes {
		node, err := space.Scene().NewNode(ns.Label)
		if err != nil {
			return fmt.Errorf("prefabs: node %s: %w", ns.Label, err)
		}
		for i, ps := range ns.Parts {
			part, err := buildPart(space, node, ps)
			if err != nil {
				return fmt.Errorf("prefabs: node %s part %d: %w", ns.Label, i+1, err)
			}
			for _, label := range ps.Materials {
				m, err := space.Materials().MaterialByName(label)
				if err != nil {
					return fmt.Errorf("prefabs: node %s part %d: %w", ns.Label, i+1, err)
				}
				part.AddMaterial(m)
			}
			if ps.Mass > 0 {
				if ps.FixedRotation {
					part.FixRotation()
				}
				if ps.VX != 0 || ps.VY != 0 {
					part.Body().SetVelocity(ps.VX, ps.VY)
				}
			}
		}
	}
	return nil
}

func buildPart(space *dynamics.Space, node *scene.Node, ps PartSpec) (*dynamics.Part, error) {
	switch ps.Shape {
	case "box":
		if ps.Width <= 0 || ps.Height <= 0 {
			return nil, fmt.Errorf("box wants a positive width and height")
		}
		return space.NewBoxPart(node, cp.Vector{X: ps.X, Y: ps.Y}, ps.Width, ps.Height, ps.Mass), nil
	case "circle":
		if ps.Radius <= 0 {
			return nil, fmt.Errorf("circle wants a positive radius")
		}
		return space.NewCirclePart(node, cp.Vector{X: ps.X, Y: ps.Y}, ps.Radius, ps.Mass), nil
	case "segment":
		return space.NewSegmentPart(node, cp.Vector{X: ps.X1, Y: ps.Y1}, cp.Vector{X: ps.X2, Y: ps.Y2}, ps.Radius), nil
	default:
		return nil, fmt.Errorf("unknown shape %q", ps.Shape)
	}
}
