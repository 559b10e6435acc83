// Package material implements the rule layer that decides how two colliding
// parts respond to each other: per-material condition trees, ordered action
// lists that mutate a shared per-contact context, and a fixed binary wire
// encoding so a replaying client reproduces identical collision behavior.
package material

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a label or id lookup misses.
var ErrNotFound = errors.New("material: not found")

// Material is an ordered sequence of components. Materials are shared by
// reference among any number of parts; they never point back at a part.
type Material struct {
	id         uint32
	label      string
	components []*Component
}

// Component pairs an optional condition tree with an ordered action list.
// A nil condition tree means the actions always apply.
type Component struct {
	Conditions *ConditionNode
	Actions    []Action
}

// ID returns the registry-assigned id (0 means unregistered).
func (m *Material) ID() uint32 { return m.id }

// Label returns the authoring label; only used for lookups and debugging.
func (m *Material) Label() string { return m.label }

// Components returns the component list in attachment order.
func (m *Material) Components() []*Component { return m.components }

// AddComponent appends a component. Components are immutable once added.
func (m *Material) AddComponent(c *Component) {
	if c == nil {
		return
	}
	m.components = append(m.components, c)
}

// Body is the view of a part that condition evaluation reads. The dynamics
// layer owns the real parts; tests supply fakes.
type Body interface {
	NodeID() uint64
	BornAt() uint64
	Materials() []*Material
	HasMaterial(*Material) bool
}

// SoundRef identifies a playable sound. The audio layer supplies the real
// implementation; the id is what goes on the wire.
type SoundRef interface {
	SoundID() uint32
	SoundName() string
}

// Refs resolves string operands in parsed specs to live references.
type Refs interface {
	MaterialByName(name string) (*Material, error)
	SoundByName(name string) (SoundRef, error)
}

// Registry assigns stable ids to materials in registration order, which is
// what keeps replicated catalogs deterministic. It is owned by the
// simulation side and is not safe for concurrent use.
type Registry struct {
	byLabel map[string]*Material
	byID    map[uint32]*Material
	ordered []*Material
	nextID  uint32
}

func NewRegistry() *Registry {
	return &Registry{
		byLabel: make(map[string]*Material),
		byID:    make(map[uint32]*Material),
		nextID:  1,
	}
}

// New creates and registers an empty material. Labels must be unique within
// a registry so data files and scripts can refer to them by name.
func (r *Registry) New(label string) (*Material, error) {
	if label == "" {
		return nil, fmt.Errorf("material: empty label")
	}
	if _, ok := r.byLabel[label]; ok {
		return nil, fmt.Errorf("material: duplicate label %q", label)
	}
	m := &Material{id: r.nextID, label: label}
	r.nextID++
	r.byLabel[label] = m
	r.byID[m.id] = m
	r.ordered = append(r.ordered, m)
	return m, nil
}

// MaterialByName implements the material half of Refs.
func (r *Registry) MaterialByName(name string) (*Material, error) {
	m, ok := r.byLabel[name]
	if !ok {
		return nil, fmt.Errorf("material: %q: %w", name, ErrNotFound)
	}
	return m, nil
}

// MaterialByID resolves a wire id back to a material.
func (r *Registry) MaterialByID(id uint32) (*Material, error) {
	m, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("material: id %d: %w", id, ErrNotFound)
	}
	return m, nil
}

// All returns the registered materials in registration order.
func (r *Registry) All() []*Material {
	out := make([]*Material, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Remove unregisters a material. Parts still holding the material keep it
// alive; only the name and id bindings are dropped.
func (r *Registry) Remove(m *Material) {
	if m == nil {
		return
	}
	if cur, ok := r.byLabel[m.label]; !ok || cur != m {
		return
	}
	delete(r.byLabel, m.label)
	delete(r.byID, m.id)
	for i, o := range r.ordered {
		if o == m {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
}

// Resolve walks src's materials in attachment order, each material's
// components in declared order, evaluating conditions against the current
// context and applying the actions of every component that passes. A full
// contact resolution calls this twice: once for each part, with src/dst
// swapped the second time, so the second part's components run last and win
// attribute conflicts.
func Resolve(ctx *Context, src, dst Body, now uint64) {
	for _, m := range src.Materials() {
		if m == nil {
			continue
		}
		for _, c := range m.components {
			if c == nil {
				continue
			}
			if c.Conditions != nil && !c.Conditions.Eval(src, dst, ctx, now) {
				continue
			}
			for _, a := range c.Actions {
				a.Apply(ctx, src, dst)
			}
		}
	}
}
