// Package prefabs loads the data-driven definitions: synthesized sound
// banks, material rule sets and scene layouts. Definitions are embedded
// at build time and a prefabs/ directory next to the binary overrides
// them, which is what the watcher hot-reloads from.
package prefabs

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type SoundsSpec struct {
	Sounds []SoundSpec `yaml:"sounds"`
}

type SoundSpec struct {
	Name       string  `yaml:"name"`
	Wave       string  `yaml:"wave"`
	Freq       float64 `yaml:"freq"`
	DurationMS int     `yaml:"duration_ms"`
	AttackMS   int     `yaml:"attack_ms"`
	ReleaseMS  int     `yaml:"release_ms"`
	Loop       bool    `yaml:"loop"`
}

type MaterialsSpec struct {
	Materials []MaterialSpec `yaml:"materials"`
}

type MaterialSpec struct {
	Label      string          `yaml:"label"`
	Components []ComponentSpec `yaml:"components"`
}

// ComponentSpec leaves conditions and actions untyped. The material
// parser owns that grammar, and yaml hands it the same nested lists the
// script engine produces.
type ComponentSpec struct {
	Conditions any `yaml:"conditions"`
	Actions    any `yaml:"actions"`
}

type SceneSpec struct {
	GravityX float64    `yaml:"gravity_x"`
	GravityY float64    `yaml:"gravity_y"`
	Seed     int64      `yaml:"seed"`
	Nodes    []NodeSpec `yaml:"nodes"`
}

type NodeSpec struct {
	Label string     `yaml:"label"`
	Parts []PartSpec `yaml:"parts"`
}

// PartSpec describes one collidable part. Box and circle use x/y plus
// their dimensions; segment uses the x1/y1..x2/y2 endpoints. mass <= 0
// means static.
type PartSpec struct {
	Shape         string   `yaml:"shape"`
	X             float64  `yaml:"x"`
	Y             float64  `yaml:"y"`
	Width         float64  `yaml:"width"`
	Height        float64  `yaml:"height"`
	Radius        float64  `yaml:"radius"`
	X1            float64  `yaml:"x1"`
	Y1            float64  `yaml:"y1"`
	X2            float64  `yaml:"x2"`
	Y2            float64  `yaml:"y2"`
	Mass          float64  `yaml:"mass"`
	VX            float64  `yaml:"vx"`
	VY            float64  `yaml:"vy"`
	FixedRotation bool     `yaml:"fixed_rotation"`
	Materials     []string `yaml:"materials"`
}

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

func LoadSoundsSpec() (SoundsSpec, error) {
	return LoadSpec[SoundsSpec]("sounds.yaml")
}

func LoadMaterialsSpec() (MaterialsSpec, error) {
	return LoadSpec[MaterialsSpec]("materials.yaml")
}

func LoadSceneSpec(name string) (SceneSpec, error) {
	return LoadSpec[SceneSpec](name)
}
