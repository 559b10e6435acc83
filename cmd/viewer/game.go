package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/jakecoffman/cp"

	"github.com/milk9111/matter/audio"
	"github.com/milk9111/matter/dynamics"
	"github.com/milk9111/matter/prefabs"
	"github.com/milk9111/matter/script"
)

const (
	baseWidth  = 640
	baseHeight = 480
	stepDT     = 1.0 / 60

	hudMessages = 5
)

// Options configure the viewer once at startup; scene content reloads.
type Options struct {
	SceneFile string
	Seed      int64
	Debug     bool
	Sink      audio.Sink
	Synth     *audio.Synth
}

type Game struct {
	opts    Options
	space   *dynamics.Space
	watcher *prefabs.Watcher

	messages []string
}

func NewGame(opts Options) (*Game, error) {
	g := &Game{opts: opts}
	if err := g.rebuild(); err != nil {
		return nil, err
	}
	return g, nil
}

// Watch rebuilds the scene whenever a definition file under dirs changes.
func (g *Game) Watch(dirs ...string) error {
	w, err := prefabs.NewWatcher(dirs...)
	if err != nil {
		return err
	}
	g.watcher = w
	return nil
}

func (g *Game) Close() {
	if g.watcher != nil {
		_ = g.watcher.Close()
	}
}

// rebuild loads every definition from scratch and swaps in a fresh space.
// Hot reload goes through here too; live contacts do not survive, which
// keeps edited materials from half-applying to contacts resolved under
// the old rules.
func (g *Game) rebuild() error {
	spec, err := prefabs.LoadSceneSpec(g.opts.SceneFile)
	if err != nil {
		return err
	}
	seed := spec.Seed
	if g.opts.Seed != 0 {
		seed = g.opts.Seed
	}

	space := dynamics.NewSpace(dynamics.Config{
		Gravity: cp.Vector{X: spec.GravityX, Y: spec.GravityY},
		Seed:    seed,
		Sink:    g.opts.Sink,
	})
	bank := audio.NewBank()
	res := prefabs.Resolver{Registry: space.Materials(), Bank: bank}

	sounds, err := prefabs.LoadSoundsSpec()
	if err != nil {
		return err
	}
	if err := prefabs.BuildSounds(bank, sounds); err != nil {
		return err
	}
	mats, err := prefabs.LoadMaterialsSpec()
	if err != nil {
		return err
	}
	if err := prefabs.BuildMaterials(space.Materials(), res, mats); err != nil {
		return err
	}

	eng := script.NewEngine(space.Materials(), res)
	for _, name := range prefabs.Scripts() {
		src, err := prefabs.LoadScript(name)
		if err != nil {
			return err
		}
		if err := eng.Run(name, src); err != nil {
			return err
		}
	}

	if err := prefabs.BuildScene(space, spec); err != nil {
		return err
	}
	for _, ns := range spec.Nodes {
		node, ok := space.Scene().NodeByLabel(ns.Label)
		if !ok {
			continue
		}
		label := ns.Label
		node.Handler = func(payload []byte) {
			g.note(fmt.Sprintf("%s <- %q", label, payload))
		}
	}

	// Loop voices belong to the old space's contacts; drop them with it.
	if g.opts.Synth != nil {
		g.opts.Synth.Reset()
	}
	g.space = space
	g.messages = g.messages[:0]
	return nil
}

func (g *Game) note(line string) {
	g.messages = append(g.messages, line)
	if len(g.messages) > hudMessages {
		g.messages = g.messages[len(g.messages)-hudMessages:]
	}
}

func (g *Game) Update() error {
	if g.watcher != nil {
		select {
		case name, ok := <-g.watcher.Events:
			if ok {
				log.Printf("viewer: %s changed, rebuilding", name)
				if err := g.rebuild(); err != nil {
					log.Printf("viewer: reload failed: %v", err)
				}
			}
		case err, ok := <-g.watcher.Errors:
			if ok {
				log.Printf("viewer: watcher: %v", err)
			}
		default:
		}
	}

	g.space.Step(stepDT)
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	drawSpace(screen, g.space, g.opts.Debug)

	var hud strings.Builder
	fmt.Fprintf(&hud, "t=%dms  contacts=%d  overrides=%d  fps=%.0f",
		g.space.Now(), g.space.Contacts(), g.space.OverriddenPairs(), ebiten.ActualFPS())
	for _, line := range g.messages {
		hud.WriteByte('\n')
		hud.WriteString(line)
	}
	ebitenutil.DebugPrint(screen, hud.String())
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return baseWidth, baseHeight
}
