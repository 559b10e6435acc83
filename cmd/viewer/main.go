package main

import (
	"flag"
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/matter/audio"
)

func main() {
	sceneFile := flag.String("scene", "scene.yaml", "scene spec under prefabs/")
	mute := flag.Bool("mute", false, "disable audio output")
	seed := flag.Int64("seed", 0, "override the scene's rng seed (0 keeps the spec's)")
	debug := flag.Bool("debug", false, "also draw contact points")
	watch := flag.Bool("watch", false, "rebuild the scene when prefab files change on disk")
	flag.Parse()

	var sink audio.Sink = audio.NullSink{}
	var synth *audio.Synth
	if !*mute {
		synth = audio.NewSynth()
		if err := synth.Start(); err != nil {
			log.Printf("viewer: audio unavailable: %v", err)
			synth = nil
		} else {
			sink = synth
		}
	}

	game, err := NewGame(Options{
		SceneFile: *sceneFile,
		Seed:      *seed,
		Debug:     *debug,
		Sink:      sink,
		Synth:     synth,
	})
	if err != nil {
		log.Fatalf("viewer: %v", err)
	}
	if *watch {
		if err := game.Watch("prefabs", "prefabs/scripts"); err != nil {
			log.Printf("viewer: watch disabled: %v", err)
		}
	}

	ebiten.SetWindowSize(baseWidth, baseHeight)
	ebiten.SetWindowTitle("matter viewer")
	err = ebiten.RunGame(game)
	game.Close()
	if synth != nil {
		synth.Stop()
	}
	if err != nil {
		log.Fatal(err)
	}
}
