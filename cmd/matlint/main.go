package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/milk9111/matter/audio"
	"github.com/milk9111/matter/material"
	"github.com/milk9111/matter/prefabs"
	"github.com/milk9111/matter/stream"
)

// matlint parses a material definition file, resolves every sound and
// material reference against the project's sound set, and reports the
// first rule that fails to build. With -dump it also prints the encoded
// catalog, which is handy for diffing the wire form across edits.

func main() {
	log.SetFlags(0)
	file := flag.String("f", "", "material yaml to lint (default: the project's materials.yaml)")
	dump := flag.Bool("dump", false, "print the encoded catalog as a hex dump")
	flag.Parse()

	if err := run(*file, *dump); err != nil {
		log.Fatalf("matlint: %v", err)
	}
}

func run(file string, dump bool) error {
	sounds, err := prefabs.LoadSoundsSpec()
	if err != nil {
		return err
	}
	bank := audio.NewBank()
	if err := prefabs.BuildSounds(bank, sounds); err != nil {
		return err
	}

	name := file
	var raw []byte
	if file == "" {
		name = "materials.yaml"
		raw, err = prefabs.Load(name)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return err
	}

	spec, err := decodeStrict(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	reg := material.NewRegistry()
	res := prefabs.Resolver{Registry: reg, Bank: bank}
	if err := prefabs.BuildMaterials(reg, res, spec); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	mats := reg.All()
	comps := 0
	for _, m := range mats {
		comps += len(m.Components())
	}
	fmt.Printf("%s: %d materials, %d components ok\n", name, len(mats), comps)

	if dump {
		enc := stream.NewEncoder(nil)
		if err := enc.AppendCatalog(reg); err != nil {
			return err
		}
		fmt.Printf("catalog (%d bytes):\n%s", enc.Len(), hex.Dump(enc.Bytes()))
	}
	return nil
}

// decodeStrict rejects unknown yaml keys, which plain unmarshal would
// silently drop.
func decodeStrict(raw []byte) (prefabs.MaterialsSpec, error) {
	var spec prefabs.MaterialsSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return prefabs.MaterialsSpec{}, err
	}
	return spec, nil
}
