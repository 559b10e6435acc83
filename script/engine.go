// Package script exposes material authoring to tengo. Scripts get a
// small builtin surface (material, get_material, sound, add_actions)
// and hand the engine plain lists that feed straight into the material
// parser, so the script grammar and the yaml grammar stay identical.
package script

import (
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/milk9111/matter/material"
)

// Engine compiles and runs material definition scripts against a
// registry. Compiled scripts are cached by name and recompiled when the
// source changes, so hot reload stays cheap.
type Engine struct {
	registry *material.Registry
	refs     material.Refs
	cache    map[string]*compiledScript
}

type compiledScript struct {
	src      string
	compiled *tengo.Compiled
}

// NewEngine builds an Engine. refs resolves material and sound names
// inside condition and action tuples.
func NewEngine(registry *material.Registry, refs material.Refs) *Engine {
	return &Engine{
		registry: registry,
		refs:     refs,
		cache:    make(map[string]*compiledScript),
	}
}

// Run executes a definition script. Re-running a script with the same
// name reuses the compiled form unless the source changed.
func (e *Engine) Run(name string, src []byte) error {
	if e == nil {
		return fmt.Errorf("script: nil engine")
	}
	cs, ok := e.cache[name]
	if !ok || cs.src != string(src) {
		compiled, err := e.compile(src)
		if err != nil {
			return fmt.Errorf("script: compile %s: %w", name, err)
		}
		cs = &compiledScript{src: string(src), compiled: compiled}
		e.cache[name] = cs
	}
	if err := cs.compiled.Run(); err != nil {
		return fmt.Errorf("script: run %s: %w", name, err)
	}
	return nil
}

func (e *Engine) compile(src []byte) (*tengo.Compiled, error) {
	script := tengo.NewScript(src)
	for name, fn := range e.builtins() {
		if err := script.Add(name, fn); err != nil {
			return nil, err
		}
	}
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))
	return script.Compile()
}

func (e *Engine) builtins() map[string]*tengo.UserFunction {
	return map[string]*tengo.UserFunction{
		"material":     {Name: "material", Value: e.materialFn},
		"get_material": {Name: "get_material", Value: e.getMaterialFn},
		"sound":        {Name: "sound", Value: e.soundFn},
		"add_actions":  {Name: "add_actions", Value: e.addActionsFn},
	}
}

// materialFn creates a material, or returns the existing one so that
// re-running a definition script stays idempotent.
func (e *Engine) materialFn(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	label := strings.TrimSpace(objectAsString(args[0]))
	if label == "" {
		return nil, fmt.Errorf("material wants a non-empty label")
	}
	if m, err := e.registry.MaterialByName(label); err == nil {
		return &tengo.String{Value: m.Label()}, nil
	}
	m, err := e.registry.New(label)
	if err != nil {
		return nil, err
	}
	return &tengo.String{Value: m.Label()}, nil
}

func (e *Engine) getMaterialFn(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	label := strings.TrimSpace(objectAsString(args[0]))
	m, err := e.registry.MaterialByName(label)
	if err != nil {
		return nil, err
	}
	return &tengo.String{Value: m.Label()}, nil
}

func (e *Engine) soundFn(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	name := strings.TrimSpace(objectAsString(args[0]))
	if _, err := e.refs.SoundByName(name); err != nil {
		return nil, err
	}
	return &tengo.String{Value: name}, nil
}

// addActionsFn is add_actions(material, actions) or
// add_actions(material, conditions, actions).
func (e *Engine) addActionsFn(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, tengo.ErrWrongNumArguments
	}
	label := strings.TrimSpace(objectAsString(args[0]))
	m, err := e.registry.MaterialByName(label)
	if err != nil {
		return nil, err
	}

	var conditions any
	actionsArg := args[1]
	if len(args) == 3 {
		conditions = objectToAny(args[1])
		actionsArg = args[2]
	}

	comp, err := material.ParseComponent(conditions, objectToAny(actionsArg), e.refs)
	if err != nil {
		return nil, err
	}
	m.AddComponent(comp)
	return tengo.TrueValue, nil
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectToAny(obj tengo.Object) any {
	if obj == nil {
		return nil
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Int:
		return int(v.Value)
	case *tengo.Float:
		return v.Value
	case *tengo.Bool:
		return !v.IsFalsy()
	case *tengo.Array:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.ImmutableArray:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.Map:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.ImmutableMap:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.Undefined:
		return nil
	default:
		return v.String()
	}
}
