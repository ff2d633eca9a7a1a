package script

import (
	"fmt"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
)

// MapPref is a lens script's explicit projection-direction preference.
type MapPref int

const (
	PrefNone MapPref = iota
	PrefForward
	PrefInverse
)

// LensScript is the validated result of running a lens script.
type LensScript struct {
	Forward *Func
	Inverse *Func
	MapPref MapPref

	// FOV limits in radians; zero when the script leaves them out.
	MaxHFov float64
	MaxVFov float64

	// Nominal projection size in lens units; zero when unspecified.
	Width  float64
	Height float64

	// OnLoad is an optional command string the surrounding system should
	// execute after the lens loads (e.g. "hfov 180").
	OnLoad string
}

// LoadLens runs <dir>/<name>.lua and extracts its projection functions and
// settings. numPlates is published to the script as the "numplates" global
// so lens scripts can depend on the active globe.
func (e *Engine) LoadLens(dir, name string, numPlates int) (*LensScript, error) {
	e.clearGlobals("map", "max_hfov", "max_vfov", "lens_width", "lens_height",
		"lens_inverse", "lens_forward", "onload")
	e.L.SetGlobal("numplates", lua.LNumber(numPlates))

	path := filepath.Join(dir, name+".lua")
	if err := e.L.DoFile(path); err != nil {
		return nil, fmt.Errorf("script: lens %s: %w", name, err)
	}

	ls := &LensScript{}

	if fn, ok := e.L.GetGlobal("lens_forward").(*lua.LFunction); ok {
		ls.Forward = &Func{name: "lens_forward", fn: fn}
	}
	if fn, ok := e.L.GetGlobal("lens_inverse").(*lua.LFunction); ok {
		ls.Inverse = &Func{name: "lens_inverse", fn: fn}
	}

	if pref := e.L.GetGlobal("map"); pref.Type() == lua.LTString {
		switch string(pref.(lua.LString)) {
		case "lens_forward":
			if ls.Forward == nil {
				return nil, fmt.Errorf("script: lens %s: map names lens_forward but the script does not define it", name)
			}
			ls.MapPref = PrefForward
		case "lens_inverse":
			if ls.Inverse == nil {
				return nil, fmt.Errorf("script: lens %s: map names lens_inverse but the script does not define it", name)
			}
			ls.MapPref = PrefInverse
		default:
			return nil, fmt.Errorf("script: lens %s: unsupported map function: %s", name, pref)
		}
	}

	ls.MaxHFov = toRadians(e.L.GetGlobal("max_hfov"))
	ls.MaxVFov = toRadians(e.L.GetGlobal("max_vfov"))
	ls.Width = toNumber(e.L.GetGlobal("lens_width"))
	ls.Height = toNumber(e.L.GetGlobal("lens_height"))

	if onload := e.L.GetGlobal("onload"); onload.Type() == lua.LTString {
		ls.OnLoad = string(onload.(lua.LString))
	}

	return ls, nil
}
