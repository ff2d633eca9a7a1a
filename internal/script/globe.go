package script

import (
	"fmt"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"

	"fisheye-renderer/internal/mathutil"
)

// PlateDef is one camera view as declared by a globe script.
type PlateDef struct {
	Forward mathutil.Vec3
	Up      mathutil.Vec3
	FovDeg  float64
}

// GlobeScript is the validated result of running a globe script.
type GlobeScript struct {
	Plates []PlateDef

	// Selector overrides default plate selection when non-nil.
	Selector *Func
}

// LoadGlobe runs <dir>/<name>.lua and extracts its plate declarations.
// Validation is all-or-nothing: any malformed plate fails the whole load
// and nothing is returned.
func (e *Engine) LoadGlobe(dir, name string) (*GlobeScript, error) {
	e.clearGlobals("plates", "globe_plate")

	path := filepath.Join(dir, name+".lua")
	if err := e.L.DoFile(path); err != nil {
		return nil, fmt.Errorf("script: globe %s: %w", name, err)
	}

	gs := &GlobeScript{}

	if fn, ok := e.L.GetGlobal("globe_plate").(*lua.LFunction); ok {
		gs.Selector = &Func{name: "globe_plate", fn: fn}
	}

	plates, ok := e.L.GetGlobal("plates").(*lua.LTable)
	if !ok || plates.Len() < 1 {
		return nil, fmt.Errorf("script: globe %s: plates must be an array of one or more elements", name)
	}

	n := plates.Len()
	for i := 1; i <= n; i++ {
		entry, ok := e.L.RawGetInt(plates, i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("script: globe %s: plate %d is not a table", name, i)
		}

		var def PlateDef
		var err error
		if def.Forward, err = e.vec3At(entry, 1); err != nil {
			return nil, fmt.Errorf("script: globe %s: plate %d: forward vector: %w", name, i, err)
		}
		if def.Up, err = e.vec3At(entry, 2); err != nil {
			return nil, fmt.Errorf("script: globe %s: plate %d: up vector: %w", name, i, err)
		}

		fov := e.L.RawGetInt(entry, 3)
		if fov.Type() != lua.LTNumber {
			return nil, fmt.Errorf("script: globe %s: plate %d: fov is not a number", name, i)
		}
		def.FovDeg = float64(fov.(lua.LNumber))
		if def.FovDeg <= 0 {
			return nil, fmt.Errorf("script: globe %s: plate %d: fov must be > 0", name, i)
		}

		gs.Plates = append(gs.Plates, def)
	}

	return gs, nil
}

// vec3At reads a 3-element numeric vector from entry[index].
func (e *Engine) vec3At(entry *lua.LTable, index int) (mathutil.Vec3, error) {
	var v mathutil.Vec3

	tbl, ok := e.L.RawGetInt(entry, index).(*lua.LTable)
	if !ok || tbl.Len() != 3 {
		return v, fmt.Errorf("not a 3d vector")
	}
	for j := 0; j < 3; j++ {
		elem := e.L.RawGetInt(tbl, j+1)
		if elem.Type() != lua.LTNumber {
			return v, fmt.Errorf("element %d not a number", j+1)
		}
		v[j] = float64(elem.(lua.LNumber))
	}
	return v, nil
}
