// Package script runs the user-programmable globe and lens scripts.
//
// Globes and lenses are Lua files. A globe script declares a "plates"
// array and may define a globe_plate selector; a lens script defines
// lens_forward and/or lens_inverse projection functions plus a handful of
// scalar settings. The package exposes the resolved functions as opaque
// handles and evaluates them with a tri-state result: success, "not
// representable" (a single nil), or a malformed-result error.
package script

import (
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"

	"fisheye-renderer/internal/mathutil"
)

// mathAliases exposes the Lua math library at global scope so projection
// formulas read like plain math.
const mathAliases = `
cos = math.cos
sin = math.sin
tan = math.tan
asin = math.asin
acos = math.acos
atan = math.atan
atan2 = math.atan2
log = math.log
log10 = function(x) return math.log(x)/math.log(10) end
abs = math.abs
sqrt = math.sqrt
exp = math.exp
pi = math.pi
tau = math.pi*2
pow = math.pow
sinh = function(x) return (math.exp(x)-math.exp(-x))/2 end
cosh = function(x) return (math.exp(x)+math.exp(-x))/2 end
tanh = function(x) local e=math.exp(2*x) return (e-1)/(e+1) end
`

// Engine owns one Lua state. Not safe for concurrent use; the frame loop
// is the only caller.
type Engine struct {
	L *lua.LState

	// plateRay resolves plate_to_ray calls against the loaded globe.
	plateRay func(plate int, u, v float64) (mathutil.Vec3, bool)
}

// New creates a Lua state with the math aliases and conversion builtins
// installed.
func New() (*Engine, error) {
	e := &Engine{L: lua.NewState()}

	if err := e.L.DoString(mathAliases); err != nil {
		e.L.Close()
		return nil, fmt.Errorf("script: install math aliases: %w", err)
	}

	e.L.SetGlobal("latlon_to_ray", e.L.NewFunction(e.luaLatLonToRay))
	e.L.SetGlobal("ray_to_latlon", e.L.NewFunction(e.luaRayToLatLon))
	e.L.SetGlobal("plate_to_ray", e.L.NewFunction(e.luaPlateToRay))

	return e, nil
}

// Close releases the Lua state.
func (e *Engine) Close() {
	e.L.Close()
}

// SetPlateRay registers the globe's UV-to-ray transform for use by lens
// scripts via the plate_to_ray builtin.
func (e *Engine) SetPlateRay(fn func(plate int, u, v float64) (mathutil.Vec3, bool)) {
	e.plateRay = fn
}

func (e *Engine) luaLatLonToRay(L *lua.LState) int {
	lat := float64(L.CheckNumber(1))
	lon := float64(L.CheckNumber(2))
	ray := mathutil.LatLonToRay(lat, lon)
	L.Push(lua.LNumber(ray[0]))
	L.Push(lua.LNumber(ray[1]))
	L.Push(lua.LNumber(ray[2]))
	return 3
}

func (e *Engine) luaRayToLatLon(L *lua.LState) int {
	ray := mathutil.Vec3{
		float64(L.CheckNumber(1)),
		float64(L.CheckNumber(2)),
		float64(L.CheckNumber(3)),
	}
	lat, lon := mathutil.RayToLatLon(ray)
	L.Push(lua.LNumber(lat))
	L.Push(lua.LNumber(lon))
	return 2
}

func (e *Engine) luaPlateToRay(L *lua.LState) int {
	plate := int(L.CheckNumber(1))
	u := float64(L.CheckNumber(2))
	v := float64(L.CheckNumber(3))

	if e.plateRay == nil {
		L.Push(lua.LNil)
		return 1
	}
	ray, ok := e.plateRay(plate, u, v)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(ray[0]))
	L.Push(lua.LNumber(ray[1]))
	L.Push(lua.LNumber(ray[2]))
	return 3
}

func (e *Engine) clearGlobals(names ...string) {
	for _, name := range names {
		e.L.SetGlobal(name, lua.LNil)
	}
}

func toRadians(v lua.LValue) float64 {
	if v.Type() != lua.LTNumber {
		return 0
	}
	return float64(v.(lua.LNumber)) * math.Pi / 180
}

func toNumber(v lua.LValue) float64 {
	if v.Type() != lua.LTNumber {
		return 0
	}
	return float64(v.(lua.LNumber))
}
