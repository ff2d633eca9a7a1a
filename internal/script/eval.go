package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"fisheye-renderer/internal/mathutil"
)

// Func is an opaque handle to a projection function resolved at load time.
// It stays valid for the lifetime of the script that defined it.
type Func struct {
	name string
	fn   *lua.LFunction
}

// EvalForward maps a view direction to a lens coordinate. ok is false when
// the script reports the ray as not representable (a single nil return).
// A non-nil error means the result was malformed and the caller should
// abort whatever sweep is in progress.
func (e *Engine) EvalForward(f *Func, ray mathutil.Vec3) (x, y float64, ok bool, err error) {
	vals, err := e.call(f, lua.LNumber(ray[0]), lua.LNumber(ray[1]), lua.LNumber(ray[2]))
	if err != nil {
		return 0, 0, false, err
	}

	switch len(vals) {
	case 2:
		if vals[0].Type() != lua.LTNumber || vals[1].Type() != lua.LTNumber {
			return 0, 0, false, fmt.Errorf("script: %s returned a non-number value for x,y", f.name)
		}
		return float64(vals[0].(lua.LNumber)), float64(vals[1].(lua.LNumber)), true, nil
	case 1:
		if vals[0] == lua.LNil {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("script: %s returned a single non-nil value", f.name)
	default:
		return 0, 0, false, fmt.Errorf("script: %s returned %d values instead of 2", f.name, len(vals))
	}
}

// EvalInverse maps a lens coordinate to a view direction, normalized to
// unit length. Result contract matches EvalForward.
func (e *Engine) EvalInverse(f *Func, x, y float64) (ray mathutil.Vec3, ok bool, err error) {
	vals, err := e.call(f, lua.LNumber(x), lua.LNumber(y))
	if err != nil {
		return ray, false, err
	}

	switch len(vals) {
	case 3:
		for _, v := range vals {
			if v.Type() != lua.LTNumber {
				return ray, false, fmt.Errorf("script: %s returned a non-number value for x,y,z", f.name)
			}
		}
		ray = mathutil.Vec3{
			float64(vals[0].(lua.LNumber)),
			float64(vals[1].(lua.LNumber)),
			float64(vals[2].(lua.LNumber)),
		}.Normalize()
		return ray, true, nil
	case 1:
		if vals[0] == lua.LNil {
			return ray, false, nil
		}
		return ray, false, fmt.Errorf("script: %s returned a single non-nil value", f.name)
	default:
		return ray, false, fmt.Errorf("script: %s returned %d values instead of 3", f.name, len(vals))
	}
}

// EvalPlate asks a custom selector which plate owns a ray. ok is false on
// any failure; the selector is best-effort and never aborts a build.
func (e *Engine) EvalPlate(f *Func, ray mathutil.Vec3) (plate int, ok bool) {
	vals, err := e.call(f, lua.LNumber(ray[0]), lua.LNumber(ray[1]), lua.LNumber(ray[2]))
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	last := vals[len(vals)-1]
	if last.Type() != lua.LTNumber {
		return 0, false
	}
	return int(last.(lua.LNumber)), true
}

// call invokes fn with the given arguments and returns all result values.
func (e *Engine) call(f *Func, args ...lua.LValue) ([]lua.LValue, error) {
	if f == nil || f.fn == nil {
		return nil, fmt.Errorf("script: no function bound")
	}

	top := e.L.GetTop()
	err := e.L.CallByParam(lua.P{
		Fn:      f.fn,
		NRet:    lua.MultRet,
		Protect: true,
	}, args...)
	if err != nil {
		e.L.SetTop(top)
		return nil, fmt.Errorf("script: %s: %w", f.name, err)
	}

	n := e.L.GetTop() - top
	vals := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		vals[i] = e.L.Get(top + 1 + i)
	}
	e.L.SetTop(top)
	return vals, nil
}
