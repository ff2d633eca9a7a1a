// Package globe models the set of camera plates covering the directions
// around the viewpoint, and the pixel atlas their renders land in.
package globe

import (
	"fmt"
	"math"

	"fisheye-renderer/internal/mathutil"
	"fisheye-renderer/internal/palette"
	"fisheye-renderer/internal/script"
)

// Plate is one square camera view with its own orthonormal frame and fov.
type Plate struct {
	Forward mathutil.Vec3
	Right   mathutil.Vec3
	Up      mathutil.Vec3

	// Fov in radians, always > 0.
	Fov float64

	// Dist is the projection distance for a unit-square image plane:
	// 0.5 / tan(Fov/2).
	Dist float64

	// Palette is this plate's tint remap table for the rubix overlay.
	Palette [256]uint8

	// InUse marks plates referenced by the current lens map; only these
	// are rendered each frame.
	InUse bool
}

// SaveRequest is a pending request to export the globe plates.
type SaveRequest struct {
	Pending     bool
	Name        string
	WithMargins bool
}

// Globe is the active set of plates plus their shared pixel atlas.
type Globe struct {
	Name    string
	Valid   bool
	Changed bool

	Plates []Plate

	// PlateSize is the square edge of each rendered plate in pixels.
	PlateSize int

	// Pixels holds all plates' renders back to back,
	// len = MaxPlates * PlateSize².
	Pixels []uint8

	Save SaveRequest

	selector *script.Func
	sc       *script.Engine
}

// Load runs the globe script and swaps the plate set in. Validation is
// all-or-nothing: on error the previous plates, buffer, and name are left
// untouched and the caller decides how to surface the failure.
func (g *Globe) Load(sc *script.Engine, dir, name string) error {
	gs, err := sc.LoadGlobe(dir, name)
	if err != nil {
		return err
	}
	if len(gs.Plates) > palette.MaxPlates {
		return fmt.Errorf("globe: %s declares %d plates, max is %d", name, len(gs.Plates), palette.MaxPlates)
	}

	plates := make([]Plate, len(gs.Plates))
	for i, def := range gs.Plates {
		p := &plates[i]
		p.Forward = def.Forward.Normalize()
		p.Right = def.Up.Cross(p.Forward).Normalize()
		p.Up = p.Forward.Cross(p.Right)
		p.Fov = mathutil.Deg2Rad(def.FovDeg)
		p.Dist = 0.5 / math.Tan(p.Fov/2)
	}

	g.Plates = plates
	g.Name = name
	g.Valid = true
	g.Changed = true
	g.selector = gs.Selector
	g.sc = sc

	sc.SetPlateRay(func(plate int, u, v float64) (mathutil.Vec3, bool) {
		if plate < 0 || plate >= len(g.Plates) {
			return mathutil.Vec3{}, false
		}
		return g.UVToRay(plate, u, v), true
	})

	return nil
}

// PlateForRay returns the index of the plate owning a view direction, or
// -1 when a custom selector fails or names a plate that does not exist.
// Without a selector the plate whose forward vector is closest wins, ties
// to the lowest index.
func (g *Globe) PlateForRay(ray mathutil.Vec3) int {
	if len(g.Plates) == 0 {
		return -1
	}

	if g.selector != nil {
		idx, ok := g.sc.EvalPlate(g.selector, ray)
		if !ok || idx < 0 || idx >= len(g.Plates) {
			return -1
		}
		return idx
	}

	best := 0
	maxDp := -2.0
	for i := range g.Plates {
		dp := ray.Dot(g.Plates[i].Forward)
		if dp > maxDp {
			maxDp = dp
			best = i
		}
	}
	return best
}

// UVToRay maps texture-space (0,1)² on a plate to a unit view direction.
// (0.5, 0.5) maps exactly to the plate's forward vector.
func (g *Globe) UVToRay(plate int, u, v float64) mathutil.Vec3 {
	p := &g.Plates[plate]
	u -= 0.5
	v -= 0.5
	v = -v

	ray := p.Forward.Scale(p.Dist).
		Add(p.Right.Scale(u)).
		Add(p.Up.Scale(v))
	return ray.Normalize()
}

// RayToUV projects a view direction onto a plate's texture space.
// inBounds is false when the ray lands outside (0,1)².
func (g *Globe) RayToUV(plate int, ray mathutil.Vec3) (u, v float64, inBounds bool) {
	p := &g.Plates[plate]
	x := p.Right.Dot(ray)
	y := p.Up.Dot(ray)
	z := p.Forward.Dot(ray)

	u = x/z*p.Dist + 0.5
	v = -y/z*p.Dist + 0.5
	return u, v, u >= 0 && u <= 1 && v >= 0 && v <= 1
}

// ApplyTints installs the per-plate overlay remap tables.
func (g *Globe) ApplyTints(tables [palette.MaxPlates][256]uint8) {
	for i := range g.Plates {
		g.Plates[i].Palette = tables[i]
	}
}

// MarkAllUnused clears every plate's in-use flag ahead of a map rebuild.
func (g *Globe) MarkAllUnused() {
	for i := range g.Plates {
		g.Plates[i].InUse = false
	}
}
