// Package scene provides a built-in procedural environment renderer. It
// stands in for the real 3D engine so the pipeline can run headless: a
// banded sky over a checkered ground plane, shaded purely from ray
// direction, so every camera orientation renders deterministically.
package scene

import (
	"math"

	"fisheye-renderer/internal/mathutil"
)

// Grid is a paletted sky-and-checkerboard renderer.
type Grid struct {
	Sky     uint8
	Horizon uint8
	Ground1 uint8
	Ground2 uint8
}

// Default palette indices chosen for the grayscale fallback palette.
func Default() Grid {
	return Grid{Sky: 180, Horizon: 120, Ground1: 80, Ground2: 40}
}

// RenderView fills dst (size² indices, row order) with the view through a
// pinhole camera of the given orientation and fov.
func (s Grid) RenderView(forward, right, up mathutil.Vec3, fov float64, dst []uint8, size int) {
	dist := 0.5 / math.Tan(fov/2)
	for py := 0; py < size; py++ {
		v := 0.5 - (float64(py)+0.5)/float64(size)
		row := py * size
		for px := 0; px < size; px++ {
			u := (float64(px)+0.5)/float64(size) - 0.5
			ray := forward.Scale(dist).
				Add(right.Scale(u)).
				Add(up.Scale(v)).
				Normalize()
			dst[row+px] = s.shade(ray)
		}
	}
}

func (s Grid) shade(ray mathutil.Vec3) uint8 {
	const horizonBand = 0.02

	switch {
	case ray[1] > horizonBand:
		return s.Sky
	case ray[1] < -horizonBand:
		// intersect the ground plane one unit below the eye
		t := -1 / ray[1]
		gx := math.Floor(ray[0] * t)
		gz := math.Floor(ray[2] * t)
		if int(gx+gz)&1 == 0 {
			return s.Ground1
		}
		return s.Ground2
	default:
		return s.Horizon
	}
}
