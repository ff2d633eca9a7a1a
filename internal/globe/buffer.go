package globe

import "fisheye-renderer/internal/palette"

// Resize reallocates the plate atlas for a new plate edge size. The caller
// gates this on actual screen-size changes so the cost is amortized.
func (g *Globe) Resize(platesize int) {
	g.PlateSize = platesize
	g.Pixels = make([]uint8, palette.MaxPlates*platesize*platesize)
}

// PlatePixels returns the backing slice of one plate's render,
// PlateSize² bytes in row order.
func (g *Globe) PlatePixels(plate int) []uint8 {
	n := g.PlateSize * g.PlateSize
	return g.Pixels[plate*n : (plate+1)*n]
}

// PixelAt reads one palette index from a plate's render. Coordinates must
// be in range; the lens map only ever stores bounds-checked references.
func (g *Globe) PixelAt(plate, x, y int) uint8 {
	return g.Pixels[plate*g.PlateSize*g.PlateSize+y*g.PlateSize+x]
}
