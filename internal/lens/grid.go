package lens

import "math"

// RubixGrid configures the debug overlay that tints a periodic grid of
// cells on every plate, revealing how the lens distorts them.
type RubixGrid struct {
	Enabled  bool
	NumCells int
	CellSize float64
	PadSize  float64
}

// DefaultRubixGrid matches the historical defaults: 10 cells of 4 units
// separated by 1 unit of padding.
func DefaultRubixGrid() RubixGrid {
	return RubixGrid{NumCells: 10, CellSize: 4, PadSize: 1}
}

// Tinted reports whether a plate-local pixel falls inside a grid cell.
// A plate spans NumCells*(PadSize+CellSize)+PadSize grid units; pixels
// whose offset modulo the repeating period lands in the leading pad band
// on either axis stay untinted.
func (r RubixGrid) Tinted(px, py, platesize int) bool {
	block := r.PadSize + r.CellSize
	units := float64(r.NumCells)*block + r.PadSize
	unitPx := float64(platesize) / units

	ux := float64(px) / unitPx
	uy := float64(py) / unitPx

	onGrid := math.Mod(ux, block) < r.PadSize || math.Mod(uy, block) < r.PadSize
	return !onGrid
}
