// Package lens holds the 2D projection model mapping view directions to
// output pixels, and the incremental builder that populates its pixel map.
package lens

import (
	"fisheye-renderer/internal/script"
)

// MapKind selects which projection direction drives the map build.
type MapKind int

const (
	KindNone MapKind = iota
	KindInverse
	KindForward
)

// PixelRef names one plate texel. Plate is -1 for unmapped pixels.
type PixelRef struct {
	Plate int16
	X, Y  int16
}

// NoTint is the tint-map entry for pixels outside any rubix cell.
const NoTint = 0xFF

// Lens is the active projection: its script-derived settings plus the
// per-pixel plate map the builder fills in.
type Lens struct {
	Name    string
	Valid   bool
	Changed bool

	Kind MapKind

	// Nominal projection size in lens units; zero when the script leaves
	// it unspecified.
	Width  float64
	Height float64

	// Scale in lens units per pixel, > 0 once derived.
	Scale float64

	// FOV limits in radians; zero when unspecified.
	MaxHFov float64
	MaxVFov float64

	Forward *script.Func
	Inverse *script.Func

	// Pixel extent of the output view.
	WidthPx  int
	HeightPx int

	// Map references one plate texel per output pixel; Tints carries the
	// owning plate index for rubix-overlay pixels, NoTint elsewhere.
	// Both are WidthPx*HeightPx, row order.
	Map   []PixelRef
	Tints []uint8
}

// Load runs the lens script and applies its settings. The returned string
// is the script's optional onload command for the surrounding system.
// On error the lens is left unchanged; the caller marks it invalid.
func (l *Lens) Load(sc *script.Engine, dir, name string, numPlates int) (onload string, err error) {
	ls, err := sc.LoadLens(dir, name, numPlates)
	if err != nil {
		return "", err
	}

	kind := KindNone
	if ls.Inverse != nil {
		kind = KindInverse
	} else if ls.Forward != nil {
		kind = KindForward
	}
	switch ls.MapPref {
	case script.PrefForward:
		kind = KindForward
	case script.PrefInverse:
		kind = KindInverse
	}

	l.Kind = kind
	l.Forward = ls.Forward
	l.Inverse = ls.Inverse
	l.MaxHFov = ls.MaxHFov
	l.MaxVFov = ls.MaxVFov
	l.Width = ls.Width
	l.Height = ls.Height
	l.Name = name
	l.Valid = true
	l.Changed = true

	return ls.OnLoad, nil
}

// Resize reallocates both maps for a new output extent and clears them.
func (l *Lens) Resize(w, h int) {
	l.WidthPx = w
	l.HeightPx = h
	l.Map = make([]PixelRef, w*h)
	l.Tints = make([]uint8, w*h)
	l.ClearMaps()
}

// ClearMaps empties every pixel reference and tint entry.
func (l *Lens) ClearMaps() {
	for i := range l.Map {
		l.Map[i] = PixelRef{Plate: -1}
	}
	for i := range l.Tints {
		l.Tints[i] = NoTint
	}
}
