// Package palette handles the 256-color base palette shared by every
// rendered view, and the per-plate tint tables used by the rubix overlay.
package palette

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "github.com/ftrvxmtrx/tga"
)

// Palette is a 256-entry RGB color table.
type Palette [256][3]uint8

// Load reads a palette from disk. Two formats are accepted: a raw 768-byte
// RGB dump, or any registered image format (TGA/PNG/JPEG) whose first 256
// pixels in row order become the palette entries.
func Load(path string) (Palette, error) {
	var p Palette

	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("palette: read %s: %w", path, err)
	}

	if len(raw) == 768 {
		for i := 0; i < 256; i++ {
			p[i] = [3]uint8{raw[i*3], raw[i*3+1], raw[i*3+2]}
		}
		return p, nil
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return p, fmt.Errorf("palette: decode %s: %w", path, err)
	}

	b := img.Bounds()
	if b.Dx()*b.Dy() < 256 {
		return p, fmt.Errorf("palette: image %s has fewer than 256 pixels", path)
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y && i < 256; y++ {
		for x := b.Min.X; x < b.Max.X && i < 256; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			p[i] = [3]uint8{c.R, c.G, c.B}
			i++
		}
	}
	return p, nil
}

// Default returns a grayscale ramp so the engine can run without asset files.
func Default() Palette {
	var p Palette
	for i := range p {
		v := uint8(i)
		p[i] = [3]uint8{v, v, v}
	}
	return p
}

// Closest returns the palette index nearest to the given color by squared
// RGB distance. Ties resolve to the lowest index.
func (p *Palette) Closest(r, g, b uint8) uint8 {
	minDist := 256 * 256 * 256
	minIndex := 0
	for i := 0; i < 256; i++ {
		dr := int(p[i][0]) - int(r)
		dg := int(p[i][1]) - int(g)
		db := int(p[i][2]) - int(b)
		dist := dr*dr + dg*dg + db*db
		if dist < minDist {
			minDist = dist
			minIndex = i
		}
	}
	return uint8(minIndex)
}
