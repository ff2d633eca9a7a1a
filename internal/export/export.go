// Package export writes globe plates and composited frames as WebP.
package export

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"

	"fisheye-renderer/internal/globe"
	"fisheye-renderer/internal/palette"
)

// marginIndex is the palette index margins are painted with when a plate
// is exported without them.
const marginIndex = 0xFE

// PlateImage converts one plate's render to NRGBA through the base
// palette. Unless withMargins is set, texels whose center ray is owned by
// another plate are replaced with a marker color, leaving only the region
// this plate contributes to the composite.
func PlateImage(g *globe.Globe, plate int, withMargins bool, pal *palette.Palette) *image.NRGBA {
	size := g.PlateSize
	img := image.NewNRGBA(image.Rect(0, 0, size, size))

	for y := 0; y < size; y++ {
		v := float64(y) / float64(size)
		for x := 0; x < size; x++ {
			u := float64(x) / float64(size)

			col := g.PixelAt(plate, x, y)
			if !withMargins {
				ray := g.UVToRay(plate, u, v)
				if g.PlateForRay(ray) != plate {
					col = marginIndex
				}
			}

			rgb := pal[col]
			i := img.PixOffset(x, y)
			img.Pix[i] = rgb[0]
			img.Pix[i+1] = rgb[1]
			img.Pix[i+2] = rgb[2]
			img.Pix[i+3] = 0xFF
		}
	}
	return img
}

// SavePlate encodes one plate as WebP.
func SavePlate(w io.Writer, g *globe.Globe, plate int, withMargins bool, pal *palette.Palette) error {
	img := PlateImage(g, plate, withMargins, pal)
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("export: webp encode plate %d: %w", plate, err)
	}
	return nil
}

// SaveGlobeViews writes every plate of the globe as <name><index>.webp
// under dir and returns the written paths.
func SaveGlobeViews(dir, name string, g *globe.Globe, withMargins bool, pal *palette.Palette) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}

	var paths []string
	for i := range g.Plates {
		path := filepath.Join(dir, fmt.Sprintf("%s%d.webp", name, i))
		f, err := os.Create(path)
		if err != nil {
			return paths, fmt.Errorf("export: create %s: %w", path, err)
		}
		err = SavePlate(f, g, i, withMargins, pal)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// FrameImage converts a paletted frame to NRGBA through the base palette.
func FrameImage(pix []uint8, w, h, stride int, pal *palette.Palette) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgb := pal[pix[y*stride+x]]
			i := img.PixOffset(x, y)
			img.Pix[i] = rgb[0]
			img.Pix[i+1] = rgb[1]
			img.Pix[i+2] = rgb[2]
			img.Pix[i+3] = 0xFF
		}
	}
	return img
}

// SaveFrame encodes a frame as WebP, upscaled by an integer factor with
// nearest-neighbor sampling so the paletted look survives.
func SaveFrame(w io.Writer, pix []uint8, width, height, stride int, pal *palette.Palette, scale int) error {
	img := FrameImage(pix, width, height, stride, pal)

	if scale > 1 {
		dst := image.NewNRGBA(image.Rect(0, 0, width*scale, height*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}

	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("export: webp encode frame: %w", err)
	}
	return nil
}
