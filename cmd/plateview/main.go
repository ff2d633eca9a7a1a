// plateview renders every camera plate of a globe script straight to
// WebP, bypassing the lens pipeline. Useful when writing globe scripts.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"fisheye-renderer/internal/export"
	"fisheye-renderer/internal/globe"
	"fisheye-renderer/internal/palette"
	"fisheye-renderer/internal/scene"
	"fisheye-renderer/internal/script"
)

func main() {
	globeDir := flag.String("dir", filepath.Join("scripts", "globes"), "Globe script directory")
	name := flag.String("globe", "cube", "Globe script name")
	size := flag.Int("size", 400, "Plate size in pixels")
	outputDir := flag.String("output", "out", "Output directory")
	margins := flag.Bool("margins", false, "Keep plate margins instead of masking them")
	palettePath := flag.String("palette", "", "Palette file (raw 768-byte RGB or image)")

	flag.Parse()

	pal := palette.Default()
	if *palettePath != "" {
		var err error
		pal, err = palette.Load(*palettePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	sc, err := script.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sc.Close()

	var g globe.Globe
	if err := g.Load(sc, *globeDir, *name); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	g.Resize(*size)

	r := scene.Default()
	for i := range g.Plates {
		p := &g.Plates[i]
		r.RenderView(p.Forward, p.Right, p.Up, p.Fov, g.PlatePixels(i), *size)
	}

	paths, err := export.SaveGlobeViews(*outputDir, *name, &g, *margins, &pal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, p := range paths {
		fmt.Printf("Wrote %s\n", p)
	}
}
