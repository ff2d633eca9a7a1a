package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fisheye-renderer/internal/compositor"
	"fisheye-renderer/internal/config"
	"fisheye-renderer/internal/export"
	"fisheye-renderer/internal/lens"
	"fisheye-renderer/internal/mathutil"
	"fisheye-renderer/internal/palette"
	"fisheye-renderer/internal/scene"
	"fisheye-renderer/internal/script"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.json file")
	globeName := flag.String("globe", "", "Globe script name (default: cube)")
	lensName := flag.String("lens", "", "Lens script name (default: panini)")
	hfov := flag.Float64("hfov", 0, "Horizontal field of view in degrees")
	vfov := flag.Float64("vfov", 0, "Vertical field of view in degrees")
	fit := flag.String("fit", "", "Fit mode: h, v, or both")
	width := flag.Int("width", 0, "Output width in pixels (default: 640)")
	height := flag.Int("height", 0, "Output height in pixels (default: 400)")
	frames := flag.Int("frames", 0, "Number of frames, camera spins 360° across them (default: 1)")
	scale := flag.Int("scale", 0, "Integer upscale factor for output images (default: 1)")
	outputDir := flag.String("output", "", "Output directory (default: out)")
	rubix := flag.Bool("rubix", false, "Enable the rubix debug grid overlay")
	saveGlobe := flag.Bool("saveglobe", false, "Also export each camera plate as WebP")
	margins := flag.Bool("margins", false, "Keep plate margins in the globe export")
	writeConfig := flag.Bool("writeconfig", false, "Print the active settings in config format and exit")

	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// Was any fov requested explicitly? If not, the lens script's onload
	// command gets to pick one.
	fovRequested := *hfov > 0 || *vfov > 0 || *fit != "" ||
		cfg.HFov > 0 || cfg.VFov > 0 || cfg.Fit != ""

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		Globe:     *globeName,
		Lens:      *lensName,
		HFov:      *hfov,
		VFov:      *vfov,
		Fit:       *fit,
		Width:     *width,
		Height:    *height,
		Frames:    *frames,
		Scale:     *scale,
		OutputDir: *outputDir,
		Rubix:     *rubix,
	})

	pal := palette.Default()
	if cfg.PalettePath != "" {
		var err error
		pal, err = palette.Load(cfg.PalettePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading palette: %v\n", err)
			os.Exit(1)
		}
	}

	sc, err := script.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sc.Close()

	eng := compositor.New(sc, scene.Default(), pal, cfg.GlobeDir, cfg.LensDir, cfg.OutputDir)

	// Offline render: let each map build finish within a single frame.
	eng.Builder.Budget = time.Hour

	eng.SetRubixGrid(cfg.RubixCells, cfg.RubixCellSize, cfg.RubixPadSize)
	if cfg.Rubix {
		eng.ToggleRubix()
	}

	if err := eng.SetGlobe(cfg.Globe); err != nil {
		os.Exit(1)
	}
	onload, err := eng.SetLens(cfg.Lens)
	if err != nil {
		os.Exit(1)
	}

	if !fovRequested && onload != "" {
		runCommands(eng, onload)
	} else {
		applyFov(eng, cfg)
	}

	if *writeConfig {
		if err := eng.WriteConfig(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Fisheye compositor\n")
	fmt.Printf("Globe: %s, Lens: %s\n", cfg.Globe, cfg.Lens)
	fmt.Printf("Frames: %d at %dx%d, Output: %s\n", cfg.Frames, cfg.Width, cfg.Height, cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	start := time.Now()

	if *saveGlobe {
		eng.RequestSaveGlobe(cfg.Globe, *margins)
	}

	frame := compositor.NewFrame(cfg.Width, cfg.Height)
	for i := 0; i < cfg.Frames; i++ {
		yaw := 2 * math.Pi * float64(i) / float64(cfg.Frames)
		eng.SetView(
			mathutil.Vec3{math.Sin(yaw), 0, math.Cos(yaw)},
			mathutil.Vec3{math.Cos(yaw), 0, -math.Sin(yaw)},
			mathutil.Vec3{0, 1, 0},
		)
		eng.RenderFrame(frame)

		path := filepath.Join(cfg.OutputDir, fmt.Sprintf("fisheye_%04d.webp", i))
		if err := saveFrame(path, frame, &pal, cfg.Scale); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
	}

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", time.Since(start).Seconds())
}

func saveFrame(path string, f *compositor.Frame, pal *palette.Palette, scale int) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	err = export.SaveFrame(out, f.Pix, f.W, f.H, f.Stride, pal, scale)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

// applyFov forwards the resolved fov request to the engine.
func applyFov(eng *compositor.Engine, cfg config.Config) {
	switch {
	case cfg.Fit == "h":
		eng.SetFitMode(lens.ModeHFit)
	case cfg.Fit == "v":
		eng.SetFitMode(lens.ModeVFit)
	case cfg.Fit != "":
		eng.SetFitMode(lens.ModeFit)
	case cfg.VFov > 0:
		eng.SetVFov(cfg.VFov)
	case cfg.HFov > 0:
		eng.SetHFov(cfg.HFov)
	}
}

// runCommands executes a lens onload string, a semicolon-separated list
// of console commands such as "hfov 180" or "vfit".
func runCommands(eng *compositor.Engine, cmds string) {
	for _, cmd := range strings.Split(cmds, ";") {
		fields := strings.Fields(cmd)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "hfov":
			if deg, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
				eng.SetHFov(deg)
			}
		case "vfov":
			if deg, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
				eng.SetVFov(deg)
			}
		case "hfit":
			eng.SetFitMode(lens.ModeHFit)
		case "vfit":
			eng.SetFitMode(lens.ModeVFit)
		case "fit":
			eng.SetFitMode(lens.ModeFit)
		default:
			fmt.Fprintf(os.Stderr, "onload: unknown command %q\n", fields[0])
		}
	}
}
