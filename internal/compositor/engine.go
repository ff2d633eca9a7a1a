// Package compositor orchestrates the per-frame pipeline: resize
// detection, lens map rebuilds, driving the scene renderer for the plates
// the lens actually references, and blitting the mapped pixels into the
// output frame.
package compositor

import (
	"fmt"
	"io"
	"os"

	"fisheye-renderer/internal/export"
	"fisheye-renderer/internal/globe"
	"fisheye-renderer/internal/lens"
	"fisheye-renderer/internal/mathutil"
	"fisheye-renderer/internal/palette"
	"fisheye-renderer/internal/script"
)

// Renderer paints one square camera view with the given absolute
// orientation and field of view into dst (size² palette indices, row
// order). It stands in for the 3D engine.
type Renderer interface {
	RenderView(forward, right, up mathutil.Vec3, fov float64, dst []uint8, size int)
}

// Engine is the explicit state for one fisheye view: the active globe,
// lens, builder, overlay settings, and view orientation. One writer (the
// frame loop), no locking.
type Engine struct {
	Script   *script.Engine
	Renderer Renderer

	Globe   globe.Globe
	Lens    lens.Lens
	Builder *lens.Builder
	Rubix   lens.RubixGrid

	GlobeDir string
	LensDir  string
	SaveDir  string

	// Console receives human-readable diagnostics (the non-fatal error
	// channel). Defaults to stderr.
	Console func(format string, args ...any)

	FisheyeEnabled bool

	// View orientation of the player camera; plate frames are relative
	// to this basis.
	ViewForward mathutil.Vec3
	ViewRight   mathutil.Vec3
	ViewUp      mathutil.Vec3

	BasePal palette.Palette

	fov        lens.FovConfig
	fovChanged bool

	tintTables [palette.MaxPlates][256]uint8
	prevW      int
	prevH      int
	scratch    []uint8
}

// New wires an engine with the historical defaults: 1/60 s builder
// budget, rubix grid 10/4/1 (disabled), identity view orientation.
func New(sc *script.Engine, r Renderer, pal palette.Palette, globeDir, lensDir, saveDir string) *Engine {
	e := &Engine{
		Script:         sc,
		Renderer:       r,
		Builder:        lens.NewBuilder(lens.DefaultBudget),
		Rubix:          lens.DefaultRubixGrid(),
		GlobeDir:       globeDir,
		LensDir:        lensDir,
		SaveDir:        saveDir,
		FisheyeEnabled: true,
		ViewForward:    mathutil.Vec3{0, 0, 1},
		ViewRight:      mathutil.Vec3{1, 0, 0},
		ViewUp:         mathutil.Vec3{0, 1, 0},
		BasePal:        pal,
		prevW:          -1,
		prevH:          -1,
	}
	e.Console = func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format, args...)
	}
	e.tintTables = palette.TintTables(&e.BasePal)
	return e
}

// SetFisheyeEnabled switches between the composited wide view and a
// plain single-camera render.
func (e *Engine) SetFisheyeEnabled(on bool) {
	e.FisheyeEnabled = on
}

// SetGlobe loads a new globe. On failure the previous globe's plates and
// buffer are retained but the globe is marked invalid and rendering stays
// disabled until a valid one loads.
func (e *Engine) SetGlobe(name string) error {
	e.Globe.Changed = true
	if err := e.Globe.Load(e.Script, e.GlobeDir, name); err != nil {
		e.Globe.Valid = false
		e.Globe.Name = ""
		e.Console("%v\n", err)
		e.Console("not a valid globe\n")
		return err
	}
	e.Globe.ApplyTints(e.tintTables)
	return nil
}

// SetLens loads a new lens and returns its onload command string for the
// surrounding system to execute. On failure the lens is marked invalid.
func (e *Engine) SetLens(name string) (onload string, err error) {
	e.Lens.Changed = true
	onload, err = e.Lens.Load(e.Script, e.LensDir, name, len(e.Globe.Plates))
	if err != nil {
		e.Lens.Valid = false
		e.Lens.Name = ""
		e.Console("%v\n", err)
		e.Console("not a valid lens\n")
		return "", err
	}
	return onload, nil
}

// SetHFov requests a horizontal field of view in degrees.
func (e *Engine) SetHFov(deg float64) {
	e.fov = lens.FovConfig{Mode: lens.ModeHFov, Deg: deg}
	e.fovChanged = true
}

// SetVFov requests a vertical field of view in degrees.
func (e *Engine) SetVFov(deg float64) {
	e.fov = lens.FovConfig{Mode: lens.ModeVFov, Deg: deg}
	e.fovChanged = true
}

// SetFitMode scales the lens from its nominal size instead of an explicit
// fov: ModeHFit, ModeVFit, or ModeFit.
func (e *Engine) SetFitMode(mode lens.FovMode) {
	e.fov = lens.FovConfig{Mode: mode}
	e.fovChanged = true
}

// SetRubixGrid reconfigures the overlay grid and forces a map rebuild so
// the tint map picks up the new geometry.
func (e *Engine) SetRubixGrid(numCells int, cellSize, padSize float64) {
	e.Rubix.NumCells = numCells
	e.Rubix.CellSize = cellSize
	e.Rubix.PadSize = padSize
	e.Lens.Changed = true
}

// ToggleRubix flips the overlay without touching the maps; tints are
// always built, only their application is gated.
func (e *Engine) ToggleRubix() bool {
	e.Rubix.Enabled = !e.Rubix.Enabled
	return e.Rubix.Enabled
}

// RequestSaveGlobe schedules a plate export for the next rendered frame,
// when the plates are guaranteed fresh.
func (e *Engine) RequestSaveGlobe(name string, withMargins bool) {
	e.Globe.Save = globe.SaveRequest{Pending: true, Name: name, WithMargins: withMargins}
}

// SetView updates the player camera basis used to orient the plates.
func (e *Engine) SetView(forward, right, up mathutil.Vec3) {
	e.ViewForward = forward
	e.ViewRight = right
	e.ViewUp = up
}

// WriteConfig serializes the active settings in the line-oriented console
// config format.
func (e *Engine) WriteConfig(w io.Writer) error {
	switch e.fov.Mode {
	case lens.ModeHFov:
		if e.fov.Deg != 0 {
			fmt.Fprintf(w, "hfov %f\n", e.fov.Deg)
		}
	case lens.ModeVFov:
		if e.fov.Deg != 0 {
			fmt.Fprintf(w, "vfov %f\n", e.fov.Deg)
		}
	case lens.ModeHFit:
		fmt.Fprintf(w, "hfit\n")
	case lens.ModeVFit:
		fmt.Fprintf(w, "vfit\n")
	case lens.ModeFit:
		fmt.Fprintf(w, "fit\n")
	}

	enabled := 0
	if e.FisheyeEnabled {
		enabled = 1
	}
	fmt.Fprintf(w, "fisheye %d\n", enabled)
	fmt.Fprintf(w, "lens %q\n", e.Lens.Name)
	fmt.Fprintf(w, "globe %q\n", e.Globe.Name)
	_, err := fmt.Fprintf(w, "rubixgrid %d %f %f\n", e.Rubix.NumCells, e.Rubix.CellSize, e.Rubix.PadSize)
	return err
}

// RenderFrame runs one frame of the pipeline into f.
func (e *Engine) RenderFrame(f *Frame) {
	if !e.FisheyeEnabled {
		e.renderPlain(f)
		return
	}

	w, h := f.W, f.H
	platesize := min(w, h)
	sizechange := w != e.prevW || h != e.prevH

	// Buffers are only reallocated when the output size actually changes.
	if sizechange {
		e.Globe.Resize(platesize)
		e.Lens.Resize(w, h)
	}

	if sizechange || e.fovChanged || e.Lens.Changed || e.Globe.Changed {
		e.Lens.ClearMaps()

		// Reload the lens so script settings derived from globe state
		// (e.g. lens_width = numplates) re-evaluate.
		if e.Lens.Name != "" {
			if _, err := e.Lens.Load(e.Script, e.LensDir, e.Lens.Name, len(e.Globe.Plates)); err != nil {
				e.Lens.Valid = false
				e.Lens.Name = ""
				e.Console("%v\n", err)
				e.Console("not a valid lens\n")
			}
		}
		e.createLensmap()
	} else if e.Builder.Working() {
		e.Builder.Resume()
	}

	e.renderPlates(platesize)

	if e.Globe.Save.Pending {
		e.saveGlobe()
	}

	e.blit(f)

	e.prevW, e.prevH = w, h
	e.Lens.Changed = false
	e.Globe.Changed = false
	e.fovChanged = false
}

// createLensmap starts a fresh build if the configuration allows one.
func (e *Engine) createLensmap() {
	e.Builder.Cancel()

	if !e.Lens.Valid || !e.Globe.Valid {
		return
	}
	if err := e.Lens.DetermineScale(e.Script, e.fov); err != nil {
		e.Console("%v\n", err)
		return
	}

	e.Globe.MarkAllUnused()

	switch e.Lens.Kind {
	case lens.KindForward:
		e.Console("using forward map\n")
	case lens.KindInverse:
		e.Console("using inverse map\n")
	default:
		e.Console("no inverse or forward map being used\n")
		return
	}

	e.Builder.Start(&e.Lens, &e.Globe, e.Script, e.Rubix, e.Console)
}

// renderPlates drives the external renderer for every plate the lens map
// references, composing each plate frame with the view orientation.
func (e *Engine) renderPlates(platesize int) {
	for i := range e.Globe.Plates {
		p := &e.Globe.Plates[i]
		if !p.InUse {
			continue
		}
		e.Renderer.RenderView(
			e.absolute(p.Forward),
			e.absolute(p.Right),
			e.absolute(p.Up),
			p.Fov,
			e.Globe.PlatePixels(i),
			platesize,
		)
	}
}

// absolute maps a plate-relative vector into world space using the view
// basis: x is right, y is up, z is forward.
func (e *Engine) absolute(v mathutil.Vec3) mathutil.Vec3 {
	return e.ViewRight.Scale(v[0]).
		Add(e.ViewUp.Scale(v[1])).
		Add(e.ViewForward.Scale(v[2]))
}

// blit copies every mapped lens pixel from its plate into the frame,
// applying the tint palette when the overlay is enabled.
func (e *Engine) blit(f *Frame) {
	for y := 0; y < e.Lens.HeightPx && y < f.H; y++ {
		row := y * e.Lens.WidthPx
		out := y * f.Stride
		for x := 0; x < e.Lens.WidthPx && x < f.W; x++ {
			ref := e.Lens.Map[row+x]
			if ref.Plate < 0 {
				continue
			}
			c := e.Globe.PixelAt(int(ref.Plate), int(ref.X), int(ref.Y))
			if e.Rubix.Enabled {
				if tint := e.Lens.Tints[row+x]; tint != lens.NoTint {
					c = e.Globe.Plates[tint].Palette[c]
				}
			}
			f.Pix[out+x] = c
		}
	}
}

// renderPlain draws a single un-composited camera view centered in the
// frame, used while fisheye is disabled.
func (e *Engine) renderPlain(f *Frame) {
	size := min(f.W, f.H)
	if size <= 0 {
		return
	}
	if len(e.scratch) != size*size {
		e.scratch = make([]uint8, size*size)
	}

	fov := mathutil.Deg2Rad(90)
	if e.fov.Mode == lens.ModeHFov && e.fov.Deg > 0 && e.fov.Deg < 180 {
		fov = mathutil.Deg2Rad(e.fov.Deg)
	}
	e.Renderer.RenderView(e.ViewForward, e.ViewRight, e.ViewUp, fov, e.scratch, size)

	x0 := (f.W - size) / 2
	y0 := (f.H - size) / 2
	for y := 0; y < size; y++ {
		copy(f.Pix[(y0+y)*f.Stride+x0:(y0+y)*f.Stride+x0+size], e.scratch[y*size:(y+1)*size])
	}
}

// saveGlobe services a pending plate export request.
func (e *Engine) saveGlobe() {
	req := e.Globe.Save
	e.Globe.Save = globe.SaveRequest{}

	paths, err := export.SaveGlobeViews(e.SaveDir, req.Name, &e.Globe, req.WithMargins, &e.BasePal)
	if err != nil {
		e.Console("saveglobe: %v\n", err)
		return
	}
	for _, p := range paths {
		e.Console("Wrote %s\n", p)
	}
}
