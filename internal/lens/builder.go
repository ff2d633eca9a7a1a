package lens

import (
	"time"

	"fisheye-renderer/internal/globe"
	"fisheye-renderer/internal/mathutil"
	"fisheye-renderer/internal/script"
)

// buildPhase is the builder's explicit state machine.
type buildPhase int

const (
	phaseIdle buildPhase = iota
	phaseInverse
	phaseForward
	phaseDone
)

// DefaultBudget is the wall-clock slice one Resume call may spend.
const DefaultBudget = time.Second / 60

// Builder populates a lens map incrementally. Map building can be slow
// (every pixel or texel goes through a script function), so instead of
// blocking the frame loop each Resume call runs until its time budget
// elapses, then suspends with enough cursor state to continue next frame.
// Progress is row-granular: a resume always completes at least one row
// and overruns the budget by at most one.
type Builder struct {
	Budget time.Duration

	phase buildPhase

	// row is the next output row (inverse) or the current texel row
	// (forward); plate is the forward sweep's current plate.
	row   int
	plate int

	// top and bot hold the screen-projected corner points of the current
	// and previous texel row, 2*(platesize+1) ints as x,y pairs.
	top []int32
	bot []int32

	lens    *Lens
	globe   *globe.Globe
	sc      *script.Engine
	grid    RubixGrid
	console func(format string, args ...any)
}

// NewBuilder returns an idle builder. A zero budget is legal and means
// one row of progress per resume.
func NewBuilder(budget time.Duration) *Builder {
	return &Builder{Budget: budget}
}

// Working reports whether a build is suspended mid-way.
func (b *Builder) Working() bool {
	return b.phase == phaseInverse || b.phase == phaseForward
}

// Cancel discards any in-progress build and releases the scan-line
// buffers. Safe to call in any state.
func (b *Builder) Cancel() {
	b.phase = phaseIdle
	b.top = nil
	b.bot = nil
}

// Start begins a fresh build for the lens's map kind and runs the first
// time slice. The caller must have derived a positive scale and cleared
// the maps; a globe with no plates or a kind of None leaves the builder
// idle.
func (b *Builder) Start(l *Lens, g *globe.Globe, sc *script.Engine, grid RubixGrid, console func(string, ...any)) {
	b.Cancel()
	if len(g.Plates) == 0 || l.Scale <= 0 {
		return
	}

	b.lens = l
	b.globe = g
	b.sc = sc
	b.grid = grid
	b.console = console

	switch l.Kind {
	case KindInverse:
		b.phase = phaseInverse
		b.row = l.HeightPx - 1
	case KindForward:
		b.phase = phaseForward
		b.plate = 0
		b.row = g.PlateSize - 1
		b.top = make([]int32, 2*(g.PlateSize+1))
		b.bot = make([]int32, 2*(g.PlateSize+1))
	default:
		return
	}

	b.Resume()
}

// Resume runs one time slice of the current build and reports whether
// more work remains.
func (b *Builder) Resume() bool {
	deadline := time.Now().Add(b.Budget)
	switch b.phase {
	case phaseInverse:
		return b.resumeInverse(deadline)
	case phaseForward:
		return b.resumeForward(deadline)
	}
	return false
}

// abort freezes the build after a malformed script result. The maps stay
// as far as they got; the next configuration change rebuilds from scratch.
func (b *Builder) abort(err error) {
	b.console("%v\n", err)
	b.Cancel()
}

func (b *Builder) resumeInverse(deadline time.Time) bool {
	l := b.lens

	for ly := b.row; ly >= 0; ly-- {
		y := -float64(ly-l.HeightPx/2) * l.Scale

		for lx := 0; lx < l.WidthPx; lx++ {
			x := float64(lx-l.WidthPx/2) * l.Scale

			ray, ok, err := b.sc.EvalInverse(l.Inverse, x, y)
			if err != nil {
				b.abort(err)
				return false
			}
			if !ok {
				continue
			}
			b.setFromRay(lx, ly, ray)
		}

		b.row = ly - 1
		if b.row >= 0 && !time.Now().Before(deadline) {
			return true
		}
	}

	b.phase = phaseDone
	return false
}

func (b *Builder) resumeForward(deadline time.Time) bool {
	g := b.globe
	ps := g.PlateSize

	for b.plate < len(g.Plates) {
		for b.row >= 0 {
			py := b.row

			// Project this texel row's corner points. The previous row's
			// upper corners become the current row's lower corners.
			if py == ps-1 {
				v := (float64(py) + 0.5) / float64(ps)
				if !b.sampleScanline(b.bot, v) {
					return false
				}
			} else {
				b.top, b.bot = b.bot, b.top
			}
			v := (float64(py) - 0.5) / float64(ps)
			if !b.sampleScanline(b.top, v) {
				return false
			}

			// Rasterize a quad per texel, skipping texels this plate does
			// not own so shared seams are painted exactly once.
			vc := float64(py) / float64(ps)
			for px := 0; px < ps; px++ {
				uc := float64(px) / float64(ps)
				ray := g.UVToRay(b.plate, uc, vc)
				if g.PlateForRay(ray) != b.plate {
					continue
				}

				i := 2 * px
				b.drawQuad(
					[2]int32{b.top[i], b.top[i+1]},
					[2]int32{b.top[i+2], b.top[i+3]},
					[2]int32{b.bot[i], b.bot[i+1]},
					[2]int32{b.bot[i+2], b.bot[i+3]},
					b.plate, px, py)
			}

			b.row--
			if !time.Now().Before(deadline) {
				return true
			}
		}

		b.row = ps - 1
		b.plate++
	}

	b.phase = phaseDone
	b.top = nil
	b.bot = nil
	return false
}

// sampleScanline projects one row of half-texel corner points into dst.
// Corners the forward function cannot represent keep their previous
// value; when the row's leading corner is one of those, the first texel's
// trailing corner is skipped with it. Returns false when the build was
// aborted.
func (b *Builder) sampleScanline(dst []int32, v float64) bool {
	ps := b.globe.PlateSize
	for px := 0; px < ps; px++ {
		if px == 0 {
			lx, ly, status := b.uvToScreen(-0.5/float64(ps), v)
			if status < 0 {
				return false
			}
			if status == 0 {
				continue
			}
			dst[0] = lx
			dst[1] = ly
		}
		u := (float64(px) + 0.5) / float64(ps)
		if !b.sampleCorner(dst, 2*(px+1), u, v) {
			return false
		}
	}
	return true
}

func (b *Builder) sampleCorner(dst []int32, idx int, u, v float64) bool {
	lx, ly, status := b.uvToScreen(u, v)
	if status < 0 {
		return false
	}
	if status > 0 {
		dst[idx] = lx
		dst[idx+1] = ly
	}
	return true
}

// uvToScreen maps a plate texture coordinate to an output pixel via the
// forward function. status: 1 mapped, 0 not representable, -1 aborted.
func (b *Builder) uvToScreen(u, v float64) (lx, ly int32, status int) {
	ray := b.globe.UVToRay(b.plate, u, v)

	x, y, ok, err := b.sc.EvalForward(b.lens.Forward, ray)
	if err != nil {
		b.abort(err)
		return 0, 0, -1
	}
	if !ok {
		return 0, 0, 0
	}

	l := b.lens
	lx = int32(x/l.Scale + float64(l.WidthPx/2))
	ly = int32(-y/l.Scale + float64(l.HeightPx/2))
	return lx, ly, 1
}

// setFromRay resolves the owning plate for a view direction and maps the
// output pixel to the plate texel it lands on. Out-of-bounds projections
// leave the pixel unmapped.
func (b *Builder) setFromRay(lx, ly int, ray mathutil.Vec3) {
	plate := b.globe.PlateForRay(ray)
	if plate < 0 {
		return
	}
	u, v, in := b.globe.RayToUV(plate, ray)
	if !in {
		return
	}
	px := int(u * float64(b.globe.PlateSize))
	py := int(v * float64(b.globe.PlateSize))
	b.setFromPlate(lx, ly, px, py, plate)
}

// setFromPlate is the single write primitive both sweeps go through:
// bounds-checked, marks the plate in use, and applies grid tinting.
func (b *Builder) setFromPlate(lx, ly, px, py, plate int) {
	l := b.lens
	if lx < 0 || lx >= l.WidthPx || ly < 0 || ly >= l.HeightPx {
		return
	}
	ps := b.globe.PlateSize
	if px < 0 || px >= ps || py < 0 || py >= ps {
		return
	}

	b.globe.Plates[plate].InUse = true

	i := lx + ly*l.WidthPx
	l.Map[i] = PixelRef{Plate: int16(plate), X: int16(px), Y: int16(py)}
	if b.grid.Tinted(px, py, ps) {
		l.Tints[i] = uint8(plate)
	}
}
