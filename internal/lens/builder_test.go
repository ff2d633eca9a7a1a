package lens

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fisheye-renderer/internal/globe"
	"fisheye-renderer/internal/script"
)

const cubeGlobe = `
plates = {
   {{0,0,1},{0,1,0},90},
   {{1,0,0},{0,1,0},90},
   {{-1,0,0},{0,1,0},90},
   {{0,0,-1},{0,1,0},90},
   {{0,1,0},{0,0,-1},90},
   {{0,-1,0},{0,0,1},90},
}
`

// rig is a ready-to-build lens pipeline over the cube globe.
type rig struct {
	sc      *script.Engine
	g       *globe.Globe
	l       *Lens
	console []string
}

func newRig(t *testing.T, lensBody string, w, h int) *rig {
	t.Helper()

	sc, err := script.New()
	require.NoError(t, err)
	t.Cleanup(sc.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cube.lua"), []byte(cubeGlobe), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lens.lua"), []byte(lensBody), 0644))

	r := &rig{sc: sc, g: &globe.Globe{}, l: &Lens{}}
	require.NoError(t, r.g.Load(sc, dir, "cube"))
	_, err = r.l.Load(sc, dir, "lens", len(r.g.Plates))
	require.NoError(t, err)

	r.g.Resize(min(w, h))
	r.l.Resize(w, h)
	require.NoError(t, r.l.DetermineScale(sc, FovConfig{Mode: ModeHFov, Deg: 90}))
	return r
}

func (r *rig) log(format string, args ...any) {
	r.console = append(r.console, fmt.Sprintf(format, args...))
}

func TestInverseBuildMapsEveryPixel(t *testing.T) {
	r := newRig(t, rectilinearLens, 64, 64)
	require.Equal(t, KindInverse, r.l.Kind)

	b := NewBuilder(time.Hour)
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)
	assert.False(t, b.Working())
	assert.Empty(t, r.console)

	// A 90 degree square view through a rectilinear lens is exactly the
	// front plate: pixel (x,y) lands on texel (x,y).
	for ly := 0; ly < 64; ly++ {
		for lx := 0; lx < 64; lx++ {
			ref := r.l.Map[ly*64+lx]
			require.Equal(t, int16(0), ref.Plate, "pixel %d,%d", lx, ly)
			require.Equal(t, int16(lx), ref.X, "pixel %d,%d", lx, ly)
			require.Equal(t, int16(ly), ref.Y, "pixel %d,%d", lx, ly)
		}
	}

	assert.True(t, r.g.Plates[0].InUse)
	for i := 1; i < 6; i++ {
		assert.False(t, r.g.Plates[i].InUse, "plate %d", i)
	}
}

func TestInverseBuildDeterministic(t *testing.T) {
	r := newRig(t, rectilinearLens, 48, 32)

	b := NewBuilder(time.Hour)
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)
	first := make([]PixelRef, len(r.l.Map))
	copy(first, r.l.Map)
	firstTints := make([]uint8, len(r.l.Tints))
	copy(firstTints, r.l.Tints)

	r.l.ClearMaps()
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)

	assert.Equal(t, first, r.l.Map)
	assert.Equal(t, firstTints, r.l.Tints)
}

func TestZeroBudgetAdvancesOneRowPerResume(t *testing.T) {
	r := newRig(t, rectilinearLens, 16, 16)

	b := NewBuilder(0)
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)
	require.True(t, b.Working(), "a zero budget must still suspend, not finish")

	resumes := 0
	for b.Resume() {
		resumes++
		require.LessOrEqual(t, resumes, 16, "build never finished")
	}
	assert.False(t, b.Working())

	// 16 rows: one in Start, one per suspended resume, and the last
	// row's resume completes the build and returns false.
	assert.Equal(t, 14, resumes)

	for i := range r.l.Map {
		assert.Equal(t, int16(0), r.l.Map[i].Plate)
	}
}

func TestForwardBuildCoversFrontPlate(t *testing.T) {
	r := newRig(t, rectilinearLens+`
map = "lens_forward"
`, 40, 40)
	require.Equal(t, KindForward, r.l.Kind)

	b := NewBuilder(time.Hour)
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)
	assert.False(t, b.Working())

	mapped := 0
	for i := range r.l.Map {
		if p := r.l.Map[i].Plate; p >= 0 {
			mapped++
			assert.Less(t, p, int16(6))
		}
	}
	assert.Greater(t, mapped, 40*40*9/10, "forward sweep left holes")

	// Away from the seams everything belongs to the front plate.
	for ly := 4; ly < 36; ly++ {
		for lx := 4; lx < 36; lx++ {
			require.Equal(t, int16(0), r.l.Map[ly*40+lx].Plate, "pixel %d,%d", lx, ly)
		}
	}
	assert.True(t, r.g.Plates[0].InUse)
}

func TestForwardBuildDeterministic(t *testing.T) {
	r := newRig(t, rectilinearLens+`
map = "lens_forward"
`, 40, 40)

	b := NewBuilder(time.Hour)
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)
	first := make([]PixelRef, len(r.l.Map))
	copy(first, r.l.Map)

	r.l.ClearMaps()
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)
	assert.Equal(t, first, r.l.Map)
}

func TestForwardBuildResumable(t *testing.T) {
	r := newRig(t, rectilinearLens+`
map = "lens_forward"
`, 40, 40)

	full := NewBuilder(time.Hour)
	full.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)
	want := make([]PixelRef, len(r.l.Map))
	copy(want, r.l.Map)

	r.l.ClearMaps()
	r.g.MarkAllUnused()
	b := NewBuilder(0)
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)
	for i := 0; b.Resume(); i++ {
		require.LessOrEqual(t, i, 6*40, "build never finished")
	}

	assert.Equal(t, want, r.l.Map, "suspending must not change the result")
}

func TestBuildAbortsOnMalformedResult(t *testing.T) {
	r := newRig(t, `
max_hfov = 179
max_vfov = 179
lens_forward = function(x,y,z)
   if z <= 0 then return nil end
   return x/z, y/z
end
lens_inverse = function(x,y)
   if x > 0.8 then return 1 end
   return x, y, 1
end
`, 64, 64)

	b := NewBuilder(time.Hour)
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)

	assert.False(t, b.Working(), "an aborted build must not stay suspended")
	assert.False(t, b.Resume())
	require.NotEmpty(t, r.console)
	assert.Contains(t, r.console[0], "lens_inverse")
}

func TestInverseBuildSelectorOutOfRange(t *testing.T) {
	sc, err := script.New()
	require.NoError(t, err)
	t.Cleanup(sc.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wild.lua"), []byte(`
plates = {{{0,0,1},{0,1,0},90}}
globe_plate = function(x,y,z) return 3 end
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lens.lua"), []byte(rectilinearLens), 0644))

	g := &globe.Globe{}
	require.NoError(t, g.Load(sc, dir, "wild"))
	l := &Lens{}
	_, err = l.Load(sc, dir, "lens", len(g.Plates))
	require.NoError(t, err)

	g.Resize(16)
	l.Resize(16, 16)
	require.NoError(t, l.DetermineScale(sc, FovConfig{Mode: ModeHFov, Deg: 90}))

	var console []string
	b := NewBuilder(time.Hour)
	b.Start(l, g, sc, DefaultRubixGrid(), func(format string, args ...any) {
		console = append(console, fmt.Sprintf(format, args...))
	})

	// Every ray is disowned, so the build completes with an empty map
	// instead of indexing a plate that does not exist.
	assert.False(t, b.Working())
	assert.Empty(t, console)
	for i := range l.Map {
		assert.Equal(t, int16(-1), l.Map[i].Plate)
	}
	assert.False(t, g.Plates[0].InUse)
}

func TestScanlineSkipsFirstTexelAfterUnrepresentableEdge(t *testing.T) {
	r := newRig(t, `
max_hfov = 179
max_vfov = 179
lens_forward = function(x,y,z)
   if z <= 0 or x/z < -1 then return nil end
   return x/z, y/z
end
`, 40, 40)

	b := NewBuilder(time.Hour)
	b.lens = r.l
	b.globe = r.g
	b.sc = r.sc
	b.console = r.log
	b.plate = 0

	dst := make([]int32, 2*(r.g.PlateSize+1))
	for i := range dst {
		dst[i] = -99
	}
	require.True(t, b.sampleScanline(dst, 0.5))

	// The leading corner sits past the representable edge: it keeps its
	// previous value, and so does the first texel's trailing corner.
	assert.Equal(t, int32(-99), dst[0])
	assert.Equal(t, int32(-99), dst[1])
	assert.Equal(t, int32(-99), dst[2])
	assert.Equal(t, int32(-99), dst[3])

	// From the second texel on, corners are sampled normally.
	assert.NotEqual(t, int32(-99), dst[4])
	assert.NotEqual(t, int32(-99), dst[5])
}

func TestStartGuards(t *testing.T) {
	r := newRig(t, rectilinearLens, 16, 16)

	b := NewBuilder(time.Hour)

	r.l.Scale = 0
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)
	assert.False(t, b.Working())

	r.l.Scale = 1
	empty := &globe.Globe{}
	b.Start(r.l, empty, r.sc, DefaultRubixGrid(), r.log)
	assert.False(t, b.Working())
}

func TestCancelDiscardsBuild(t *testing.T) {
	r := newRig(t, rectilinearLens, 64, 64)

	b := NewBuilder(0)
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)
	require.True(t, b.Working())

	b.Cancel()
	assert.False(t, b.Working())
	assert.False(t, b.Resume())
}

func TestRubixTintsFollowPlateTexels(t *testing.T) {
	r := newRig(t, rectilinearLens, 64, 64)

	b := NewBuilder(time.Hour)
	b.Start(r.l, r.g, r.sc, DefaultRubixGrid(), r.log)

	// Pixel (x,y) is texel (x,y) here, so the tint map mirrors the grid.
	grid := DefaultRubixGrid()
	for ly := 0; ly < 64; ly++ {
		for lx := 0; lx < 64; lx++ {
			want := uint8(NoTint)
			if grid.Tinted(lx, ly, 64) {
				want = 0
			}
			require.Equal(t, want, r.l.Tints[ly*64+lx], "pixel %d,%d", lx, ly)
		}
	}
}
