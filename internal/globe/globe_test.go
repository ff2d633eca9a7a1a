package globe

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fisheye-renderer/internal/mathutil"
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

func loadGlobe(t *testing.T, body string) (*Globe, *script.Engine) {
	t.Helper()

	sc, err := script.New()
	require.NoError(t, err)
	t.Cleanup(sc.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.lua"), []byte(body), 0644))

	g := &Globe{}
	require.NoError(t, g.Load(sc, dir, "test"))
	return g, sc
}

func TestLoadCubeFrames(t *testing.T) {
	g, _ := loadGlobe(t, cubeGlobe)
	require.Len(t, g.Plates, 6)
	assert.True(t, g.Valid)
	assert.True(t, g.Changed)
	assert.Equal(t, "test", g.Name)

	for i := range g.Plates {
		p := &g.Plates[i]
		assert.InDelta(t, 1.0, p.Forward.Len(), 1e-12, "plate %d forward", i)
		assert.InDelta(t, 1.0, p.Right.Len(), 1e-12, "plate %d right", i)
		assert.InDelta(t, 1.0, p.Up.Len(), 1e-12, "plate %d up", i)
		assert.InDelta(t, 0.0, p.Forward.Dot(p.Right), 1e-12, "plate %d", i)
		assert.InDelta(t, 0.0, p.Forward.Dot(p.Up), 1e-12, "plate %d", i)
		assert.InDelta(t, 0.0, p.Right.Dot(p.Up), 1e-12, "plate %d", i)

		assert.InDelta(t, math.Pi/2, p.Fov, 1e-12)
		assert.InDelta(t, 0.5, p.Dist, 1e-12)
	}

	// right x up must point along forward
	front := &g.Plates[0]
	assert.InDelta(t, 1.0, front.Right.Cross(front.Up).Dot(front.Forward), 1e-12)
}

func TestLoadRejectsTooManyPlates(t *testing.T) {
	sc, err := script.New()
	require.NoError(t, err)
	t.Cleanup(sc.Close)

	dir := t.TempDir()
	body := `plates = {`
	for i := 0; i < 7; i++ {
		body += `{{0,0,1},{0,1,0},90},`
	}
	body += `}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.lua"), []byte(body), 0644))

	g := &Globe{}
	assert.Error(t, g.Load(sc, dir, "big"))
}

func TestLoadFailureKeepsPreviousPlates(t *testing.T) {
	g, sc := loadGlobe(t, cubeGlobe)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.lua"), []byte(`plates = {{{0,0,1},{0,1,0},0}}`), 0644))

	require.Error(t, g.Load(sc, dir, "broken"))
	assert.Len(t, g.Plates, 6)
	assert.Equal(t, "test", g.Name)
}

func TestUVToRayCenterIsForward(t *testing.T) {
	g, _ := loadGlobe(t, cubeGlobe)

	for i := range g.Plates {
		ray := g.UVToRay(i, 0.5, 0.5)
		for j := 0; j < 3; j++ {
			assert.InDelta(t, g.Plates[i].Forward[j], ray[j], 1e-12, "plate %d", i)
		}
	}
}

func TestUVToRayOrientation(t *testing.T) {
	g, _ := loadGlobe(t, cubeGlobe)

	// On the front plate, u grows rightward and v grows downward.
	right := g.UVToRay(0, 1, 0.5)
	assert.Greater(t, right[0], 0.0)
	down := g.UVToRay(0, 0.5, 1)
	assert.Less(t, down[1], 0.0)
}

func TestUVRoundTrip(t *testing.T) {
	g, _ := loadGlobe(t, cubeGlobe)

	for plate := 0; plate < 6; plate++ {
		for _, u := range []float64{0.1, 0.5, 0.9} {
			for _, v := range []float64{0.2, 0.5, 0.8} {
				ray := g.UVToRay(plate, u, v)
				gu, gv, in := g.RayToUV(plate, ray)
				require.True(t, in, "plate %d u %f v %f", plate, u, v)
				assert.InDelta(t, u, gu, 1e-12)
				assert.InDelta(t, v, gv, 1e-12)
			}
		}
	}
}

func TestRayToUVOutOfBounds(t *testing.T) {
	g, _ := loadGlobe(t, cubeGlobe)

	// 50 degrees off axis falls outside a 90 degree plate.
	ray := mathutil.LatLonToRay(0, mathutil.Deg2Rad(50))
	_, _, in := g.RayToUV(0, ray)
	assert.False(t, in)
}

func TestPlateForRay(t *testing.T) {
	g, _ := loadGlobe(t, cubeGlobe)

	tests := []struct {
		name string
		ray  mathutil.Vec3
		want int
	}{
		{"front", mathutil.Vec3{0, 0, 1}, 0},
		{"right", mathutil.Vec3{1, 0, 0}, 1},
		{"left", mathutil.Vec3{-1, 0, 0}, 2},
		{"back", mathutil.Vec3{0, 0, -1}, 3},
		{"top", mathutil.Vec3{0, 1, 0}, 4},
		{"bottom", mathutil.Vec3{0, -1, 0}, 5},
		{"edge tie goes to lowest index", mathutil.Vec3{1, 0, 1}.Normalize(), 0},
		{"corner tie goes to lowest index", mathutil.Vec3{1, 1, 1}.Normalize(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.PlateForRay(tt.ray))
		})
	}
}

func TestPlateForRayEmptyGlobe(t *testing.T) {
	g := &Globe{}
	assert.Equal(t, -1, g.PlateForRay(mathutil.Vec3{0, 0, 1}))
}

func TestPlateForRayCustomSelector(t *testing.T) {
	g, _ := loadGlobe(t, `
plates = {
   {{0,0,1},{0,1,0},90},
   {{1,0,0},{0,1,0},90},
}
globe_plate = function(x,y,z)
   if z < 0 then error("unreachable direction") end
   return 1
end
`)

	// The selector wins even where the default would pick plate 0.
	assert.Equal(t, 1, g.PlateForRay(mathutil.Vec3{0, 0, 1}))

	// A failing selector disowns the ray instead of falling back.
	assert.Equal(t, -1, g.PlateForRay(mathutil.Vec3{0, 0, -1}))
}

func TestPlateForRaySelectorOutOfRange(t *testing.T) {
	g, _ := loadGlobe(t, `
plates = {{{0,0,1},{0,1,0},90}}
globe_plate = function(x,y,z)
   if x > 0 then return 3 end
   if x < 0 then return -5 end
   return 0
end
`)

	// A selector naming a plate that does not exist disowns the ray the
	// same way a failing selector does.
	assert.Equal(t, -1, g.PlateForRay(mathutil.Vec3{0.5, 0, 1}.Normalize()))
	assert.Equal(t, -1, g.PlateForRay(mathutil.Vec3{-0.5, 0, 1}.Normalize()))
	assert.Equal(t, 0, g.PlateForRay(mathutil.Vec3{0, 0, 1}))
}

func TestPixelBuffer(t *testing.T) {
	g, _ := loadGlobe(t, cubeGlobe)
	g.Resize(8)

	require.Len(t, g.Pixels, 6*8*8)

	px := g.PlatePixels(2)
	px[3*8+5] = 99
	assert.Equal(t, uint8(99), g.PixelAt(2, 5, 3))
	assert.Equal(t, uint8(0), g.PixelAt(1, 5, 3))
}

func TestMarkAllUnused(t *testing.T) {
	g, _ := loadGlobe(t, cubeGlobe)
	g.Plates[0].InUse = true
	g.Plates[3].InUse = true

	g.MarkAllUnused()
	for i := range g.Plates {
		assert.False(t, g.Plates[i].InUse)
	}
}
