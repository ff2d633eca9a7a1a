package palette

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosestExactMatch(t *testing.T) {
	p := Default()
	assert.Equal(t, uint8(0), p.Closest(0, 0, 0))
	assert.Equal(t, uint8(10), p.Closest(10, 10, 10))
	assert.Equal(t, uint8(255), p.Closest(255, 255, 255))
}

func TestClosestTieGoesToLowestIndex(t *testing.T) {
	var p Palette
	p[5] = [3]uint8{1, 2, 3}
	p[9] = [3]uint8{1, 2, 3}

	assert.Equal(t, uint8(5), p.Closest(1, 2, 3))
}

func TestLoadRaw768(t *testing.T) {
	raw := make([]byte, 768)
	for i := 0; i < 256; i++ {
		raw[i*3] = uint8(i)
		raw[i*3+1] = uint8(255 - i)
		raw[i*3+2] = 7
	}
	path := filepath.Join(t.TempDir(), "palette.lmp")
	require.NoError(t, os.WriteFile(path, raw, 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, [3]uint8{0, 255, 7}, p[0])
	assert.Equal(t, [3]uint8{200, 55, 7}, p[200])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.lmp"))
	assert.Error(t, err)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestTintTablesWhiteOnGrayscale(t *testing.T) {
	p := Default()
	tables := TintTables(&p)

	// Blending a gray toward white stays on the grayscale ramp, so the
	// remapped index is exactly the blended value.
	percent := 256 / MaxPlates
	for _, i := range []int{0, 7, 128, 255} {
		want := uint8(i + percent*(255-i)>>8)
		assert.Equal(t, want, tables[0][i], "index %d", i)
	}

	// White maps to itself in every table that tints toward a color
	// containing a 255 channel.
	assert.Equal(t, uint8(255), tables[0][255])
}
