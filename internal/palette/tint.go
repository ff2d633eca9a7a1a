package palette

// MaxPlates is the largest number of camera plates a globe may carry.
const MaxPlates = 6

// plateTints are the overlay colors identifying each plate: white, blue,
// red, yellow, magenta, cyan.
var plateTints = [MaxPlates][3]int{
	{255, 255, 255},
	{0, 0, 255},
	{255, 0, 0},
	{255, 255, 0},
	{255, 0, 255},
	{0, 255, 255},
}

// TintTables builds one remap table per plate. Each table maps a palette
// index to the index of the same color blended 1/6 of the way toward the
// plate's tint, so tinted pixels stay recognizable while marking their
// owning plate.
func TintTables(p *Palette) [MaxPlates][256]uint8 {
	var tables [MaxPlates][256]uint8
	percent := 256 / MaxPlates

	for j := 0; j < MaxPlates; j++ {
		tint := plateTints[j]
		for i := 0; i < 256; i++ {
			r := int(p[i][0])
			g := int(p[i][1])
			b := int(p[i][2])

			r += percent * (tint[0] - r) >> 8
			g += percent * (tint[1] - g) >> 8
			b += percent * (tint[2] - b) >> 8

			tables[j][i] = p.Closest(clampColor(r), clampColor(g), clampColor(b))
		}
	}
	return tables
}

func clampColor(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
