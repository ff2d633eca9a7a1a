package lens

// maxQuadSpan rejects quads wider or taller than this many pixels.
// Projections that wrap (e.g. a cylinder seam) throw the four corners of
// a seam texel across the whole image; a proper clip would need knowledge
// of each projection's boundary, so oversized quads are skipped instead.
// Existing lens scripts depend on this exact threshold.
const maxQuadSpan = 20

// drawQuad fills the output-pixel quad spanned by one plate texel's four
// projected corners. Degenerate quads collapse to a point or a line;
// otherwise each row in the bounding box is filled between the two
// x-intercepts of the polygon edges straddling it.
func (b *Builder) drawQuad(tl, tr, bl, br [2]int32, plate, px, py int) {
	// corners in clockwise order
	p := [4][2]int32{tl, tr, br, bl}

	minx, maxx := tl[0], tl[0]
	miny, maxy := tl[1], tl[1]
	for i := 1; i < 4; i++ {
		tx, ty := p[i][0], p[i][1]
		if tx < minx {
			minx = tx
		} else if tx > maxx {
			maxx = tx
		}
		if ty < miny {
			miny = ty
		} else if ty > maxy {
			maxy = ty
		}
	}

	if maxx-minx > maxQuadSpan || maxy-miny > maxQuadSpan {
		return
	}

	// single pixel
	if miny == maxy && minx == maxx {
		b.setFromPlate(int(tl[0]), int(tl[1]), px, py, plate)
		return
	}

	// horizontal line
	if miny == maxy {
		for x := minx; x <= maxx; x++ {
			b.setFromPlate(int(x), int(miny), px, py, plate)
		}
		return
	}

	// vertical line
	if minx == maxx {
		for y := miny; y <= maxy; y++ {
			b.setFromPlate(int(minx), int(y), px, py, plate)
		}
		return
	}

	for y := miny; y <= maxy; y++ {
		// x-intercepts of the two edges straddling this row
		tx := [2]int32{minx, maxx}
		txi := 0
		j := 3
		for i := 0; i < 4; i++ {
			ix, iy := p[i][0], p[i][1]
			jx, jy := p[j][0], p[j][1]
			if (iy < y && y <= jy) || (jy < y && y <= iy) {
				dy := float64(jy - iy)
				dx := float64(jx - ix)
				tx[txi] = int32(float64(ix) + float64(y-iy)/dy*dx)
				txi++
				if txi == 2 {
					break
				}
			}
			j = i
		}

		if tx[0] > tx[1] {
			tx[0], tx[1] = tx[1], tx[0]
		}

		// sanity check on span
		if tx[1]-tx[0] > maxQuadSpan {
			b.console("%d > %d\n", tx[1]-tx[0], maxQuadSpan)
			return
		}

		for x := tx[0]; x <= tx[1]; x++ {
			b.setFromPlate(int(x), int(y), px, py, plate)
		}
	}
}
