package preprocess

import (
	"image"
	"math"
)

// CLAHE applies contrast-limited adaptive histogram equalization. The image
// is split into grid x grid tiles; each tile gets its own clipped histogram
// equalization and pixels blend the four nearest tile mappings bilinearly.
func CLAHE(src *image.Gray, clipLimit float64, grid int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return src
	}
	if grid <= 0 {
		grid = DefaultTileGrid
	}
	tx, ty := min(grid, w), min(grid, h)

	luts := make([][256]uint8, tx*ty)
	for j := 0; j < ty; j++ {
		y0, y1 := j*h/ty, (j+1)*h/ty
		for i := 0; i < tx; i++ {
			x0, x1 := i*w/tx, (i+1)*w/tx
			luts[j*tx+i] = tileLUT(src, x0, y0, x1, y1, clipLimit)
		}
	}

	tileW := float64(w) / float64(tx)
	tileH := float64(h) / float64(ty)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		j0, j1, fy := neighbours(y, tileH, ty)
		for x := 0; x < w; x++ {
			i0, i1, fx := neighbours(x, tileW, tx)
			v := src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y)]

			top := lerp(float64(luts[j0*tx+i0][v]), float64(luts[j0*tx+i1][v]), fx)
			bottom := lerp(float64(luts[j1*tx+i0][v]), float64(luts[j1*tx+i1][v]), fx)
			dst.Pix[y*dst.Stride+x] = uint8(math.Round(lerp(top, bottom, fy)))
		}
	}
	return dst
}

// tileLUT builds the clipped equalization mapping for one tile.
func tileLUT(src *image.Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	b := src.Bounds()
	for y := y0; y < y1; y++ {
		off := src.PixOffset(b.Min.X+x0, b.Min.Y+y)
		for _, v := range src.Pix[off : off+(x1-x0)] {
			hist[v]++
		}
	}
	n := (x1 - x0) * (y1 - y0)

	if clipLimit > 0 {
		limit := max(1, int(clipLimit*float64(n)/256))
		excess := 0
		for i := range hist {
			if hist[i] > limit {
				excess += hist[i] - limit
				hist[i] = limit
			}
		}
		share, rest := excess/256, excess%256
		for i := range hist {
			hist[i] += share
			if i < rest {
				hist[i]++
			}
		}
	}

	var lut [256]uint8
	cdf := 0
	for i, c := range hist {
		cdf += c
		lut[i] = uint8(math.Round(float64(cdf) * 255 / float64(n)))
	}
	return lut
}

// neighbours returns the two tile indices around pixel p and the blend
// weight toward the second one.
func neighbours(p int, tileSize float64, tiles int) (int, int, float64) {
	pos := (float64(p)+0.5)/tileSize - 0.5
	if pos <= 0 {
		return 0, 0, 0
	}
	i0 := int(pos)
	if i0 >= tiles-1 {
		return tiles - 1, tiles - 1, 0
	}
	return i0, i0 + 1, pos - float64(i0)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
