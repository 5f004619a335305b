package preprocess

import (
	"image"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Otsu returns the threshold that maximizes between-class variance of the
// image histogram.
func Otsu(img *image.Gray) uint8 {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		for _, v := range img.Pix[off : off+b.Dx()] {
			hist[v]++
		}
	}
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	var (
		sumB, best float64
		wB         int
		level      uint8
	)
	for t, c := range hist {
		wB += c
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * c)
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			level = uint8(t)
		}
	}
	return level
}

// darkLightness is the mean CIE L* (0..1) below which a frame counts as dark.
const darkLightness = 0.5

// IsDark reports whether the frame's mean perceptual lightness is low, which
// in games usually means light text drawn over a dark backdrop.
func IsDark(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return false
	}
	step := max(1, min(b.Dx(), b.Dy())/64)

	var total float64
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			l, _, _ := c.Lab()
			total += l
			n++
		}
	}
	return n > 0 && total/float64(n) < darkLightness
}
