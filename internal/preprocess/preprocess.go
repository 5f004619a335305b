// Package preprocess turns a captured frame into a binarized, upscaled,
// contrast-enhanced grayscale image that OCR engines read reliably.
//
// Steps run in a fixed order: grayscale, local contrast (CLAHE), denoise,
// upscale, sharpen, binarize, polarity. Every step after grayscale can be
// switched off. A step that panics or yields an empty image is skipped and
// the previous intermediate image is used instead, so Process never fails.
package preprocess

import (
	"image"
	"image/draw"
	"log/slog"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// Options selects and parameterizes the preprocessing steps.
type Options struct {
	Contrast      bool
	ClipLimit     float64 // CLAHE clip limit, as a multiple of the mean bin height
	TileGrid      int     // CLAHE tiles per axis
	Denoise       bool
	DenoiseRadius float64
	Scale         float64 // isotropic upscale factor; <= 1 disables
	Sharpen       bool
	Binarize      bool
	// NormalizePolarity inverts the binary output of dark frames so glyphs
	// always end up dark on a light background.
	NormalizePolarity bool
}

// DefaultOptions returns the full pipeline: CLAHE 2.0 on an 8x8 grid,
// radius-1 median denoise, 2x upscale, 3x3 sharpen and Otsu binarization.
func DefaultOptions() Options {
	return Options{
		Contrast:          true,
		ClipLimit:         DefaultClipLimit,
		TileGrid:          DefaultTileGrid,
		Denoise:           true,
		DenoiseRadius:     DefaultDenoiseRadius,
		Scale:             DefaultScale,
		Sharpen:           true,
		Binarize:          true,
		NormalizePolarity: true,
	}
}

// Processing defaults.
const (
	DefaultClipLimit     = 2.0
	DefaultTileGrid      = 8
	DefaultDenoiseRadius = 1.0
	DefaultScale         = 2.0
)

// sharpenKernel boosts the centre against its eight neighbours.
var sharpenKernel = [9]float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// Process runs the enabled steps over img. The result is single-channel and
// never smaller than img.
func Process(img image.Image, opts Options) *image.Gray {
	if img == nil || img.Bounds().Empty() {
		return image.NewGray(image.Rectangle{})
	}

	gray := apply("grayscale", nil, func(*image.Gray) *image.Gray {
		return toGray(effect.Grayscale(img))
	})
	if gray == nil {
		gray = toGray(img)
	}

	if opts.Contrast {
		gray = apply("contrast", gray, func(in *image.Gray) *image.Gray {
			return CLAHE(in, opts.ClipLimit, opts.TileGrid)
		})
	}
	if opts.Denoise && opts.DenoiseRadius > 0 {
		gray = apply("denoise", gray, func(in *image.Gray) *image.Gray {
			return toGray(effect.Median(in, opts.DenoiseRadius))
		})
	}
	if opts.Scale > 1 {
		gray = apply("upscale", gray, func(in *image.Gray) *image.Gray {
			w := int(float64(in.Bounds().Dx()) * opts.Scale)
			h := int(float64(in.Bounds().Dy()) * opts.Scale)
			return toGray(imaging.Resize(in, w, h, imaging.CatmullRom))
		})
	}
	if opts.Sharpen {
		gray = apply("sharpen", gray, func(in *image.Gray) *image.Gray {
			return toGray(imaging.Convolve3x3(in, sharpenKernel, nil))
		})
	}
	if opts.Binarize {
		gray = apply("binarize", gray, func(in *image.Gray) *image.Gray {
			return Binarize(in, Otsu(in))
		})
		if opts.NormalizePolarity && IsDark(img) {
			gray = apply("polarity", gray, invert)
		}
	}
	return gray
}

// apply runs one step, falling back to in when the step panics or returns
// nothing usable.
func apply(name string, in *image.Gray, fn func(*image.Gray) *image.Gray) (out *image.Gray) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("preprocess step failed, keeping previous image", "step", name, "panic", r)
			out = in
		}
	}()
	out = fn(in)
	if out == nil || out.Bounds().Empty() {
		return in
	}
	return out
}

// Binarize maps pixels brighter than level to white and the rest to black.
func Binarize(img *image.Gray, level uint8) *image.Gray {
	if level == 255 {
		return image.NewGray(img.Bounds())
	}
	// segment.Threshold whitens pixels >= its level.
	return segment.Threshold(img, level+1)
}

func invert(in *image.Gray) *image.Gray {
	out := image.NewGray(in.Bounds())
	for i, v := range in.Pix {
		out.Pix[i] = 255 - v
	}
	return out
}

// toGray converts any image to *image.Gray with bounds starting at the origin.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
