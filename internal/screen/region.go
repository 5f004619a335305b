package screen

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	apperrors "github.com/GriffinCanCode/game-translator/internal/errors"
)

// MinRegionSize is the smallest accepted width and height, in pixels.
const MinRegionSize = 10

// Region is a capture rectangle in screen pixel coordinates. Regions are
// values: the pipeline replaces them wholesale and never edits one in place.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRegion validates and returns a region.
func NewRegion(x, y, width, height int) (Region, error) {
	r := Region{X: x, Y: y, Width: width, Height: height}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate returns a CaptureError when the region is smaller than
// MinRegionSize in either dimension.
func (r Region) Validate() error {
	if r.Width < MinRegionSize || r.Height < MinRegionSize {
		return &CaptureError{
			Region: r,
			Err: apperrors.Newf(apperrors.RegionInvalid, "region %s is smaller than %dx%d", r, MinRegionSize, MinRegionSize).
				WithMetadata("width", strconv.Itoa(r.Width)).
				WithMetadata("height", strconv.Itoa(r.Height)),
		}
	}
	return nil
}

// Valid reports whether the region passes Validate.
func (r Region) Valid() bool { return r.Validate() == nil }

// Rect returns the region as an image rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d@(%d,%d)", r.Width, r.Height, r.X, r.Y)
}

// ParseRegion parses "x,y,width,height".
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, apperrors.Newf(apperrors.InvalidArgument, "region %q: want x,y,width,height", s)
	}
	var vals [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, apperrors.Wrapf(err, apperrors.InvalidArgument, "region %q", s)
		}
		vals[i] = v
	}
	return NewRegion(vals[0], vals[1], vals[2], vals[3])
}

// CaptureError reports that a region could not be captured, either because it
// is invalid or because it lies outside every display.
type CaptureError struct {
	Region Region
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Region, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
