package screen

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	apperrors "github.com/GriffinCanCode/game-translator/internal/errors"
)

func TestNewRegionMinimumSize(t *testing.T) {
	tests := []struct {
		w, h int
		ok   bool
	}{
		{9, 9, false},
		{9, 200, false},
		{200, 9, false},
		{0, 0, false},
		{-20, 30, false},
		{10, 10, true},
		{11, 11, true},
		{640, 120, true},
	}

	for _, tt := range tests {
		_, err := NewRegion(5, 5, tt.w, tt.h)
		if (err == nil) != tt.ok {
			t.Errorf("NewRegion(%dx%d) err = %v, want ok=%v", tt.w, tt.h, err, tt.ok)
		}
		if err != nil {
			var ce *CaptureError
			if !errors.As(err, &ce) {
				t.Errorf("NewRegion(%dx%d) error is %T, want *CaptureError", tt.w, tt.h, err)
			}
			if !apperrors.IsCode(err, apperrors.RegionInvalid) {
				t.Errorf("NewRegion(%dx%d) error code should be REGION_INVALID", tt.w, tt.h)
			}
		}
	}
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("100, 200, 300, 40")
	if err != nil {
		t.Fatalf("ParseRegion error: %v", err)
	}
	if r != (Region{X: 100, Y: 200, Width: 300, Height: 40}) {
		t.Errorf("ParseRegion = %+v", r)
	}

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "0,0,5,5"} {
		if _, err := ParseRegion(bad); err == nil {
			t.Errorf("ParseRegion(%q) should fail", bad)
		}
	}
}

func TestRegionString(t *testing.T) {
	r := Region{X: 1, Y: 2, Width: 30, Height: 40}
	if got := r.String(); got != "30x40@(1,2)" {
		t.Errorf("String() = %q", got)
	}
	if r.Rect() != image.Rect(1, 2, 31, 42) {
		t.Errorf("Rect() = %v", r.Rect())
	}
}

func display(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	return img
}

func TestCropInside(t *testing.T) {
	frame, err := Crop(display(200, 100), Region{X: 10, Y: 20, Width: 50, Height: 30})
	if err != nil {
		t.Fatalf("Crop error: %v", err)
	}
	if frame.Bounds().Dx() != 50 || frame.Bounds().Dy() != 30 {
		t.Errorf("frame size = %v, want 50x30", frame.Bounds().Size())
	}
	if c := frame.NRGBAAt(0, 0); c.R != 10 || c.G != 20 {
		t.Errorf("top-left pixel = %+v, want R=10 G=20", c)
	}
}

func TestCropClipsPartialRegion(t *testing.T) {
	frame, err := Crop(display(200, 100), Region{X: 180, Y: 90, Width: 50, Height: 50})
	if err != nil {
		t.Fatalf("Crop error: %v", err)
	}
	if frame.Bounds().Dx() != 20 || frame.Bounds().Dy() != 10 {
		t.Errorf("frame size = %v, want 20x10", frame.Bounds().Size())
	}
}

func TestCropOutsideDisplay(t *testing.T) {
	_, err := Crop(display(200, 100), Region{X: 500, Y: 500, Width: 50, Height: 50})

	var ce *CaptureError
	if !errors.As(err, &ce) {
		t.Fatalf("Crop error = %v, want *CaptureError", err)
	}
	if !apperrors.IsCode(err, apperrors.CaptureFailed) {
		t.Error("error code should be CAPTURE_FAILED")
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.png")
	if err := imaging.Save(display(120, 80), path); err != nil {
		t.Fatalf("save fixture: %v", err)
	}

	src := NewFileSource(path)
	defer src.Close()

	frame, err := src.Capture(context.Background(), Region{X: 0, Y: 0, Width: 40, Height: 20})
	if err != nil {
		t.Fatalf("Capture error: %v", err)
	}
	if frame.Bounds().Dx() != 40 || frame.Bounds().Dy() != 20 {
		t.Errorf("frame size = %v, want 40x20", frame.Bounds().Size())
	}

	if _, err := src.Capture(context.Background(), Region{Width: 5, Height: 5}); err == nil {
		t.Error("Capture should reject undersized regions")
	}

	missing := NewFileSource(filepath.Join(t.TempDir(), "nope.png"))
	if _, err := missing.Capture(context.Background(), Region{Width: 20, Height: 20}); !apperrors.IsCode(err, apperrors.CaptureFailed) {
		t.Errorf("missing file error = %v, want CAPTURE_FAILED", err)
	}
}

func TestExecSourceClose(t *testing.T) {
	src := New()
	es, ok := src.(*execSource)
	if !ok {
		t.Fatalf("New() returned %T, want *execSource", src)
	}
	dir := es.tempDir
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("temp dir should exist: %v", err)
	}

	if err := src.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("temp directory should be removed after Close")
	}
}

func TestCaptureIntegration(t *testing.T) {
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		t.Skip("no display available")
	}
	src := New()
	defer src.Close()

	frame, err := src.Capture(context.Background(), Region{X: 0, Y: 0, Width: 64, Height: 64})
	if err != nil {
		t.Skipf("screen capture unavailable: %v", err)
	}
	if frame.Bounds().Empty() {
		t.Error("captured frame should not be empty")
	}
}
