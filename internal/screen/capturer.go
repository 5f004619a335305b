// Package screen captures rectangular regions of the display.
package screen

import (
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	apperrors "github.com/GriffinCanCode/game-translator/internal/errors"
)

// Source produces a snapshot of a screen region on demand.
type Source interface {
	Capture(ctx context.Context, region Region) (*image.NRGBA, error)
	Close() error
}

// backend writes a full-display PNG to path.
type backend interface {
	name() string
	captureRaw(ctx context.Context, path string) error
}

// execSource captures the whole display through a platform backend and
// crops the requested region out of it.
type execSource struct {
	backend
	tempDir string
}

func newExecSource(b backend) *execSource {
	tmpDir, err := os.MkdirTemp("", "game-translator-screen-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return &execSource{backend: b, tempDir: tmpDir}
}

func (s *execSource) Capture(ctx context.Context, region Region) (*image.NRGBA, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.tempDir, "frame.png")
	defer os.Remove(path)

	if err := s.captureRaw(ctx, path); err != nil {
		return nil, &CaptureError{Region: region, Err: apperrors.Wrapf(err, apperrors.CaptureFailed, "%s screenshot failed", s.name())}
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, &CaptureError{Region: region, Err: apperrors.Wrap(err, apperrors.CaptureFailed, "decode screenshot")}
	}
	return Crop(img, region)
}

func (s *execSource) Close() error {
	if s.tempDir != "" && s.tempDir != os.TempDir() {
		return os.RemoveAll(s.tempDir)
	}
	return nil
}

// Crop cuts region out of a full-display image. Regions partially off-screen
// are clipped; regions entirely off-screen fail with CaptureError.
func Crop(display image.Image, region Region) (*image.NRGBA, error) {
	rect := region.Rect().Intersect(display.Bounds())
	if rect.Empty() {
		return nil, &CaptureError{
			Region: region,
			Err:    apperrors.Newf(apperrors.CaptureFailed, "region lies outside display bounds %v", display.Bounds()),
		}
	}
	return imaging.Crop(display, rect), nil
}

// FileSource serves regions cut from an image file that is re-read on every
// capture. It stands in for a display on headless hosts and in tests.
type FileSource struct {
	Path string
}

// NewFileSource returns a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Capture(_ context.Context, region Region) (*image.NRGBA, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	img, err := imaging.Open(f.Path)
	if err != nil {
		return nil, &CaptureError{Region: region, Err: apperrors.Wrapf(err, apperrors.CaptureFailed, "open %s", f.Path)}
	}
	return Crop(img, region)
}

func (f *FileSource) Close() error { return nil }
