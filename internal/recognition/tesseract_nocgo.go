//go:build !cgo

package recognition

import (
	"context"
	"errors"
	"image"
)

var errNoCgo = errors.New("built without cgo; tesseract bindings are not linked")

// Tesseract is unavailable in builds without cgo.
type Tesseract struct {
	tessdata string
}

// NewTesseract creates a Tesseract backend that reports itself unavailable.
func NewTesseract(tessdataPrefix string) *Tesseract {
	return &Tesseract{tessdata: tessdataPrefix}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Languages(context.Context) ([]string, error) {
	return nil, unavailable(t.Name(), "", errNoCgo)
}

func (t *Tesseract) Recognize(_ context.Context, _ image.Image, lang string) (Result, error) {
	return Result{Language: lang}, unavailable(t.Name(), lang, errNoCgo)
}
