//go:build cgo

package recognition

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/GriffinCanCode/game-translator/internal/errors"
)

// Tesseract is the fast local backend. Each call uses its own client, so
// concurrent recognitions in different languages are safe.
type Tesseract struct {
	tessdata  string
	newClient func() *gosseract.Client

	once     sync.Once
	langs    []string
	langsErr error
}

// NewTesseract creates a Tesseract backend. An empty tessdataPrefix uses the
// library default location.
func NewTesseract(tessdataPrefix string) *Tesseract {
	return &Tesseract{tessdata: tessdataPrefix, newClient: gosseract.NewClient}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Languages lists installed traineddata, excluding the orientation model.
func (t *Tesseract) Languages(context.Context) ([]string, error) {
	t.once.Do(func() {
		var langs []string
		if t.tessdata != "" {
			matches, err := filepath.Glob(filepath.Join(t.tessdata, "*.traineddata"))
			if err != nil {
				t.langsErr = unavailable(t.Name(), "", err)
				return
			}
			for _, m := range matches {
				langs = append(langs, strings.TrimSuffix(filepath.Base(m), ".traineddata"))
			}
		} else {
			var err error
			if langs, err = gosseract.GetAvailableLanguages(); err != nil {
				t.langsErr = unavailable(t.Name(), "", err)
				return
			}
		}
		t.langs = slices.DeleteFunc(langs, func(l string) bool { return l == "osd" })
	})
	return t.langs, t.langsErr
}

// Recognize runs single-block page segmentation over img and assembles the
// word-level results.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, lang string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if installed, err := t.Languages(ctx); err == nil && !slices.Contains(installed, lang) {
		return Result{Language: lang}, unavailable(t.Name(), lang, nil)
	}

	client := t.newClient()
	defer client.Close()

	if t.tessdata != "" {
		if err := client.SetTessdataPrefix(t.tessdata); err != nil {
			return Result{Language: lang}, unavailable(t.Name(), lang, err)
		}
	}
	if err := client.SetLanguage(lang); err != nil {
		return Result{Language: lang}, unavailable(t.Name(), lang, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return Result{Language: lang}, apperrors.Wrap(err, apperrors.RecognitionFailed, "set page segmentation mode")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{Language: lang}, apperrors.Wrap(err, apperrors.RecognitionFailed, "encode frame")
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Result{Language: lang}, apperrors.Wrap(err, apperrors.RecognitionFailed, "set image")
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Result{Language: lang}, apperrors.Wrapf(err, apperrors.RecognitionFailed, "tesseract %s", lang)
	}
	tokens := make([]Token, 0, len(boxes))
	for _, b := range boxes {
		tokens = append(tokens, Token{Text: b.Word, Confidence: b.Confidence})
	}
	return Assemble(lang, tokens), nil
}
