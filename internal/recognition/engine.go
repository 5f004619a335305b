// Package recognition extracts text and a 0-100 confidence score from
// preprocessed frames. Backends implement Engine; Selector runs an engine
// over several candidate languages and keeps the most confident reading.
package recognition

import (
	"context"
	"image"
	"strings"

	apperrors "github.com/GriffinCanCode/game-translator/internal/errors"
)

// UnscoredConfidence is reported for text from a backend that gives no
// confidence of its own.
const UnscoredConfidence = 100.0

// Result is one recognition outcome. An empty Text means nothing was
// recognised and always carries Confidence 0.
type Result struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Empty reports whether no text was recognised.
func (r Result) Empty() bool { return r.Text == "" }

// Token is a single recognised word with its engine confidence.
type Token struct {
	Text       string
	Confidence float64
}

// Engine is a recognition backend.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, lang string) (Result, error)
}

// LanguageLister is implemented by engines that can report installed languages.
type LanguageLister interface {
	Languages(ctx context.Context) ([]string, error)
}

// Assemble joins tokens with positive confidence into text and averages
// their confidences. Tokens at or below zero are dropped from both.
func Assemble(lang string, tokens []Token) Result {
	words := make([]string, 0, len(tokens))
	var sum float64
	for _, tok := range tokens {
		if tok.Confidence <= 0 {
			continue
		}
		words = append(words, tok.Text)
		sum += tok.Confidence
	}
	text := strings.TrimSpace(strings.Join(words, " "))
	if len(words) == 0 || text == "" {
		return Result{Language: lang}
	}
	return Result{Text: text, Language: lang, Confidence: clamp(sum / float64(len(words)))}
}

// Calibration maps a backend's raw confidence onto the shared 0-100 scale.
type Calibration struct {
	Scale  float64
	Offset float64
}

// Identity leaves confidences unchanged.
var Identity = Calibration{Scale: 1}

// Apply calibrates c and clamps it to [0, 100].
func (cal Calibration) Apply(c float64) float64 {
	return clamp(c*cal.Scale + cal.Offset)
}

// Calibrate wraps engine so that every non-empty result is calibrated.
func Calibrate(engine Engine, cal Calibration) Engine {
	if cal == Identity {
		return engine
	}
	return &calibrated{Engine: engine, cal: cal}
}

type calibrated struct {
	Engine
	cal Calibration
}

func (c *calibrated) Recognize(ctx context.Context, img image.Image, lang string) (Result, error) {
	res, err := c.Engine.Recognize(ctx, img, lang)
	if err != nil || res.Empty() {
		return res, err
	}
	res.Confidence = c.cal.Apply(res.Confidence)
	return res, nil
}

// Languages forwards to the wrapped engine when it can list languages.
func (c *calibrated) Languages(ctx context.Context) ([]string, error) {
	if l, ok := c.Engine.(LanguageLister); ok {
		return l.Languages(ctx)
	}
	return nil, unavailable(c.Name(), "", nil)
}

func clamp(c float64) float64 {
	return min(max(c, 0), 100)
}

// unavailable builds an ENGINE_UNAVAILABLE error for a backend or language pack.
func unavailable(engine, lang string, cause error) error {
	err := apperrors.Wrapf(cause, apperrors.EngineUnavailable, "%s engine unavailable", engine).WithMetadata("engine", engine)
	if lang != "" {
		err.WithMetadata("language", lang)
	}
	return err
}

// IsEngineUnavailable reports whether err means the backend or language pack
// is not installed.
func IsEngineUnavailable(err error) bool {
	return apperrors.IsCode(err, apperrors.EngineUnavailable)
}
