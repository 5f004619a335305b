package config

import (
	"strings"
	"time"

	apperrors "github.com/GriffinCanCode/game-translator/internal/errors"
	"github.com/GriffinCanCode/game-translator/internal/language"
)

// Recognition modes and engines.
const (
	ModeSingle = "single"
	ModeAuto   = "auto"
	modeMulti  = "multi"

	EngineTesseract = "tesseract"
	EngineRemote    = "remote"
)

// Option defaults.
const (
	DefaultOCREngine           = EngineTesseract
	DefaultSourceLanguage      = "jpn"
	DefaultTargetLanguage      = "zh-tw"
	DefaultUpdateInterval      = 0.5
	DefaultConfidenceThreshold = 60.0
	DefaultMinUpdateInterval   = 100 * time.Millisecond

	// MaxUpdateInterval bounds update_interval_seconds.
	MaxUpdateInterval = 3600.0
)

// Options is the user-facing options record. It can be replaced at runtime;
// the pipeline reads a fresh copy every cycle.
type Options struct {
	OCREngine            string  `json:"ocr_engine"`
	SourceLanguage       string  `json:"source_language"`
	TargetLanguage       string  `json:"target_language"`
	OCRMode              string  `json:"ocr_mode"`
	UpdateInterval       float64 `json:"update_interval_seconds"`
	PreprocessingEnabled bool    `json:"preprocessing_enabled"`
	ConfidenceThreshold  float64 `json:"confidence_threshold"`
	AutoDetect           bool    `json:"auto_detect"`
}

func DefaultOptions() Options {
	return Options{
		OCREngine:            DefaultOCREngine,
		SourceLanguage:       DefaultSourceLanguage,
		TargetLanguage:       DefaultTargetLanguage,
		OCRMode:              ModeSingle,
		UpdateInterval:       DefaultUpdateInterval,
		PreprocessingEnabled: true,
		ConfidenceThreshold:  DefaultConfidenceThreshold,
	}
}

// Normalize lower-cases enum fields and maps the "multi" alias to auto.
func (o Options) Normalize() Options {
	o.OCREngine = strings.ToLower(strings.TrimSpace(o.OCREngine))
	o.OCRMode = strings.ToLower(strings.TrimSpace(o.OCRMode))
	if o.OCRMode == modeMulti {
		o.OCRMode = ModeAuto
	}
	o.SourceLanguage = strings.TrimSpace(o.SourceLanguage)
	o.TargetLanguage = strings.ToLower(strings.TrimSpace(o.TargetLanguage))
	return o
}

// AutoMode reports whether recognition should scan every candidate language.
func (o Options) AutoMode() bool {
	return o.OCRMode == ModeAuto || o.AutoDetect
}

// Interval returns the cycle interval, never shorter than floor and never
// longer than MaxUpdateInterval.
func (o Options) Interval(floor time.Duration) time.Duration {
	seconds := min(o.UpdateInterval, MaxUpdateInterval)
	return max(time.Duration(seconds*float64(time.Second)), floor)
}

// Validate checks o against the language table. A nil table skips the
// language checks.
func (o Options) Validate(langs *language.Table) error {
	switch {
	case !validEngine(o.OCREngine):
		return invalid("ocr_engine", o.OCREngine)
	case !validMode(o.OCRMode):
		return invalid("ocr_mode", o.OCRMode)
	case !validInterval(o.UpdateInterval):
		return invalid("update_interval_seconds", o.UpdateInterval)
	case o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 100:
		return invalid("confidence_threshold", o.ConfidenceThreshold)
	}
	if langs == nil {
		return nil
	}
	if _, ok := langs.Lookup(o.SourceLanguage); !ok {
		return invalid("source_language", o.SourceLanguage)
	}
	if !langs.HasTarget(o.TargetLanguage) {
		return invalid("target_language", o.TargetLanguage)
	}
	return nil
}

func invalid(field string, value any) error {
	return apperrors.Newf(apperrors.ConfigInvalid, "invalid %s: %v", field, value).WithMetadata("field", field)
}

func validEngine(e string) bool { return e == EngineTesseract || e == EngineRemote }

func validMode(m string) bool { return m == ModeSingle || m == ModeAuto }

func validInterval(seconds float64) bool { return seconds > 0 && seconds <= MaxUpdateInterval }
