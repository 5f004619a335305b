package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GriffinCanCode/game-translator/internal/language"
	"github.com/GriffinCanCode/game-translator/internal/screen"
)

var envVars = []string{
	"OCR_ENGINE", "SOURCE_LANGUAGE", "TARGET_LANGUAGE", "OCR_MODE",
	"UPDATE_INTERVAL_SECONDS", "PREPROCESSING_ENABLED", "CONFIDENCE_THRESHOLD",
	"AUTO_DETECT", "MIN_UPDATE_INTERVAL_SECONDS", "HTTP_ADDR", "LOG_LEVEL",
	"CAPTURE_REGION", "CAPTURE_FILE", "CANDIDATE_LANGUAGES", "OCR_WORKERS",
	"TESSDATA_PREFIX", "REMOTE_OCR_ADDR", "REMOTE_CONFIDENCE_SCALE",
	"REMOTE_CONFIDENCE_OFFSET", "TRANSLATE_URL", "TRANSLATE_TIMEOUT_SECONDS",
	"HISTORY_CAPACITY", "SKIP_SIMILAR_FRAMES", "FRAME_HASH_DISTANCE", "EVENT_BUFFER",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Options != DefaultOptions() {
		t.Errorf("Options = %+v, want %+v", cfg.Options, DefaultOptions())
	}
	if cfg.SourceLanguage != "jpn" {
		t.Errorf("SourceLanguage = %q, want %q", cfg.SourceLanguage, "jpn")
	}
	if cfg.TargetLanguage != "zh-tw" {
		t.Errorf("TargetLanguage = %q, want %q", cfg.TargetLanguage, "zh-tw")
	}
	if cfg.UpdateInterval != 0.5 {
		t.Errorf("UpdateInterval = %f, want %f", cfg.UpdateInterval, 0.5)
	}
	if cfg.ConfidenceThreshold != 60 {
		t.Errorf("ConfidenceThreshold = %f, want %f", cfg.ConfidenceThreshold, 60.0)
	}
	if !cfg.PreprocessingEnabled {
		t.Error("PreprocessingEnabled should default to true")
	}
	if cfg.AutoDetect {
		t.Error("AutoDetect should default to false")
	}
	if cfg.MinUpdateInterval != 100*time.Millisecond {
		t.Errorf("MinUpdateInterval = %v, want 100ms", cfg.MinUpdateInterval)
	}
	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.Region != (screen.Region{}) {
		t.Errorf("Region = %v, want unset", cfg.Region)
	}
	if cfg.OCRWorkers != 4 {
		t.Errorf("OCRWorkers = %d, want 4", cfg.OCRWorkers)
	}
	if cfg.HistoryCapacity != 500 {
		t.Errorf("HistoryCapacity = %d, want 500", cfg.HistoryCapacity)
	}
	if cfg.TranslateTimeout != 10*time.Second {
		t.Errorf("TranslateTimeout = %v, want 10s", cfg.TranslateTimeout)
	}
	if cfg.RemoteConfidenceScale != 1 {
		t.Errorf("RemoteConfidenceScale = %f, want 1", cfg.RemoteConfidenceScale)
	}
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCR_ENGINE", "Remote")
	t.Setenv("SOURCE_LANGUAGE", "kor")
	t.Setenv("TARGET_LANGUAGE", "EN")
	t.Setenv("OCR_MODE", "multi")
	t.Setenv("UPDATE_INTERVAL_SECONDS", "1.5")
	t.Setenv("PREPROCESSING_ENABLED", "false")
	t.Setenv("CONFIDENCE_THRESHOLD", "75")
	t.Setenv("AUTO_DETECT", "1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CAPTURE_REGION", "100, 200, 640, 120")
	t.Setenv("CANDIDATE_LANGUAGES", "jpn, kor,,eng")
	t.Setenv("TRANSLATE_TIMEOUT_SECONDS", "2.5")
	t.Setenv("SKIP_SIMILAR_FRAMES", "true")
	t.Setenv("FRAME_HASH_DISTANCE", "3")

	cfg := Load()

	want := Options{
		OCREngine:           EngineRemote,
		SourceLanguage:      "kor",
		TargetLanguage:      "en",
		OCRMode:             ModeAuto,
		UpdateInterval:      1.5,
		ConfidenceThreshold: 75,
		AutoDetect:          true,
	}
	if cfg.Options != want {
		t.Errorf("Options = %+v, want %+v", cfg.Options, want)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
	if cfg.Region != (screen.Region{X: 100, Y: 200, Width: 640, Height: 120}) {
		t.Errorf("Region = %v", cfg.Region)
	}
	if len(cfg.CandidateLanguages) != 3 || cfg.CandidateLanguages[2] != "eng" {
		t.Errorf("CandidateLanguages = %v, want [jpn kor eng]", cfg.CandidateLanguages)
	}
	if cfg.TranslateTimeout != 2500*time.Millisecond {
		t.Errorf("TranslateTimeout = %v, want 2.5s", cfg.TranslateTimeout)
	}
	if !cfg.SkipSimilarFrames || cfg.FrameHashDistance != 3 {
		t.Errorf("frame gate = %v/%d, want true/3", cfg.SkipSimilarFrames, cfg.FrameHashDistance)
	}
}

func TestLoadSanitizesInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCR_ENGINE", "paddle")
	t.Setenv("OCR_MODE", "sometimes")
	t.Setenv("UPDATE_INTERVAL_SECONDS", "-1")
	t.Setenv("CONFIDENCE_THRESHOLD", "150")
	t.Setenv("OCR_WORKERS", "zero")
	t.Setenv("CAPTURE_REGION", "0,0,5,5")
	t.Setenv("LOG_LEVEL", "loud")

	cfg := Load()

	if cfg.Options != DefaultOptions() {
		t.Errorf("Options = %+v, want defaults", cfg.Options)
	}
	if cfg.OCRWorkers != 4 {
		t.Errorf("OCRWorkers = %d, want 4", cfg.OCRWorkers)
	}
	if cfg.Region != (screen.Region{}) {
		t.Errorf("undersized CAPTURE_REGION should be ignored, got %v", cfg.Region)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("HTTP_ADDR=:9100\nSOURCE_LANGUAGE=eng\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SOURCE_LANGUAGE", "kor")
	// Unset so the file value can apply; t.Setenv restores it afterwards.
	os.Unsetenv("HTTP_ADDR")

	LoadEnvFiles(filepath.Join(dir, "missing.env"), path)
	cfg := Load()

	if cfg.HTTPAddr != ":9100" {
		t.Errorf("HTTPAddr = %q, want :9100 from file", cfg.HTTPAddr)
	}
	if cfg.SourceLanguage != "kor" {
		t.Errorf("SourceLanguage = %q, existing env should win over file", cfg.SourceLanguage)
	}
}

func TestOptionsInterval(t *testing.T) {
	tests := []struct {
		seconds float64
		floor   time.Duration
		want    time.Duration
	}{
		{0.5, 100 * time.Millisecond, 500 * time.Millisecond},
		{0.05, 100 * time.Millisecond, 100 * time.Millisecond},
		{2, 0, 2 * time.Second},
		{1e12, 100 * time.Millisecond, time.Hour},
	}
	for _, tt := range tests {
		o := Options{UpdateInterval: tt.seconds}
		if got := o.Interval(tt.floor); got != tt.want {
			t.Errorf("Interval(%v) with %vs = %v, want %v", tt.floor, tt.seconds, got, tt.want)
		}
	}
}

func TestOptionsAutoMode(t *testing.T) {
	if (Options{OCRMode: ModeSingle}).AutoMode() {
		t.Error("single mode should not be auto")
	}
	if !(Options{OCRMode: ModeAuto}).AutoMode() {
		t.Error("auto mode should be auto")
	}
	if !(Options{OCRMode: ModeSingle, AutoDetect: true}).AutoMode() {
		t.Error("auto_detect should force auto mode")
	}
}

func TestOptionsValidate(t *testing.T) {
	langs := language.Default()
	base := DefaultOptions()

	if err := base.Validate(langs); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"engine", func(o *Options) { o.OCREngine = "easyocr" }},
		{"mode", func(o *Options) { o.OCRMode = "multi" }},
		{"interval", func(o *Options) { o.UpdateInterval = 0 }},
		{"interval too long", func(o *Options) { o.UpdateInterval = MaxUpdateInterval + 1 }},
		{"interval overflow", func(o *Options) { o.UpdateInterval = 1e300 }},
		{"threshold", func(o *Options) { o.ConfidenceThreshold = 101 }},
		{"source", func(o *Options) { o.SourceLanguage = "klingon" }},
		{"target", func(o *Options) { o.TargetLanguage = "xx" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.mutate(&o)
			if err := o.Validate(langs); err == nil {
				t.Errorf("Validate(%+v) = nil, want error", o)
			}
		})
	}

	longest := base
	longest.UpdateInterval = MaxUpdateInterval
	if err := longest.Validate(langs); err != nil {
		t.Errorf("update interval of %v should validate: %v", MaxUpdateInterval, err)
	}

	if err := (Options{OCREngine: "remote", OCRMode: "auto", UpdateInterval: 1, SourceLanguage: "klingon"}).Validate(nil); err != nil {
		t.Errorf("nil table should skip language checks: %v", err)
	}
}

func TestOptionsNormalize(t *testing.T) {
	o := Options{OCREngine: " Tesseract ", OCRMode: "MULTI", TargetLanguage: "ZH-TW", SourceLanguage: " jpn "}.Normalize()
	want := Options{OCREngine: "tesseract", OCRMode: "auto", TargetLanguage: "zh-tw", SourceLanguage: "jpn"}
	if o != want {
		t.Errorf("Normalize() = %+v, want %+v", o, want)
	}
}
