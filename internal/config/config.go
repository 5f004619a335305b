// Package config handles service configuration and the runtime options record
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/GriffinCanCode/game-translator/internal/screen"
)

type Config struct {
	Options

	MinUpdateInterval  time.Duration
	HTTPAddr           string
	LogLevel           slog.Level
	Region             screen.Region // zero when unset
	CaptureFile        string        // capture from an image file instead of the display
	CandidateLanguages []string
	OCRWorkers         int
	TessdataPrefix     string

	RemoteOCRAddr          string
	RemoteConfidenceScale  float64
	RemoteConfidenceOffset float64

	TranslateURL     string
	TranslateTimeout time.Duration

	HistoryCapacity   int
	SkipSimilarFrames bool
	FrameHashDistance int
	EventBuffer       int
}

// LoadEnvFiles loads .env files into the process environment. Variables
// already set win. Missing files are skipped.
func LoadEnvFiles(paths ...string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("env file not found", "path", p)
				continue
			}
			slog.Warn("failed to load env file", "path", p, "error", err)
		}
	}
}

func Load() *Config {
	cfg := &Config{
		Options: Options{
			OCREngine:            getEnv("OCR_ENGINE", DefaultOCREngine),
			SourceLanguage:       getEnv("SOURCE_LANGUAGE", DefaultSourceLanguage),
			TargetLanguage:       getEnv("TARGET_LANGUAGE", DefaultTargetLanguage),
			OCRMode:              getEnv("OCR_MODE", ModeSingle),
			UpdateInterval:       getEnvFloat("UPDATE_INTERVAL_SECONDS", DefaultUpdateInterval),
			PreprocessingEnabled: getEnvBool("PREPROCESSING_ENABLED", true),
			ConfidenceThreshold:  getEnvFloat("CONFIDENCE_THRESHOLD", DefaultConfidenceThreshold),
			AutoDetect:           getEnvBool("AUTO_DETECT", false),
		},
		MinUpdateInterval:      getEnvSeconds("MIN_UPDATE_INTERVAL_SECONDS", DefaultMinUpdateInterval),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8000"),
		LogLevel:               getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		CaptureFile:            getEnv("CAPTURE_FILE", ""),
		CandidateLanguages:     getEnvList("CANDIDATE_LANGUAGES", nil),
		OCRWorkers:             getEnvInt("OCR_WORKERS", 4),
		TessdataPrefix:         getEnv("TESSDATA_PREFIX", ""),
		RemoteOCRAddr:          getEnv("REMOTE_OCR_ADDR", "localhost:50051"),
		RemoteConfidenceScale:  getEnvFloat("REMOTE_CONFIDENCE_SCALE", 1.0),
		RemoteConfidenceOffset: getEnvFloat("REMOTE_CONFIDENCE_OFFSET", 0),
		TranslateURL:           getEnv("TRANSLATE_URL", "https://translate.googleapis.com/translate_a/single"),
		TranslateTimeout:       getEnvSeconds("TRANSLATE_TIMEOUT_SECONDS", 10*time.Second),
		HistoryCapacity:        getEnvInt("HISTORY_CAPACITY", 500),
		SkipSimilarFrames:      getEnvBool("SKIP_SIMILAR_FRAMES", false),
		FrameHashDistance:      getEnvInt("FRAME_HASH_DISTANCE", 0),
		EventBuffer:            getEnvInt("EVENT_BUFFER", 64),
	}
	if v := os.Getenv("CAPTURE_REGION"); v != "" {
		r, err := screen.ParseRegion(v)
		if err != nil {
			slog.Warn("ignoring CAPTURE_REGION", "value", v, "error", err)
		} else {
			cfg.Region = r
		}
	}
	cfg.sanitize()
	return cfg
}

// sanitize replaces out-of-range values with defaults. Language codes are
// checked later against the language table (see Options.Validate).
func (c *Config) sanitize() {
	c.Options = c.Options.Normalize()
	def := DefaultOptions()
	if !validEngine(c.OCREngine) {
		slog.Warn("unknown OCR_ENGINE, using default", "value", c.OCREngine, "default", def.OCREngine)
		c.OCREngine = def.OCREngine
	}
	if !validMode(c.OCRMode) {
		slog.Warn("unknown OCR_MODE, using default", "value", c.OCRMode, "default", def.OCRMode)
		c.OCRMode = def.OCRMode
	}
	if !validInterval(c.UpdateInterval) {
		slog.Warn("invalid UPDATE_INTERVAL_SECONDS, using default", "value", c.UpdateInterval)
		c.UpdateInterval = def.UpdateInterval
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		slog.Warn("CONFIDENCE_THRESHOLD out of range, using default", "value", c.ConfidenceThreshold)
		c.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if c.MinUpdateInterval <= 0 {
		c.MinUpdateInterval = DefaultMinUpdateInterval
	}
	if c.OCRWorkers <= 0 {
		c.OCRWorkers = 4
	}
	if c.RemoteConfidenceScale <= 0 {
		slog.Warn("invalid REMOTE_CONFIDENCE_SCALE, using 1", "value", c.RemoteConfidenceScale)
		c.RemoteConfidenceScale = 1
	}
	if c.TranslateTimeout <= 0 {
		c.TranslateTimeout = 10 * time.Second
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = 500
	}
	if c.FrameHashDistance < 0 {
		c.FrameHashDistance = 0
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		slog.Warn("invalid integer in environment", "key", key, "value", v)
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		slog.Warn("invalid number in environment", "key", key, "value", v)
	}
	return def
}

func getEnvSeconds(key string, def time.Duration) time.Duration {
	secs := getEnvFloat(key, def.Seconds())
	return time.Duration(secs * float64(time.Second))
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}

func getEnvLevel(key string, def slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		slog.Warn("invalid log level", "key", key, "value", v)
		return def
	}
	return lvl
}
