package resilience

import "time"

// Circuit breaker configuration constants
const (
	// Default configuration
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Remote recognition: fail fast so cycles fall back to empty results quickly
	RecognitionThreshold         = 3
	RecognitionResetTimeout      = 10 * time.Second
	RecognitionHalfOpenSuccesses = 1

	// Translation API: tolerate bursts of quota errors before opening
	TranslationThreshold         = 5
	TranslationResetTimeout      = 20 * time.Second
	TranslationHalfOpenSuccesses = 2
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close

	// Trips decides whether an error counts as a failure. Nil counts every error.
	Trips func(error) bool
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// RecognitionConfig returns aggressive settings for the remote recognition backend.
func RecognitionConfig() Config {
	return Config{
		Threshold:         RecognitionThreshold,
		ResetTimeout:      RecognitionResetTimeout,
		HalfOpenSuccesses: RecognitionHalfOpenSuccesses,
		Trips:             IsTransient,
	}
}

// TranslationConfig returns settings for the translation API. Only transient
// faults trip the breaker; an unsupported language pair does not.
func TranslationConfig() Config {
	return Config{
		Threshold:         TranslationThreshold,
		ResetTimeout:      TranslationResetTimeout,
		HalfOpenSuccesses: TranslationHalfOpenSuccesses,
		Trips:             IsTransient,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
