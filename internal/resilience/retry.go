package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/GriffinCanCode/game-translator/internal/errors"
	"github.com/GriffinCanCode/game-translator/internal/trace"
)

// Retry defaults.
const (
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultJitterFactor = 0.2

	// Translation runs inside a pipeline cycle; keep the worst case near one
	// second so a flaky API cannot stall the loop for long.
	TranslationMaxRetries = 2
	TranslationBaseDelay  = 200 * time.Millisecond
	TranslationMaxDelay   = time.Second
)

// RetryConfig controls Retry.
type RetryConfig struct {
	MaxRetries   int // attempts after the first
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // spread around each delay, 0.2 = ±10%
	IsRetryable  func(error) bool
}

// DefaultRetryConfig returns general-purpose settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  IsTransient,
	}
}

// TranslationRetryConfig returns short settings for in-cycle translation calls.
func TranslationRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   TranslationMaxRetries,
		BaseDelay:    TranslationBaseDelay,
		MaxDelay:     TranslationMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  IsTransient,
	}
}

// IsTransient reports whether err is worth another attempt: retryable
// AppErrors, transient gRPC statuses, network errors and deadlines. An open
// breaker and a cancelled context are final.
func IsTransient(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, ErrOpen):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return apperrors.IsRetryable(err)
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Retry calls fn until it succeeds, returns a non-retryable error, or
// MaxRetries extra attempts are spent. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil || attempt >= cfg.MaxRetries || !cfg.IsRetryable(err) {
			return err
		}

		delay := cfg.delay(attempt)
		trace.Logger(ctx).Debug("retrying", "attempt", attempt+1, "max", cfg.MaxRetries, "delay", delay, "error", err)
		timer.Reset(delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// delay is BaseDelay doubled per attempt, capped at MaxDelay, with jitter.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := min(c.BaseDelay<<min(attempt, 16), c.MaxDelay)
	if d <= 0 {
		d = c.MaxDelay
	}
	spread := float64(d) * c.JitterFactor * (rand.Float64() - 0.5)
	return d + time.Duration(spread)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = DefaultJitterFactor
	}
	if c.IsRetryable == nil {
		c.IsRetryable = IsTransient
	}
	return c
}
