// Package translate converts recognised text into the target language. The
// Translator front memoises successful results; failures come back as a
// visible sentinel string and are never cached.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/GriffinCanCode/game-translator/internal/errors"
	"github.com/GriffinCanCode/game-translator/internal/resilience"
)

// Defaults for the public Google endpoint.
const (
	DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"
	DefaultTimeout  = 10 * time.Second

	maxErrorBody = 512
)

// Client is an external translation capability.
type Client interface {
	Translate(ctx context.Context, text, src, dst string) (string, error)
}

// TranslationError reports a network, quota or unsupported-language fault.
type TranslationError struct {
	Reason string
	Err    error
}

func (e *TranslationError) Error() string { return "translation failed: " + e.Reason }

func (e *TranslationError) Unwrap() error { return e.Err }

// Google calls the keyless gtx endpoint. Transient faults are retried with
// backoff behind a circuit breaker.
type Google struct {
	endpoint string
	http     *http.Client
	breaker  *resilience.Breaker
	retry    resilience.RetryConfig
}

// NewGoogle creates a client for endpoint; empty values fall back to defaults.
func NewGoogle(endpoint string, timeout time.Duration) *Google {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Google{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		breaker:  resilience.NewNamed("translate", resilience.TranslationConfig()),
		retry:    resilience.TranslationRetryConfig(),
	}
}

// Health reports the circuit breaker guarding the translation API.
func (g *Google) Health() resilience.Snapshot { return g.breaker.Snapshot() }

// Translate translates text from src to dst. Every failure is a *TranslationError.
func (g *Google) Translate(ctx context.Context, text, src, dst string) (string, error) {
	var out string
	err := resilience.Retry(ctx, g.retry, func() error {
		return g.breaker.Execute(func() error {
			s, err := g.do(ctx, text, src, dst)
			out = s
			return err
		})
	})
	if err != nil {
		return "", &TranslationError{Reason: reason(err), Err: err}
	}
	return out, nil
}

func (g *Google) do(ctx context.Context, text, src, dst string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", src)
	q.Set("tl", dst)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.InvalidArgument, "build request")
	}
	resp, err := g.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", apperrors.Wrap(err, apperrors.Unavailable, "translation service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", statusError(resp.StatusCode, strings.TrimSpace(string(body)), src, dst)
	}

	var payload []any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", apperrors.Wrap(err, apperrors.TranslationFailed, "malformed response")
	}
	return joinSegments(payload)
}

func statusError(code int, body, src, dst string) *apperrors.AppError {
	var err *apperrors.AppError
	switch {
	case code == http.StatusTooManyRequests:
		err = apperrors.New(apperrors.TranslationRateLimited, "quota exceeded")
	case code >= 500:
		err = apperrors.Newf(apperrors.Unavailable, "service error (HTTP %d)", code)
	case code == http.StatusBadRequest:
		err = apperrors.Newf(apperrors.TranslationFailed, "unsupported language pair %s->%s", src, dst)
	default:
		err = apperrors.Newf(apperrors.TranslationFailed, "unexpected HTTP %d", code)
	}
	err.WithMetadata("status", strconv.Itoa(code))
	if body != "" {
		err.WithMetadata("body", body)
	}
	return err
}

// joinSegments concatenates the translated segments of a gtx response,
// shaped [[["translated","source",...],...],...].
func joinSegments(payload []any) (string, error) {
	if len(payload) == 0 {
		return "", apperrors.New(apperrors.TranslationFailed, "empty response")
	}
	segments, ok := payload[0].([]any)
	if !ok {
		return "", apperrors.New(apperrors.TranslationFailed, "response has no segments")
	}
	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", apperrors.New(apperrors.TranslationFailed, "response has no translated text")
	}
	return b.String(), nil
}

func reason(err error) string {
	if errors.Is(err, resilience.ErrOpen) {
		return "translation service unavailable, retrying later"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return fmt.Sprintf("%s (%s)", appErr.Message, strings.ToLower(appErr.Code.String()))
	}
	return err.Error()
}
