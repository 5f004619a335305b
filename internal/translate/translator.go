package translate

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/GriffinCanCode/game-translator/internal/trace"
)

// ErrorPrefix starts every sentinel string returned in place of a translation.
const ErrorPrefix = "translation error: "

// IsErrorText reports whether s is a sentinel produced by a failed translation.
func IsErrorText(s string) bool {
	return strings.HasPrefix(s, ErrorPrefix)
}

type cacheKey struct {
	text, src, dst string
}

// Translator memoises (text, src, dst) -> translation for a session. Entries
// are never evicted or invalidated.
type Translator struct {
	client Client

	mu    sync.RWMutex
	cache map[cacheKey]string
}

// NewTranslator wraps client with a cache.
func NewTranslator(client Client) *Translator {
	return &Translator{client: client, cache: make(map[cacheKey]string)}
}

// Normalize trims surrounding whitespace and applies Unicode NFC. Case is kept.
func Normalize(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Translate returns the cached translation or asks the client. On failure
// it returns ErrorPrefix followed by the reason and caches nothing.
func (t *Translator) Translate(ctx context.Context, text, src, dst string) string {
	key := cacheKey{text: Normalize(text), src: src, dst: dst}
	if key.text == "" {
		return ""
	}

	t.mu.RLock()
	cached, ok := t.cache[key]
	t.mu.RUnlock()
	if ok {
		return cached
	}

	out, err := t.client.Translate(ctx, key.text, src, dst)
	if err != nil {
		trace.Logger(ctx).Warn("translation failed", "src", src, "dst", dst, "error", err)
		return ErrorPrefix + failureReason(err)
	}

	t.mu.Lock()
	t.cache[key] = out
	t.mu.Unlock()
	return out
}

// Cached reports whether a translation for the given inputs is memoised.
func (t *Translator) Cached(text, src, dst string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.cache[cacheKey{text: Normalize(text), src: src, dst: dst}]
	return ok
}

// Len returns the number of cached translations.
func (t *Translator) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.cache)
}

func failureReason(err error) string {
	var te *TranslationError
	if errors.As(err, &te) {
		return te.Reason
	}
	return err.Error()
}
