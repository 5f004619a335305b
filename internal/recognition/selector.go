package recognition

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/GriffinCanCode/game-translator/internal/trace"
)

// DefaultWorkers bounds concurrent per-language recognition calls.
const DefaultWorkers = 4

// Select picks the non-empty result with the strictly highest confidence;
// ties keep the earliest. When every result is empty it returns an empty
// result with confidence 0.
func Select(results []Result) Result {
	var best Result
	found := false
	for _, r := range results {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		if !found || r.Confidence > best.Confidence {
			best, found = r, true
		}
	}
	if !found {
		return Result{}
	}
	return best
}

// Selector runs an engine once per candidate language behind a bounded
// worker pool. Engine failures become empty results and are only logged.
type Selector struct {
	engine Engine
	sem    *semaphore.Weighted
}

// NewSelector creates a selector allowing up to workers concurrent calls.
func NewSelector(engine Engine, workers int) *Selector {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Selector{engine: engine, sem: semaphore.NewWeighted(int64(workers))}
}

// Engine returns the wrapped engine.
func (s *Selector) Engine() Engine { return s.engine }

// Single recognises img in one language.
func (s *Selector) Single(ctx context.Context, img image.Image, lang string) Result {
	return s.recognizeOne(ctx, img, lang)
}

// Recognize recognises img in every candidate language and returns the
// best result according to Select.
func (s *Selector) Recognize(ctx context.Context, img image.Image, candidates []string) Result {
	results := make([]Result, len(candidates))
	var wg sync.WaitGroup
	for i, lang := range candidates {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.sem.Release(1)
			results[i] = s.recognizeOne(ctx, img, lang)
		}()
	}
	wg.Wait()
	return Select(results)
}

func (s *Selector) recognizeOne(ctx context.Context, img image.Image, lang string) (res Result) {
	log := trace.Logger(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Warn("recognition panicked", "engine", s.engine.Name(), "language", lang, "panic", fmt.Sprint(r))
			res = Result{Language: lang}
		}
	}()

	res, err := s.engine.Recognize(ctx, img, lang)
	if err != nil {
		level := slog.LevelWarn
		if IsEngineUnavailable(err) || ctx.Err() != nil {
			level = slog.LevelDebug
		}
		log.Log(ctx, level, "recognition failed", "engine", s.engine.Name(), "language", lang, "error", err)
		return Result{Language: lang}
	}
	if res.Empty() {
		res.Confidence = 0
	}
	return res
}
