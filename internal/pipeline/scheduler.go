// Package pipeline runs the capture, preprocess, recognize, deduplicate and
// translate loop over a screen region and publishes a typed message stream
// describing each cycle.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/GriffinCanCode/game-translator/internal/changedetect"
	"github.com/GriffinCanCode/game-translator/internal/config"
	"github.com/GriffinCanCode/game-translator/internal/history"
	"github.com/GriffinCanCode/game-translator/internal/language"
	"github.com/GriffinCanCode/game-translator/internal/preprocess"
	"github.com/GriffinCanCode/game-translator/internal/recognition"
	"github.com/GriffinCanCode/game-translator/internal/screen"
	"github.com/GriffinCanCode/game-translator/internal/syncx"
	"github.com/GriffinCanCode/game-translator/internal/trace"
	"github.com/GriffinCanCode/game-translator/internal/translate"
)

// State is the scheduler lifecycle state.
type State string

const (
	Idle    State = "idle"
	Running State = "running"
)

// Outcome records how a cycle ended.
type Outcome string

const (
	OutcomeNoRegion      Outcome = "no_region"
	OutcomeCaptureFailed Outcome = "capture_failed"
	OutcomeCancelled     Outcome = "cancelled"
	OutcomeSimilarFrame  Outcome = "similar_frame"
	OutcomeEmpty         Outcome = "empty"
	OutcomeUnchanged     Outcome = "unchanged"
	OutcomeLowConfidence Outcome = "low_confidence"
	OutcomeTranslated    Outcome = "translated"
	OutcomePanicked      Outcome = "panicked"
)

// Scheduler defaults.
const (
	PreviewMaxSide     = 480
	DefaultEventBuffer = 64
)

// Deps are the collaborators a Scheduler drives.
type Deps struct {
	Source     screen.Source
	Selector   *recognition.Selector
	Engines    map[string]*recognition.Selector // by Options.OCREngine; Selector when absent
	Translator *translate.Translator
	History    *history.Log
	Languages  *language.Table
}

// Settings are fixed for the scheduler's lifetime.
type Settings struct {
	Region            screen.Region // initial region; zero for none
	Candidates        []string      // auto-mode languages, in tie-break order
	MinInterval       time.Duration
	SkipSimilarFrames bool
	FrameHashDistance int
	EventBuffer       int
	Preprocess        *preprocess.Options // nil uses preprocess.DefaultOptions
}

// Scheduler owns the capture loop. Cycles run sequentially on one goroutine;
// region and options may be replaced from any goroutine and take effect on
// the next cycle.
type Scheduler struct {
	source      screen.Source
	selector    *recognition.Selector
	engines     map[string]*recognition.Selector
	translator  *translate.Translator
	history     *history.Log
	langs       *language.Table
	prep        preprocess.Options
	candidates  []string
	minInterval time.Duration
	gate        *frameGate

	region   *syncx.RWGuard[screen.Region]
	options  *syncx.RWGuard[config.Options]
	preview  syncx.Latest[Preview]
	detector changedetect.Detector

	captureFailing atomic.Bool
	cycles         atomic.Uint64
	translations   atomic.Uint64

	lifecycle sync.Mutex // serialises Start, Stop and Toggle
	mu        sync.RWMutex
	state     State
	session   string
	cancel    context.CancelFunc
	done      chan struct{}

	events chan Message
}

// New creates an idle scheduler.
func New(deps Deps, opts config.Options, settings Settings) *Scheduler {
	if deps.Languages == nil {
		deps.Languages = language.Default()
	}
	prep := preprocess.DefaultOptions()
	if settings.Preprocess != nil {
		prep = *settings.Preprocess
	}
	if settings.EventBuffer <= 0 {
		settings.EventBuffer = DefaultEventBuffer
	}
	if settings.MinInterval <= 0 {
		settings.MinInterval = config.DefaultMinUpdateInterval
	}

	s := &Scheduler{
		source:      deps.Source,
		selector:    deps.Selector,
		engines:     deps.Engines,
		translator:  deps.Translator,
		history:     deps.History,
		langs:       deps.Languages,
		prep:        prep,
		candidates:  slices.Clone(settings.Candidates),
		minInterval: settings.MinInterval,
		region:      syncx.NewGuard(settings.Region),
		options:     syncx.NewGuard(opts.Normalize()),
		state:       Idle,
		events:      make(chan Message, settings.EventBuffer),
	}
	if settings.SkipSimilarFrames {
		s.gate = newFrameGate(settings.FrameHashDistance)
	}
	return s
}

// Events returns the message stream. Messages are dropped when the buffer
// is full; the loop never waits for a slow consumer.
func (s *Scheduler) Events() <-chan Message {
	return s.events
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start begins capturing. It fails with a CaptureError when no valid region
// is set. Starting a running scheduler is a no-op. The loop outlives ctx
// cancellation and ends only through Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.start(ctx)
}

// Stop ends capturing and waits for the in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stop()
}

// Toggle stops a running scheduler or starts an idle one. Without a valid
// region the scheduler stays idle, a warning is emitted and the
// CaptureError is returned.
func (s *Scheduler) Toggle(ctx context.Context) (State, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.State() == Running {
		s.stop()
		return Idle, nil
	}
	if err := s.start(ctx); err != nil {
		return Idle, err
	}
	return Running, nil
}

func (s *Scheduler) start(ctx context.Context) error {
	if s.State() == Running {
		return nil
	}
	region := s.region.Get()
	if err := region.Validate(); err != nil {
		s.emitWarning("select a capture region before starting")
		return err
	}

	s.detector.Reset()
	if s.gate != nil {
		s.gate.reset()
	}
	s.captureFailing.Store(false)

	session := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = trace.WithContext(runCtx, trace.New())
	done := make(chan struct{})

	s.mu.Lock()
	s.state, s.session, s.cancel, s.done = Running, session, cancel, done
	s.mu.Unlock()

	trace.Logger(runCtx).Info("capture started", "session", session, "region", region.String())
	go s.loop(runCtx, done)
	s.emitStatus()
	return nil
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	cancel, done, session := s.cancel, s.done, s.session
	s.state, s.session, s.cancel, s.done = Idle, "", nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	slog.Info("capture stopped", "session", session)
	s.emitStatus()
}

func (s *Scheduler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.RunCycle(ctx)
		timer.Reset(s.options.Get().Interval(s.minInterval))
	}
}

// SetRegion replaces the capture region. Regions smaller than the minimum
// are rejected and leave the current region in place.
func (s *Scheduler) SetRegion(r screen.Region) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.region.Set(r)
	if s.gate != nil {
		s.gate.reset()
	}
	slog.Info("capture region set", "region", r.String())
	s.emitStatus()
	return nil
}

// Region returns the current region, if one is set.
func (s *Scheduler) Region() (screen.Region, bool) {
	r := s.region.Get()
	return r, r.Valid()
}

// SetOptions validates and replaces the options record.
func (s *Scheduler) SetOptions(o config.Options) error {
	o = o.Normalize()
	if err := o.Validate(s.langs); err != nil {
		return err
	}
	s.options.Set(o)
	slog.Info("options updated", "mode", o.OCRMode, "source", o.SourceLanguage, "target", o.TargetLanguage)
	s.emitStatus()
	return nil
}

// Options returns the current options record.
func (s *Scheduler) Options() config.Options {
	return s.options.Get()
}

// Preview returns the most recent preview frame.
func (s *Scheduler) Preview() (Preview, bool) {
	p, version := s.preview.Load()
	return p, version > 0
}

// Status snapshots the scheduler.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	state, session := s.state, s.session
	s.mu.RUnlock()

	st := Status{
		State:        state,
		Session:      session,
		Options:      s.options.Get(),
		Candidates:   slices.Clone(s.candidates),
		Cycles:       s.cycles.Load(),
		Translations: s.translations.Load(),
	}
	if r, ok := s.Region(); ok {
		st.Region = &r
	}
	return st
}

// RunCycle performs one capture cycle. It never panics and never returns an
// error: failures end the cycle and are logged or surfaced as messages.
func (s *Scheduler) RunCycle(ctx context.Context) (outcome Outcome) {
	ctx, span := trace.StartSpan(ctx, "pipeline_cycle")
	s.cycles.Add(1)
	defer func() {
		span.SetAttr("outcome", string(outcome))
		span.EndAndLog(slog.LevelDebug)
	}()
	defer func() {
		if r := recover(); r != nil {
			trace.Logger(ctx).Error("pipeline cycle panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			outcome = OutcomePanicked
		}
	}()
	return s.cycle(ctx, span)
}

func (s *Scheduler) cycle(ctx context.Context, span *trace.Span) Outcome {
	log := trace.Logger(ctx)
	region, ok := s.Region()
	if !ok {
		return OutcomeNoRegion
	}
	opts := s.options.Get()

	frame, err := s.source.Capture(ctx, region)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled
		}
		if !s.captureFailing.Swap(true) {
			log.Error("capture failed", "region", region.String(), "error", err)
			s.emitWarning("capture failed: " + err.Error())
		} else {
			log.Debug("capture still failing", "error", err)
		}
		return OutcomeCaptureFailed
	}
	if s.captureFailing.Swap(false) {
		log.Info("capture recovered", "region", region.String())
	}
	span.Mark("capture")
	s.publishPreview(ctx, frame)

	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	if s.gate != nil && s.gate.similar(frame) {
		return OutcomeSimilarFrame
	}

	var img image.Image = frame
	if opts.PreprocessingEnabled {
		img = preprocess.Process(frame, s.prep)
		span.Mark("preprocess")
	}

	res := s.recognize(ctx, img, opts)
	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	span.Mark("recognize")
	span.SetAttr("language", res.Language)
	span.SetAttr("confidence", res.Confidence)

	if !s.detector.Accept(res.Text) {
		if res.Empty() {
			return OutcomeEmpty
		}
		return OutcomeUnchanged
	}

	if res.Confidence < opts.ConfidenceThreshold {
		m := newMessage(KindPartial)
		m.Partial = &Partial{Language: res.Language, Confidence: res.Confidence}
		s.emit(m)
		return OutcomeLowConfidence
	}

	srcCode, srcName := "auto", res.Language
	if info, ok := s.langs.Lookup(res.Language); ok {
		srcCode, srcName = info.TranslationCode, info.Name
	}
	translated := s.translator.Translate(ctx, res.Text, srcCode, opts.TargetLanguage)
	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	span.Mark("translate")

	ev := history.NewEvent(time.Now(), res.Text, res.Language, srcName, translated, opts.TargetLanguage, res.Confidence)
	s.history.Append(ev)
	s.translations.Add(1)

	m := newMessage(KindTranslated)
	m.Translated = &ev
	s.emit(m)
	log.Info("translated", "language", res.Language, "confidence", res.Confidence, "failed", translate.IsErrorText(translated))
	return OutcomeTranslated
}

func (s *Scheduler) recognize(ctx context.Context, img image.Image, opts config.Options) recognition.Result {
	sel := s.selectorFor(opts.OCREngine)
	if opts.AutoMode() {
		if len(s.candidates) > 0 {
			return sel.Recognize(ctx, img, s.candidates)
		}
		trace.Logger(ctx).Debug("no candidate languages installed, using source language")
	}
	return sel.Single(ctx, img, opts.SourceLanguage)
}

func (s *Scheduler) selectorFor(engine string) *recognition.Selector {
	if sel, ok := s.engines[engine]; ok {
		return sel
	}
	return s.selector
}

func (s *Scheduler) publishPreview(ctx context.Context, frame *image.NRGBA) {
	thumb := imaging.Fit(frame, PreviewMaxSide, PreviewMaxSide, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		trace.Logger(ctx).Warn("preview encode failed", "error", err)
		return
	}
	p := Preview{PNG: buf.Bytes(), Width: thumb.Bounds().Dx(), Height: thumb.Bounds().Dy()}
	s.preview.Publish(p)

	m := newMessage(KindPreview)
	m.Preview = &p
	s.emit(m)
}

func (s *Scheduler) emitStatus() {
	st := s.Status()
	m := newMessage(KindStatus)
	m.Status = &st
	s.emit(m)
}

func (s *Scheduler) emitWarning(text string) {
	m := newMessage(KindWarning)
	m.Warning = text
	s.emit(m)
}

// emit sends a message without blocking.
func (s *Scheduler) emit(m Message) {
	select {
	case s.events <- m:
	default:
		slog.Debug("pipeline event buffer full, dropping", "type", m.Kind)
	}
}
