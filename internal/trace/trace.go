// Package trace carries trace and span identifiers through context.Context so
// that pipeline cycles, HTTP requests and remote recognition calls share
// log correlation fields.
package trace

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Header and metadata keys used for propagation.
const (
	TraceIDKey      = "x-trace-id"
	SpanIDKey       = "x-span-id"
	ParentSpanIDKey = "x-parent-span-id"
)

type ctxKey struct{}

// Context identifies one span within a trace.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// New starts a fresh trace.
func New() Context {
	return Context{TraceID: newTraceID(), SpanID: newSpanID()}
}

// Child returns a new span in the same trace, parented to c.
func (c Context) Child() Context {
	return Context{TraceID: c.TraceID, SpanID: newSpanID(), ParentSpanID: c.SpanID}
}

// FromContext returns the trace context stored in ctx.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok && tc.TraceID != ""
}

// WithContext stores tc in ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// EnsureContext returns the trace in ctx, starting one if there is none.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	return WithContext(ctx, tc), tc
}

// Trace IDs are 128-bit, span IDs 64-bit, both lower-case hex.
func newTraceID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

func newSpanID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:8])
}

// Span times one unit of work. Stages record how far into the span each
// step finished, e.g. capture, recognize and translate within a cycle.
type Span struct {
	name  string
	tc    Context
	start time.Time

	mu     sync.Mutex
	end    time.Time
	attrs  []slog.Attr
	stages []slog.Attr
}

// StartSpan begins a span, parented to the span already in ctx if any.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	tc := New()
	if parent, ok := FromContext(ctx); ok {
		tc = parent.Child()
	}
	return WithContext(ctx, tc), &Span{name: name, tc: tc, start: time.Now()}
}

// Name returns the span name.
func (s *Span) Name() string { return s.name }

// Context returns the span's identifiers.
func (s *Span) Context() Context { return s.tc }

// Mark records that stage finished now.
func (s *Span) Mark(stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, slog.Duration(stage, time.Since(s.start)))
}

// Stages returns the recorded stage names in order.
func (s *Span) Stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.stages))
	for i, st := range s.stages {
		out[i] = st.Key
	}
	return out
}

// End closes the span. Later calls keep the first end time.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.end.IsZero() {
		s.end = time.Now()
	}
}

// EndAndLog ends the span and logs it at level.
func (s *Span) EndAndLog(level slog.Level) {
	s.End()
	slog.Default().LogAttrs(context.Background(), level, "span finished", slog.Any("span", s))
}

// SetAttr sets or replaces an attribute. Safe for concurrent use.
func (s *Span) SetAttr(key string, val any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.attrs {
		if s.attrs[i].Key == key {
			s.attrs[i].Value = slog.AnyValue(val)
			return
		}
	}
	s.attrs = append(s.attrs, slog.Any(key, val))
}

// Attr returns the value recorded for key.
func (s *Span) Attr(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attrs {
		if a.Key == key {
			return a.Value.Any(), true
		}
	}
	return nil, false
}

// Elapsed is the span duration, or the time so far while it is open.
func (s *Span) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed()
}

func (s *Span) elapsed() time.Duration {
	if s.end.IsZero() {
		return time.Since(s.start)
	}
	return s.end.Sub(s.start)
}

// LogValue implements slog.LogValuer.
func (s *Span) LogValue() slog.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := append(s.tc.attrs(), slog.String("name", s.name), slog.Duration("elapsed", s.elapsed()))
	attrs = append(attrs, s.attrs...)
	if len(s.stages) > 0 {
		attrs = append(attrs, slog.Attr{Key: "stages", Value: slog.GroupValue(s.stages...)})
	}
	return slog.GroupValue(attrs...)
}

func (c Context) attrs() []slog.Attr {
	out := []slog.Attr{slog.String("trace_id", c.TraceID), slog.String("span_id", c.SpanID)}
	if c.ParentSpanID != "" {
		out = append(out, slog.String("parent_span_id", c.ParentSpanID))
	}
	return out
}

// Logger returns the default logger with the trace fields from ctx attached.
func Logger(ctx context.Context) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	args := make([]any, 0, 3)
	for _, a := range tc.attrs() {
		args = append(args, a)
	}
	return slog.Default().With(args...)
}
