// Package history keeps the bounded, in-memory log of accepted translations.
package history

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of events kept before the oldest is evicted.
const DefaultCapacity = 500

// Event is one accepted translation. It is immutable once appended.
type Event struct {
	ID                 uuid.UUID `json:"id"`
	Timestamp          string    `json:"timestamp"` // HH:MM:SS, local time
	Date               string    `json:"date"`      // YYYY-MM-DD, local time
	SourceText         string    `json:"source_text"`
	SourceLanguage     string    `json:"source_language"`
	SourceLanguageName string    `json:"source_language_name,omitempty"`
	TranslatedText     string    `json:"translated_text"`
	TargetLanguage     string    `json:"target_language"`
	Confidence         float64   `json:"confidence"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewEvent stamps a new event at the given time.
func NewEvent(at time.Time, sourceText, sourceLang, sourceName, translated, targetLang string, confidence float64) Event {
	return Event{
		ID:                 uuid.New(),
		Timestamp:          at.Format(time.TimeOnly),
		Date:               at.Format(time.DateOnly),
		SourceText:         sourceText,
		SourceLanguage:     sourceLang,
		SourceLanguageName: sourceName,
		TranslatedText:     translated,
		TargetLanguage:     targetLang,
		Confidence:         confidence,
		CreatedAt:          at,
	}
}

// Stats summarises the log.
type Stats struct {
	Total            int    `json:"total"`
	Today            int    `json:"today"`
	TopLanguage      string `json:"top_language,omitempty"`
	TopLanguageCount int    `json:"top_language_count"`
}

// Log is a FIFO of events bounded by capacity. It is safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	entries  []Event
	capacity int
}

// New creates a log holding at most capacity events.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{entries: make([]Event, 0, capacity), capacity: capacity}
}

// Append adds e, evicting the oldest events beyond capacity.
func (l *Log) Append(e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// Entries returns a copy of all events, oldest first.
func (l *Log) Entries() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}

// Latest returns the most recent event.
func (l *Log) Latest() (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Event{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Search returns events whose source or translated text contains keyword,
// ignoring case. An empty keyword matches everything.
func (l *Log) Search(keyword string) []Event {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	return l.filter(func(e Event) bool {
		return kw == "" ||
			strings.Contains(strings.ToLower(e.SourceText), kw) ||
			strings.Contains(strings.ToLower(e.TranslatedText), kw)
	})
}

// FilterLanguage returns events recognised in the given source language.
func (l *Log) FilterLanguage(code string) []Event {
	return l.filter(func(e Event) bool { return e.SourceLanguage == code })
}

func (l *Log) filter(keep func(Event) bool) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, e := range l.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Stats counts events, events dated today relative to now, and the most
// frequent source language. Ties go to the language seen first.
func (l *Log) Stats(now time.Time) Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	today := now.Format(time.DateOnly)
	st := Stats{Total: len(l.entries)}
	counts := make(map[string]int)
	var order []string
	for _, e := range l.entries {
		if e.Date == today {
			st.Today++
		}
		name := e.SourceLanguageName
		if name == "" {
			name = e.SourceLanguage
		}
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}
	for _, name := range order {
		if counts[name] > st.TopLanguageCount {
			st.TopLanguage, st.TopLanguageCount = name, counts[name]
		}
	}
	return st
}

// Clear removes every event.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = l.entries[:0]
	l.mu.Unlock()
}

// Len returns the number of stored events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Capacity returns the maximum number of stored events.
func (l *Log) Capacity() int { return l.capacity }
