package pipeline

import (
	"time"

	"github.com/GriffinCanCode/game-translator/internal/config"
	"github.com/GriffinCanCode/game-translator/internal/history"
	"github.com/GriffinCanCode/game-translator/internal/screen"
)

// Kind identifies a pipeline message.
type Kind string

const (
	KindPreview    Kind = "preview"
	KindPartial    Kind = "partial"
	KindTranslated Kind = "translated"
	KindStatus     Kind = "status"
	KindWarning    Kind = "warning"
)

// Message is one typed event from the pipeline to the presentation layer.
// Exactly one payload field is set, matching Kind.
type Message struct {
	Kind       Kind           `json:"type"`
	Time       time.Time      `json:"time"`
	Preview    *Preview       `json:"preview,omitempty"`
	Partial    *Partial       `json:"partial,omitempty"`
	Translated *history.Event `json:"translated,omitempty"`
	Status     *Status        `json:"status,omitempty"`
	Warning    string         `json:"warning,omitempty"`
}

// Preview is a downscaled PNG of the captured frame.
type Preview struct {
	PNG    []byte `json:"png"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Partial is a confidence-only update for text below the threshold.
type Partial struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Status describes the scheduler.
type Status struct {
	State        State          `json:"state"`
	Session      string         `json:"session,omitempty"`
	Region       *screen.Region `json:"region,omitempty"`
	Options      config.Options `json:"options"`
	Candidates   []string       `json:"candidates"`
	Cycles       uint64         `json:"cycles"`
	Translations uint64         `json:"translations"`
}

func newMessage(kind Kind) Message {
	return Message{Kind: kind, Time: time.Now()}
}
