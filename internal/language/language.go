// Package language holds the static table of recognisable source languages
// and translation targets.
package language

import (
	_ "embed"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

//go:embed languages.yaml
var tableYAML []byte

// Info describes one recognisable source language.
type Info struct {
	Code            string `yaml:"code" json:"code"`               // OCR engine identifier, e.g. "jpn"
	Name            string `yaml:"name" json:"name"`               // display name
	TranslationCode string `yaml:"translation" json:"translation"` // translation service code, e.g. "ja"
}

// Target describes one translation target.
type Target struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

// Table is an ordered, read-only language table. Source order is the
// candidate order used to break confidence ties.
type Table struct {
	sources []Info
	targets []Target
	byCode  map[string]Info
}

type tableFile struct {
	Sources []Info   `yaml:"sources"`
	Targets []Target `yaml:"targets"`
}

// Parse decodes and validates a YAML language table.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse language table: %w", err)
	}
	t := &Table{byCode: make(map[string]Info, len(f.Sources))}
	for _, s := range f.Sources {
		if s.Code == "" {
			return nil, fmt.Errorf("language table: source with empty code")
		}
		if _, dup := t.byCode[s.Code]; dup {
			return nil, fmt.Errorf("language table: duplicate source %q", s.Code)
		}
		if _, err := language.Parse(s.TranslationCode); err != nil {
			return nil, fmt.Errorf("language table: source %q: %w", s.Code, err)
		}
		t.byCode[s.Code] = s
		t.sources = append(t.sources, s)
	}
	for _, tg := range f.Targets {
		if _, err := language.Parse(tg.Code); err != nil {
			return nil, fmt.Errorf("language table: target %q: %w", tg.Code, err)
		}
		t.targets = append(t.targets, tg)
	}
	return t, nil
}

// Default returns the built-in table. It panics if the embedded table is
// malformed, which would be a build defect.
func Default() *Table {
	t, err := Parse(tableYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the source language for an OCR code.
func (t *Table) Lookup(code string) (Info, bool) {
	info, ok := t.byCode[code]
	return info, ok
}

// Sources returns all source languages in table order.
func (t *Table) Sources() []Info {
	return append([]Info(nil), t.sources...)
}

// Targets returns all translation targets in table order.
func (t *Table) Targets() []Target {
	return append([]Target(nil), t.targets...)
}

// HasTarget reports whether code is a known translation target.
func (t *Table) HasTarget(code string) bool {
	for _, tg := range t.targets {
		if strings.EqualFold(tg.Code, code) {
			return true
		}
	}
	return false
}

// Installed returns the table entries whose OCR code appears in available,
// in table order.
func (t *Table) Installed(available []string) []Info {
	have := make(map[string]struct{}, len(available))
	for _, a := range available {
		have[a] = struct{}{}
	}
	var out []Info
	for _, s := range t.sources {
		if _, ok := have[s.Code]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Candidates narrows installed to the codes listed in want, keeping table
// order. An empty want selects every installed language.
func Candidates(installed []Info, want []string) []string {
	allow := make(map[string]struct{}, len(want))
	for _, w := range want {
		allow[w] = struct{}{}
	}
	out := make([]string, 0, len(installed))
	for _, info := range installed {
		if _, ok := allow[info.Code]; len(want) == 0 || ok {
			out = append(out, info.Code)
		}
	}
	return out
}
