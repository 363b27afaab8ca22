package services

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	domain "github.com/hanko-field/namegen/internal/domain"
)

//go:embed fallback_catalog.yaml
var embeddedFallbackCatalog []byte

var errFallbackCatalogInvalid = errors.New("fallback_catalog: invalid catalog")

// FallbackCatalog maps case-folded names to fixed suggestion sets.
// It is immutable after construction and safe for concurrent use.
type FallbackCatalog struct {
	entries map[string]domain.SuggestionSet
	generic domain.SuggestionSet
}

type catalogSuggestion struct {
	ChineseName    string `yaml:"chineseName"`
	Pinyin         string `yaml:"pinyin"`
	ChineseMeaning string `yaml:"chineseMeaning"`
	EnglishMeaning string `yaml:"englishMeaning"`
}

type catalogDocument struct {
	Generic []catalogSuggestion            `yaml:"generic"`
	Names   map[string][]catalogSuggestion `yaml:"names"`
}

// NewFallbackCatalog loads the embedded catalog.
func NewFallbackCatalog() (*FallbackCatalog, error) {
	return ParseFallbackCatalog(embeddedFallbackCatalog)
}

// MustFallbackCatalog loads the embedded catalog and panics if it is malformed.
func MustFallbackCatalog() *FallbackCatalog {
	catalog, err := NewFallbackCatalog()
	if err != nil {
		panic(err)
	}
	return catalog
}

// ParseFallbackCatalog builds a catalog from YAML. Every entry, including the
// required generic entry, must list exactly three complete suggestions.
func ParseFallbackCatalog(data []byte) (*FallbackCatalog, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errFallbackCatalogInvalid, err)
	}

	generic, err := toSuggestionSet("generic", doc.Generic)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]domain.SuggestionSet, len(doc.Names))
	for name, suggestions := range doc.Names {
		key := foldName(name)
		if key == "" {
			return nil, fmt.Errorf("%w: blank name key", errFallbackCatalogInvalid)
		}
		if _, exists := entries[key]; exists {
			return nil, fmt.Errorf("%w: duplicate entry %q", errFallbackCatalogInvalid, name)
		}
		set, err := toSuggestionSet(name, suggestions)
		if err != nil {
			return nil, err
		}
		entries[key] = set
	}

	return &FallbackCatalog{entries: entries, generic: generic}, nil
}

// Lookup returns the entry for the case-folded candidate, or the generic set.
func (c *FallbackCatalog) Lookup(candidate domain.NameCandidate) domain.SuggestionSet {
	if c == nil {
		return domain.SuggestionSet{}
	}
	if set, ok := c.entries[foldName(candidate.String())]; ok {
		return set
	}
	return c.generic
}

// Len reports the number of named entries, excluding the generic set.
func (c *FallbackCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// foldName applies Unicode simple case folding. A fresh Caser is used per call
// because Casers keep internal state.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func toSuggestionSet(name string, suggestions []catalogSuggestion) (domain.SuggestionSet, error) {
	var set domain.SuggestionSet
	if len(suggestions) != domain.SuggestionCount {
		return set, fmt.Errorf("%w: entry %q has %d suggestions, want %d", errFallbackCatalogInvalid, name, len(suggestions), domain.SuggestionCount)
	}
	for i, s := range suggestions {
		suggestion := domain.NameSuggestion{
			ChineseName:    s.ChineseName,
			Pinyin:         s.Pinyin,
			ChineseMeaning: s.ChineseMeaning,
			EnglishMeaning: s.EnglishMeaning,
		}.Trimmed()
		if !suggestion.Valid() {
			return set, fmt.Errorf("%w: entry %q suggestion %d is incomplete", errFallbackCatalogInvalid, name, i)
		}
		set[i] = suggestion
	}
	return set, nil
}
