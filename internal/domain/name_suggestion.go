package domain

import (
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// SuggestionCount is the number of suggestions returned for every accepted request.
const SuggestionCount = 3

// MaxNameLength bounds the trimmed name, counted in characters.
const MaxNameLength = 50

var (
	// ErrEmptyName indicates the name was blank after trimming.
	ErrEmptyName = errors.New("name_validation: empty name")
	// ErrNameTooLong indicates the name exceeds MaxNameLength characters.
	ErrNameTooLong = errors.New("name_validation: name too long")
	// ErrInvalidCharacters indicates the name contains characters outside the allowed set.
	ErrInvalidCharacters = errors.New("name_validation: invalid characters")
)

// NameCandidate is a trimmed Latin-alphabet name that passed validation.
// ParseNameCandidate is the only way to obtain a non-zero value.
type NameCandidate struct {
	latin string
}

// ParseNameCandidate trims raw and checks it against the accepted name shape:
// ASCII letters, whitespace, hyphens, and apostrophes, at most MaxNameLength
// characters.
func ParseNameCandidate(raw string) (NameCandidate, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NameCandidate{}, ErrEmptyName
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return NameCandidate{}, ErrNameTooLong
	}
	for _, r := range trimmed {
		if !allowedNameRune(r) {
			return NameCandidate{}, ErrInvalidCharacters
		}
	}
	return NameCandidate{latin: trimmed}, nil
}

func allowedNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r == '-', r == '\'':
		return true
	default:
		return unicode.IsSpace(r)
	}
}

// String returns the validated name.
func (c NameCandidate) String() string { return c.latin }

// IsZero reports whether the candidate was never populated.
func (c NameCandidate) IsZero() bool { return c.latin == "" }

// NameSuggestion is one generated Chinese name with its reading and meanings.
type NameSuggestion struct {
	ChineseName    string `json:"chineseName"`
	Pinyin         string `json:"pinyin"`
	ChineseMeaning string `json:"chineseMeaning"`
	EnglishMeaning string `json:"englishMeaning"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (s NameSuggestion) Trimmed() NameSuggestion {
	return NameSuggestion{
		ChineseName:    strings.TrimSpace(s.ChineseName),
		Pinyin:         strings.TrimSpace(s.Pinyin),
		ChineseMeaning: strings.TrimSpace(s.ChineseMeaning),
		EnglishMeaning: strings.TrimSpace(s.EnglishMeaning),
	}
}

// Valid reports whether all four fields carry non-blank text.
func (s NameSuggestion) Valid() bool {
	t := s.Trimmed()
	return t.ChineseName != "" && t.Pinyin != "" && t.ChineseMeaning != "" && t.EnglishMeaning != ""
}

// SuggestionSet holds exactly SuggestionCount suggestions.
type SuggestionSet [SuggestionCount]NameSuggestion

// Slice returns the suggestions as a slice in order.
func (s SuggestionSet) Slice() []NameSuggestion {
	out := make([]NameSuggestion, SuggestionCount)
	copy(out, s[:])
	return out
}

// GenerationSource records where a suggestion set came from.
type GenerationSource string

const (
	// GenerationSourceModel indicates the suggestions were produced by the language model.
	GenerationSourceModel GenerationSource = "model"
	// GenerationSourceFallback indicates the suggestions came from the static catalog.
	GenerationSourceFallback GenerationSource = "fallback"
)

// GenerationOutcome is the result of one pass through the generation pipeline.
// Source and FallbackReason are internal bookkeeping and never sent to clients.
type GenerationOutcome struct {
	ID             string
	Candidate      NameCandidate
	Set            SuggestionSet
	Source         GenerationSource
	FallbackReason string
	Padded         int
	Model          string
	Latency        time.Duration
	GeneratedAt    time.Time
}
