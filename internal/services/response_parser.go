package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	domain "github.com/hanko-field/namegen/internal/domain"
)

// ErrMalformedPayload indicates the model output could not be read as a suggestion list.
var ErrMalformedPayload = errors.New("response_parser: malformed payload")

// Matches an opening ```json fence with its optional newline, or a closing
// fence with its optional preceding newline. Alternation is leftmost-first.
var codeFencePattern = regexp.MustCompile("```json\n?|\n?```")

// StripCodeFences removes markdown code fences the model may wrap around JSON.
func StripCodeFences(raw string) string {
	return strings.TrimSpace(codeFencePattern.ReplaceAllString(raw, ""))
}

// ParseSuggestions decodes model output into suggestion records.
// Records are returned as-is; filtering happens in Normalize.
func ParseSuggestions(raw string) ([]domain.NameSuggestion, error) {
	cleaned := StripCodeFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedPayload)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if envelope == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedPayload)
	}

	rawNames, ok := envelope["names"]
	if !ok {
		return nil, fmt.Errorf("%w: names field missing", ErrMalformedPayload)
	}
	trimmed := bytes.TrimSpace(rawNames)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: names is not an array", ErrMalformedPayload)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	out := make([]domain.NameSuggestion, 0, len(records))
	for _, record := range records {
		out = append(out, decodeSuggestionRecord(record))
	}
	return out, nil
}

// decodeSuggestionRecord reads the four known fields, leaving any field that is
// absent or not a JSON string empty.
func decodeSuggestionRecord(raw json.RawMessage) domain.NameSuggestion {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.NameSuggestion{}
	}
	return domain.NameSuggestion{
		ChineseName:    stringField(fields, "chineseName"),
		Pinyin:         stringField(fields, "pinyin"),
		ChineseMeaning: stringField(fields, "chineseMeaning"),
		EnglishMeaning: stringField(fields, "englishMeaning"),
	}
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}
