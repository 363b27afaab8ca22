package services

import (
	"errors"

	domain "github.com/hanko-field/namegen/internal/domain"
	"github.com/hanko-field/namegen/internal/platform/llm"
	"github.com/hanko-field/namegen/internal/platform/textutil"
)

// AlternateMarker is appended to the Chinese name of padded suggestions.
const AlternateMarker = " (alternate)"

// Fallback reasons recorded on GenerationOutcome.
const (
	FallbackReasonTimeout      = "timeout"
	FallbackReasonUpstream     = "upstream_error"
	FallbackReasonMalformed    = "malformed_payload"
	FallbackReasonNoValid      = "no_valid_records"
	FallbackReasonUnclassified = "unclassified_error"
)

// Normalize turns parsed records, or the error that prevented them, into exactly
// three complete suggestions. It never fails: any upstream error and any
// record list without a valid entry resolve to the fallback catalog.
func Normalize(records []domain.NameSuggestion, upstreamErr error, candidate domain.NameCandidate, catalog *FallbackCatalog) domain.GenerationOutcome {
	outcome := domain.GenerationOutcome{Candidate: candidate}

	if upstreamErr != nil {
		return fallbackOutcome(outcome, classifyUpstreamError(upstreamErr), candidate, catalog)
	}

	valid := make([]domain.NameSuggestion, 0, domain.SuggestionCount)
	for _, record := range records {
		cleaned := sanitizeSuggestion(record)
		if !cleaned.Valid() {
			continue
		}
		valid = append(valid, cleaned)
		if len(valid) == domain.SuggestionCount {
			break
		}
	}
	if len(valid) == 0 {
		return fallbackOutcome(outcome, FallbackReasonNoValid, candidate, catalog)
	}

	// Each pad copies the previous entry, so a single valid record yields
	// markers of increasing length.
	for len(valid) < domain.SuggestionCount {
		last := valid[len(valid)-1]
		last.ChineseName += AlternateMarker
		valid = append(valid, last)
		outcome.Padded++
	}

	copy(outcome.Set[:], valid)
	outcome.Source = domain.GenerationSourceModel
	return outcome
}

func fallbackOutcome(outcome domain.GenerationOutcome, reason string, candidate domain.NameCandidate, catalog *FallbackCatalog) domain.GenerationOutcome {
	outcome.Set = catalog.Lookup(candidate)
	outcome.Source = domain.GenerationSourceFallback
	outcome.FallbackReason = reason
	return outcome
}

func sanitizeSuggestion(s domain.NameSuggestion) domain.NameSuggestion {
	return domain.NameSuggestion{
		ChineseName:    textutil.StripMarkup(s.ChineseName),
		Pinyin:         textutil.StripMarkup(s.Pinyin),
		ChineseMeaning: textutil.StripMarkup(s.ChineseMeaning),
		EnglishMeaning: textutil.StripMarkup(s.EnglishMeaning),
	}
}

func classifyUpstreamError(err error) string {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return FallbackReasonTimeout
	case errors.Is(err, llm.ErrUpstream):
		return FallbackReasonUpstream
	case errors.Is(err, ErrMalformedPayload):
		return FallbackReasonMalformed
	default:
		return FallbackReasonUnclassified
	}
}
