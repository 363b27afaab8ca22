package services

import (
	"context"

	domain "github.com/hanko-field/namegen/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	NameCandidate     = domain.NameCandidate
	NameSuggestion    = domain.NameSuggestion
	SuggestionSet     = domain.SuggestionSet
	GenerationOutcome = domain.GenerationOutcome
)

// CompletionProvider produces raw model text for a prompt.
type CompletionProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NameGenerationService turns a submitted name into three Chinese name suggestions.
type NameGenerationService interface {
	Generate(ctx context.Context, cmd NameGenerationCommand) (GenerationOutcome, error)
}

// NameGenerationCommand carries the raw name exactly as submitted.
type NameGenerationCommand struct {
	Name string
}
