package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/hanko-field/namegen/internal/domain"
)

var (
	errNameGenerationCatalogRequired = errors.New("name_generation: fallback catalog is required")
	errNameGenerationClockRequired   = errors.New("name_generation: clock is required")
)

// ErrNameGenerationUnavailable indicates the service was used without being constructed.
var ErrNameGenerationUnavailable = errors.New("name_generation: service unavailable")

const (
	nameGenerationIDPrefix   = "gen_"
	fallbackReasonNoProvider = "provider_unavailable"
	meterName                = "github.com/hanko-field/namegen/internal/services"
)

var serviceTracer = otel.Tracer(meterName)

// NameGenerationServiceDeps wires the model provider and fallback catalog for name generation.
type NameGenerationServiceDeps struct {
	Provider    CompletionProvider
	Catalog     *FallbackCatalog
	Model       string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
	Meter       metric.Meter
}

type nameGenerationService struct {
	provider CompletionProvider
	catalog  *FallbackCatalog
	model    string
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)

	generations        metric.Int64Counter
	generationsEnabled bool
	latency            metric.Float64Histogram
	latencyEnabled     bool
}

// NewNameGenerationService constructs a NameGenerationService with the provided dependencies.
// A nil Provider is allowed; every request is then served from the catalog.
func NewNameGenerationService(deps NameGenerationServiceDeps) (NameGenerationService, error) {
	if deps.Catalog == nil {
		return nil, errNameGenerationCatalogRequired
	}
	clock := deps.Clock
	if clock == nil {
		return nil, errNameGenerationClockRequired
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	generations, genErr := meter.Int64Counter(
		"namegen.generations",
		metric.WithDescription("Count of completed name generations by source"),
	)
	latency, latErr := meter.Float64Histogram(
		"namegen.model.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds of model completion attempts"),
	)

	return &nameGenerationService{
		provider:           deps.Provider,
		catalog:            deps.Catalog,
		model:              strings.TrimSpace(deps.Model),
		now:                func() time.Time { return clock().UTC() },
		newID:              func() string { return nameGenerationIDPrefix + strings.ToLower(idGen()) },
		logger:             logger,
		generations:        generations,
		generationsEnabled: genErr == nil,
		latency:            latency,
		latencyEnabled:     latErr == nil,
	}, nil
}

// Generate validates the name and returns three suggestions. Only validation
// failures are returned as errors; model problems resolve to the catalog.
func (s *nameGenerationService) Generate(ctx context.Context, cmd NameGenerationCommand) (GenerationOutcome, error) {
	if s == nil || s.catalog == nil {
		return GenerationOutcome{}, ErrNameGenerationUnavailable
	}

	candidate, err := ValidateName(cmd.Name)
	if err != nil {
		return GenerationOutcome{}, err
	}

	id := s.newID()
	ctx, span := serviceTracer.Start(ctx, "name_generation.generate", trace.WithAttributes(
		attribute.String("namegen.generation_id", id),
	))
	defer span.End()

	started := s.now()
	var outcome domain.GenerationOutcome
	if s.provider == nil {
		outcome = fallbackOutcome(domain.GenerationOutcome{Candidate: candidate}, fallbackReasonNoProvider, candidate, s.catalog)
	} else {
		records, genErr := s.performGeneration(ctx, candidate)
		outcome = Normalize(records, genErr, candidate, s.catalog)
		if genErr != nil {
			s.logger(ctx, "name_generation.model_error", map[string]any{
				"generationId": id,
				"reason":       outcome.FallbackReason,
				"error":        genErr.Error(),
			})
		}
	}

	outcome.ID = id
	outcome.Model = s.model
	outcome.GeneratedAt = s.now()
	outcome.Latency = outcome.GeneratedAt.Sub(started)

	if outcome.Source == domain.GenerationSourceFallback {
		s.logger(ctx, "name_generation.fallback", map[string]any{
			"generationId": id,
			"reason":       outcome.FallbackReason,
		})
	}
	s.logger(ctx, "name_generation.completed", map[string]any{
		"generationId": id,
		"source":       string(outcome.Source),
		"padded":       outcome.Padded,
		"latencyMs":    outcome.Latency.Milliseconds(),
	})

	span.SetAttributes(
		attribute.String("namegen.source", string(outcome.Source)),
		attribute.Int("namegen.padded", outcome.Padded),
	)
	if s.generationsEnabled {
		s.generations.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(outcome.Source))))
	}

	return outcome, nil
}

func (s *nameGenerationService) performGeneration(ctx context.Context, candidate domain.NameCandidate) ([]domain.NameSuggestion, error) {
	prompt := BuildPrompt(candidate)

	start := time.Now()
	content, err := s.provider.Complete(ctx, prompt)
	if s.latencyEnabled {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.latency.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), metric.WithAttributes(attribute.String("status", status)))
	}
	if err != nil {
		return nil, err
	}

	return ParseSuggestions(content)
}
