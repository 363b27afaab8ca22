package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/hanko-field/namegen/internal/platform/httpx"
	"github.com/hanko-field/namegen/internal/platform/requestctx"
	"github.com/hanko-field/namegen/internal/services"
)

const (
	maxGenerationRequestBody = 16 * 1024
	defaultRateLimitRequests = 10
	defaultRateLimitWindow   = 15 * time.Minute

	generationSuccessMessage = "Chinese names generated successfully"
	generationFailureMessage = "An error occurred while generating Chinese names"
	invalidJSONMessage       = "Request body must be valid JSON"
	payloadTooLargeMessage   = "Request body exceeds allowed size"

	handlersMeterName = "github.com/hanko-field/namegen/internal/handlers"
)

// NameGenerationHandlers exposes the name generation endpoint.
type NameGenerationHandlers struct {
	svc     services.NameGenerationService
	limiter rateLimiter
	clock   func() time.Time
	limited metric.Int64Counter
}

type nameGenerationConfig struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	meter  metric.Meter
}

// NameGenerationOption customises NameGenerationHandlers.
type NameGenerationOption func(*nameGenerationConfig)

// WithGenerationRateLimit sets the per-client quota. A non-positive limit disables throttling.
func WithGenerationRateLimit(limit int, window time.Duration) NameGenerationOption {
	return func(cfg *nameGenerationConfig) {
		cfg.limit = limit
		cfg.window = window
	}
}

// WithGenerationClock overrides the clock used for timestamps and rate windows.
func WithGenerationClock(clock func() time.Time) NameGenerationOption {
	return func(cfg *nameGenerationConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithGenerationMeter injects the meter for the rate limit counter.
func WithGenerationMeter(meter metric.Meter) NameGenerationOption {
	return func(cfg *nameGenerationConfig) {
		cfg.meter = meter
	}
}

// NewNameGenerationHandlers constructs the handler set around svc.
func NewNameGenerationHandlers(svc services.NameGenerationService, opts ...NameGenerationOption) *NameGenerationHandlers {
	cfg := nameGenerationConfig{
		limit:  defaultRateLimitRequests,
		window: defaultRateLimitWindow,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.meter == nil {
		cfg.meter = otel.GetMeterProvider().Meter(handlersMeterName)
	}
	limited, err := cfg.meter.Int64Counter("namegen.rate_limited",
		metric.WithDescription("Generation requests rejected by the rate limiter"))
	if err != nil {
		limited = nil
	}

	return &NameGenerationHandlers{
		svc:     svc,
		limiter: newSimpleRateLimiter(cfg.limit, cfg.window, cfg.clock),
		clock:   cfg.clock,
		limited: limited,
	}
}

// Routes registers POST /generate-name on r. Mounting the same handler set
// under several prefixes shares one quota per client.
func (h *NameGenerationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(rateLimitMiddleware(h.limiter, h.clock, h.limited)).Post("/generate-name", h.generate)
}

type generateNameResponse struct {
	Success     bool                      `json:"success"`
	Message     string                    `json:"message"`
	Names       []services.NameSuggestion `json:"names"`
	EnglishName string                    `json:"englishName"`
	Timestamp   string                    `json:"timestamp"`
}

func (h *NameGenerationHandlers) generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxGenerationRequestBody)
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodePayloadTooLarge, payloadTooLargeMessage, http.StatusRequestEntityTooLarge))
		return
	case errors.Is(err, errEmptyBody):
		writeValidationError(w, r, services.MissingNameError())
		return
	case err != nil:
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidInput, invalidJSONMessage, http.StatusBadRequest))
		return
	}

	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidInput, invalidJSONMessage, http.StatusBadRequest))
		return
	}
	name, ok := req["englishName"].(string)
	if !ok {
		writeValidationError(w, r, services.MissingNameError())
		return
	}

	outcome, err := h.generateOutcome(r, name)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, r, verr)
			return
		}
		requestctx.Logger(ctx).Error("name generation failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeGenerationError, generationFailureMessage, http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, generateNameResponse{
		Success:     true,
		Message:     generationSuccessMessage,
		Names:       outcome.Set.Slice(),
		EnglishName: outcome.Candidate.String(),
		Timestamp:   formatTime(h.clock()),
	})
}

func (h *NameGenerationHandlers) generateOutcome(r *http.Request, name string) (services.GenerationOutcome, error) {
	if h.svc == nil {
		return services.GenerationOutcome{}, services.ErrNameGenerationUnavailable
	}
	return h.svc.Generate(r.Context(), services.NameGenerationCommand{Name: name})
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInvalidInput, err.Error(), http.StatusBadRequest))
}
