package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	domain "github.com/hanko-field/namegen/internal/domain"
	"github.com/hanko-field/namegen/internal/platform/llm"
	"github.com/hanko-field/namegen/internal/platform/requestctx"
	"github.com/hanko-field/namegen/internal/services"
)

type stubNameGenerationService struct {
	generateFn func(context.Context, services.NameGenerationCommand) (services.GenerationOutcome, error)
	calls      int
}

func (s *stubNameGenerationService) Generate(ctx context.Context, cmd services.NameGenerationCommand) (services.GenerationOutcome, error) {
	s.calls++
	if s.generateFn != nil {
		return s.generateFn(ctx, cmd)
	}
	candidate, err := services.ValidateName(cmd.Name)
	if err != nil {
		return services.GenerationOutcome{}, err
	}
	return services.GenerationOutcome{
		Candidate: candidate,
		Set:       sampleSet(),
		Source:    domain.GenerationSourceModel,
	}, nil
}

func sampleSet() domain.SuggestionSet {
	return domain.SuggestionSet{
		{ChineseName: "约翰", Pinyin: "Yuē Hàn", ChineseMeaning: "约定与光明", EnglishMeaning: "Promise and brightness"},
		{ChineseName: "俊翰", Pinyin: "Jùn Hàn", ChineseMeaning: "英俊有文采", EnglishMeaning: "Handsome and literary"},
		{ChineseName: "杰涵", Pinyin: "Jié Hán", ChineseMeaning: "杰出有涵养", EnglishMeaning: "Outstanding and cultivated"},
	}
}

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newGenerationRouter(svc services.NameGenerationService, opts ...NameGenerationOption) http.Handler {
	opts = append([]NameGenerationOption{WithGenerationClock(func() time.Time { return fixedNow })}, opts...)
	h := NewNameGenerationHandlers(svc, opts...)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(requestctx.WithClientIP(req.Context(), "198.51.100.9")))
		})
	})
	h.Routes(r)
	return r
}

func postJSON(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/generate-name", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestGenerateNameSuccess(t *testing.T) {
	var received string
	svc := &stubNameGenerationService{}
	svc.generateFn = func(ctx context.Context, cmd services.NameGenerationCommand) (services.GenerationOutcome, error) {
		received = cmd.Name
		candidate, err := services.ValidateName(cmd.Name)
		if err != nil {
			return services.GenerationOutcome{}, err
		}
		return services.GenerationOutcome{Candidate: candidate, Set: sampleSet()}, nil
	}

	rr := postJSON(newGenerationRouter(svc), `{"englishName":"  John  "}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if received != "  John  " {
		t.Fatalf("expected raw name to reach the service, got %q", received)
	}

	body := decodeBody(t, rr)
	if body["success"] != true {
		t.Fatalf("expected success true, got %v", body["success"])
	}
	if body["message"] != generationSuccessMessage {
		t.Fatalf("unexpected message %v", body["message"])
	}
	if body["englishName"] != "John" {
		t.Fatalf("expected trimmed englishName, got %v", body["englishName"])
	}
	if body["timestamp"] != "2024-03-01T09:30:00Z" {
		t.Fatalf("unexpected timestamp %v", body["timestamp"])
	}
	names, ok := body["names"].([]any)
	if !ok || len(names) != 3 {
		t.Fatalf("expected three names, got %v", body["names"])
	}
	first := names[0].(map[string]any)
	for _, key := range []string{"chineseName", "pinyin", "chineseMeaning", "englishMeaning"} {
		if s, _ := first[key].(string); s == "" {
			t.Fatalf("expected %s in suggestion, got %v", key, first)
		}
	}
}

func TestGenerateNameInputErrors(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		status  int
		code    string
		message string
	}{
		{"invalid json", `{"englishName":`, http.StatusBadRequest, "INVALID_INPUT", invalidJSONMessage},
		{"empty body", ``, http.StatusBadRequest, "INVALID_INPUT", "Please provide a valid English name"},
		{"missing field", `{}`, http.StatusBadRequest, "INVALID_INPUT", "Please provide a valid English name"},
		{"non-string field", `{"englishName":42}`, http.StatusBadRequest, "INVALID_INPUT", "Please provide a valid English name"},
		{"blank name", `{"englishName":"   "}`, http.StatusBadRequest, "INVALID_INPUT", "English name cannot be empty"},
		{"too long", `{"englishName":"` + strings.Repeat("a", 51) + `"}`, http.StatusBadRequest, "INVALID_INPUT", "English name cannot exceed 50 characters"},
		{"bad characters", `{"englishName":"J0hn"}`, http.StatusBadRequest, "INVALID_INPUT", "English name may only contain letters, spaces, hyphens, and apostrophes"},
		{"too large", `{"englishName":"` + strings.Repeat("a", maxGenerationRequestBody) + `"}`, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", payloadTooLargeMessage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubNameGenerationService{}
			rr := postJSON(newGenerationRouter(svc), tc.body)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			body := decodeBody(t, rr)
			if body["success"] != false || body["error"] != tc.code || body["message"] != tc.message {
				t.Fatalf("unexpected body %v", body)
			}
		})
	}
}

func TestGenerateNameServiceFailure(t *testing.T) {
	svc := &stubNameGenerationService{
		generateFn: func(context.Context, services.NameGenerationCommand) (services.GenerationOutcome, error) {
			return services.GenerationOutcome{}, errors.New("catalog exploded: secret detail")
		},
	}

	rr := postJSON(newGenerationRouter(svc), `{"englishName":"John"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "GENERATION_ERROR" || body["message"] != generationFailureMessage {
		t.Fatalf("unexpected body %v", body)
	}
	if strings.Contains(rr.Body.String(), "secret detail") {
		t.Fatalf("internal error details leaked: %s", rr.Body.String())
	}
}

func TestGenerateNameWithoutService(t *testing.T) {
	rr := postJSON(newGenerationRouter(nil), `{"englishName":"John"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestGenerateNameRateLimited(t *testing.T) {
	svc := &stubNameGenerationService{}
	handler := newGenerationRouter(svc, WithGenerationRateLimit(2, time.Minute))

	for i := 0; i < 2; i++ {
		rr := postJSON(handler, `{"englishName":"John"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
		if rr.Header().Get("RateLimit-Limit") != "2" {
			t.Fatalf("expected RateLimit-Limit header, got %q", rr.Header().Get("RateLimit-Limit"))
		}
	}

	rr := postJSON(handler, `{"englishName":"John"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "RATE_LIMIT_EXCEEDED" || body["message"] != rateLimitMessage {
		t.Fatalf("unexpected body %v", body)
	}
	if rr.Header().Get("Retry-After") != "60" || rr.Header().Get("RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected headers %v", rr.Header())
	}
	if svc.calls != 2 {
		t.Fatalf("expected rejected request not to reach the service, got %d calls", svc.calls)
	}
}

func TestGenerateNameRateLimitCountsInvalidRequests(t *testing.T) {
	svc := &stubNameGenerationService{}
	handler := newGenerationRouter(svc, WithGenerationRateLimit(1, time.Minute))

	if rr := postJSON(handler, `{"englishName":"J0hn"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if rr := postJSON(handler, `{"englishName":"John"}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected quota to be spent by the invalid request, got %d", rr.Code)
	}
}

type timingOutProvider struct{ calls int }

func (p *timingOutProvider) Complete(context.Context, string) (string, error) {
	p.calls++
	return "", llm.ErrTimeout
}

func TestGenerateNameModelTimeoutServesCatalog(t *testing.T) {
	provider := &timingOutProvider{}
	svc, err := services.NewNameGenerationService(services.NameGenerationServiceDeps{
		Provider: provider,
		Catalog:  services.MustFallbackCatalog(),
		Clock:    func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	rr := postJSON(newGenerationRouter(svc), `{"englishName":"John"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if provider.calls != 1 {
		t.Fatalf("expected a single model attempt, got %d", provider.calls)
	}

	var resp generateNameResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || len(resp.Names) != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Names[0].ChineseName != "约翰" {
		t.Fatalf("expected catalog entry for john, got %q", resp.Names[0].ChineseName)
	}
}

func TestGenerateNameRecordsRateLimitRejections(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	handler := newGenerationRouter(&stubNameGenerationService{},
		WithGenerationRateLimit(1, time.Minute),
		WithGenerationMeter(provider.Meter("handlers-test")),
	)
	for i := 0; i < 3; i++ {
		postJSON(handler, `{"englishName":"John"}`)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "namegen.rate_limited" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 2 {
		t.Fatalf("expected 2 rejections recorded, got %d", total)
	}
}
