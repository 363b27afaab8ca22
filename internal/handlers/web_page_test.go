package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/hanko-field/namegen/internal/services"
)

func newPageRouter(svc services.NameGenerationService) http.Handler {
	gen := NewNameGenerationHandlers(svc)
	return NewRouter(WithPageRoutes(NewPageHandlers(gen).Routes), WithNameGenerationRoutes(gen.Routes))
}

func submitForm(t *testing.T, handler http.Handler, name string) (*httptest.ResponseRecorder, *goquery.Document) {
	t.Helper()
	form := url.Values{"englishName": {name}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	doc, err := goquery.NewDocumentFromReader(rr.Body)
	require.NoError(t, err)
	return rr, doc
}

func TestPageRendersForm(t *testing.T) {
	handler := newPageRouter(&stubNameGenerationService{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	doc, err := goquery.NewDocumentFromReader(rr.Body)
	require.NoError(t, err)
	require.Equal(t, "Chinese Name Generator", doc.Find("title").Text())
	require.Equal(t, 1, doc.Find(`form[method="post"] input[name="englishName"]`).Length())
	require.Equal(t, 0, doc.Find(".name-card").Length())
}

func TestPageSubmitRendersCards(t *testing.T) {
	handler := newPageRouter(&stubNameGenerationService{})

	rr, doc := submitForm(t, handler, " John ")

	require.Equal(t, http.StatusOK, rr.Code)
	cards := doc.Find(".name-card")
	require.Equal(t, 3, cards.Length())
	require.Equal(t, "约翰", strings.TrimSpace(cards.First().Find(".chinese-name").Text()))
	require.Equal(t, "Yuē Hàn", strings.TrimSpace(cards.First().Find(".pinyin").Text()))
	val, _ := doc.Find(`input[name="englishName"]`).Attr("value")
	require.Equal(t, "John", val)
}

func TestPageSubmitShowsValidationError(t *testing.T) {
	svc := &stubNameGenerationService{}
	handler := newPageRouter(svc)

	rr, doc := submitForm(t, handler, "<b>J0hn</b>")

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "English name may only contain letters, spaces, hyphens, and apostrophes", doc.Find(".error-message").Text())
	require.Equal(t, 0, doc.Find(".name-card").Length())
	require.Equal(t, 0, doc.Find("b").Length(), "submitted markup must be escaped")
}

func TestPageEscapesSuggestionText(t *testing.T) {
	svc := &stubNameGenerationService{
		generateFn: func(_ context.Context, cmd services.NameGenerationCommand) (services.GenerationOutcome, error) {
			candidate, err := services.ValidateName(cmd.Name)
			require.NoError(t, err)
			set := sampleSet()
			set[0].EnglishMeaning = `<script>alert(1)</script>`
			return services.GenerationOutcome{Candidate: candidate, Set: set}, nil
		},
	}

	_, doc := submitForm(t, newPageRouter(svc), "Mary")

	require.Equal(t, 0, doc.Find(".name-card script").Length())
	require.Contains(t, doc.Find(".name-card").First().Text(), "<script>alert(1)</script>")
}

func TestPageSharesQuotaWithAPI(t *testing.T) {
	gen := NewNameGenerationHandlers(&stubNameGenerationService{}, WithGenerationRateLimit(1, 0))
	require.Nil(t, gen.limiter, "zero window disables the limiter")

	gen = NewNameGenerationHandlers(&stubNameGenerationService{}, WithGenerationRateLimit(1, time.Minute))
	handler := NewRouter(WithPageRoutes(NewPageHandlers(gen).Routes), WithNameGenerationRoutes(gen.Routes))

	rr, _ := submitForm(t, handler, "John")
	require.Equal(t, http.StatusOK, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/generate-name", strings.NewReader(`{"englishName":"John"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
