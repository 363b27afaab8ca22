package handlers

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hanko-field/namegen/internal/platform/httpx"
	"github.com/hanko-field/namegen/internal/platform/requestctx"
	"github.com/hanko-field/namegen/internal/services"
)

//go:embed templates/index.html
var pageFS embed.FS

var pageTemplate = template.Must(template.ParseFS(pageFS, "templates/index.html"))

type pageView struct {
	EnglishName string
	Error       string
	Names       []services.NameSuggestion
}

// PageHandlers serves the HTML form. Submissions run through the same
// service and rate limit as the JSON endpoint.
type PageHandlers struct {
	gen *NameGenerationHandlers
}

// NewPageHandlers constructs the page handlers on top of gen.
func NewPageHandlers(gen *NameGenerationHandlers) *PageHandlers {
	return &PageHandlers{gen: gen}
}

// Routes registers GET / and POST /.
func (h *PageHandlers) Routes(r chi.Router) {
	if r == nil || h.gen == nil {
		return
	}
	r.Get("/", h.show)
	r.With(rateLimitMiddleware(h.gen.limiter, h.gen.clock, h.gen.limited)).Post("/", h.submit)
}

func (h *PageHandlers) show(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, pageView{})
}

func (h *PageHandlers) submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxGenerationRequestBody)
	if err := r.ParseForm(); err != nil {
		renderPage(w, r, http.StatusBadRequest, pageView{Error: services.MissingNameError().Error()})
		return
	}
	raw := r.PostForm.Get("englishName")
	view := pageView{EnglishName: raw}

	outcome, err := h.gen.generateOutcome(r, raw)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			view.Error = verr.Error()
			renderPage(w, r, http.StatusBadRequest, view)
			return
		}
		requestctx.Logger(r.Context()).Error("name generation failed", zap.Error(err))
		view.Error = generationFailureMessage
		renderPage(w, r, http.StatusInternalServerError, view)
		return
	}

	view.EnglishName = outcome.Candidate.String()
	view.Names = outcome.Set.Slice()
	renderPage(w, r, http.StatusOK, view)
}

func renderPage(w http.ResponseWriter, r *http.Request, status int, view pageView) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		requestctx.Logger(r.Context()).Error("render page", zap.Error(err))
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInternalServerError, "Internal server error", http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
