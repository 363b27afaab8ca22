package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hanko-field/namegen/internal/platform/httpx"
	"github.com/hanko-field/namegen/internal/platform/observability"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	middlewares    []func(http.Handler) http.Handler
	trustProxy     bool
	requestTimeout time.Duration
	health         *HealthHandlers
	generation     RouteRegistrar
	page           RouteRegistrar
	allowedOrigins []string
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultTimeout    = 60 * time.Second
	notFoundMessage   = "The requested resource does not exist"
	notAllowedMessage = "Method not allowed"
)

// NewRouter constructs the chi router with shared middleware and the service routes.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{requestTimeout: defaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	base := []func(http.Handler) http.Handler{middleware.RequestID}
	if cfg.trustProxy {
		base = append(base, middleware.RealIP)
	}
	base = append(base,
		observability.ClientIPMiddleware,
		middleware.Timeout(cfg.requestTimeout),
		middleware.Compress(5, "application/json", "text/html"),
	)

	r := chi.NewRouter()
	if len(cfg.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	for _, mw := range append(base, cfg.middlewares...) {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(httpx.CodeNotFound, notFoundMessage, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(httpx.CodeMethodNotAllowed, notAllowedMessage, http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Health)
	r.Get("/health", cfg.health.Health)

	if cfg.page != nil {
		cfg.page(r)
	}
	if cfg.generation != nil {
		cfg.generation(r)
	}
	r.Route("/api", func(api chi.Router) {
		api.Get("/health", cfg.health.Health)
		if cfg.generation != nil {
			cfg.generation(api)
		}
	})

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithTrustedProxy derives the client address from X-Forwarded-For,
// X-Real-IP, or True-Client-IP. Without it the peer address is used, so
// callers cannot pick their own rate limit identity.
func WithTrustedProxy(enabled bool) Option {
	return func(cfg *routerConfig) {
		cfg.trustProxy = enabled
	}
}

// WithRequestTimeout overrides the per-request deadline (default 60s).
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *routerConfig) {
		if d > 0 {
			cfg.requestTimeout = d
		}
	}
}

// WithHealthHandlers overrides the handlers used for the health endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithNameGenerationRoutes configures the registrar for /generate-name, mounted at the root and under /api.
func WithNameGenerationRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.generation = reg
	}
}

// WithPageRoutes configures the registrar for the HTML form.
func WithPageRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.page = reg
	}
}

// WithAllowedOrigins enables CORS for the listed browser origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(cfg *routerConfig) {
		cfg.allowedOrigins = append(cfg.allowedOrigins, origins...)
	}
}
