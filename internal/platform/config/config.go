// Package config loads runtime settings from .env files, the process
// environment, and Secret Manager references.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultPort            = "3000"
	defaultEnvironment     = "development"
	defaultVersion         = "1.0.0"
	defaultModelEndpoint   = "https://api.siliconflow.cn/v1/chat/completions"
	defaultModel           = "deepseek-ai/DeepSeek-R1"
	defaultMaxTokens       = 2000
	defaultTemperature     = 0.3
	defaultTopP            = 0.8
	defaultModelTimeout    = 60 * time.Second
	defaultRateLimitWindow = 15 * time.Minute
	defaultRateLimitMax    = 10
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 90 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	requestTimeoutMargin   = 10 * time.Second
	defaultSecretFallback  = ".secrets.local"
)

var developmentOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// Config is the fully resolved runtime configuration.
type Config struct {
	Environment string
	Version     string
	Server      ServerConfig
	Model       ModelConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Secrets     SecretsConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout is the per-request deadline. It defaults to the model
	// timeout plus a margin so a slow model still resolves to the fallback.
	RequestTimeout time.Duration

	// TrustProxy honours X-Forwarded-For and friends when deriving the
	// client identity. Enable only behind a proxy that overwrites them.
	TrustProxy bool
}

// ModelConfig configures the chat-completion upstream.
type ModelConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

// RateLimitConfig is the fixed-window generation quota per client.
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecretsConfig feeds the Secret Manager fetcher.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// SecretResolver resolves secret://name references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists configuration fields that are missing or out of range.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes a failed secret reference lookup.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Load merges defaults, the .env file, the process environment, and any
// explicit map (in increasing precedence), resolves secret references, and
// validates the result.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	values, err := options.values()
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}

	environment := strings.ToLower(firstNonEmpty(lookup, defaultEnvironment, "APP_ENV", "NODE_ENV"))

	cfg := Config{
		Environment: environment,
		Version:     stringWithDefault(lookup, "APP_VERSION", defaultVersion),
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			TrustProxy:   boolWithDefault(lookup, "TRUST_PROXY", false),
		},
		Model: ModelConfig{
			Endpoint:    stringWithDefault(lookup, "SILICONFLOW_API_URL", defaultModelEndpoint),
			APIKey:      strings.TrimSpace(stringWithDefault(lookup, "SILICONFLOW_API_KEY", "")),
			Model:       stringWithDefault(lookup, "DEEPSEEK_MODEL", defaultModel),
			MaxTokens:   intWithDefault(lookup, "MAX_TOKENS", defaultMaxTokens),
			Temperature: floatWithDefault(lookup, "TEMPERATURE", defaultTemperature),
			TopP:        floatWithDefault(lookup, "TOP_P", defaultTopP),
			Timeout:     durationWithDefault(lookup, "MODEL_TIMEOUT", defaultModelTimeout),
		},
		RateLimit: RateLimitConfig{
			Window:      millisWithDefault(lookup, "RATE_LIMIT_WINDOW_MS", defaultRateLimitWindow),
			MaxRequests: intWithDefault(lookup, "RATE_LIMIT_MAX_REQUESTS", defaultRateLimitMax),
		},
		CORS: CORSConfig{
			AllowedOrigins: csvWithDefault(lookup, "CORS_ALLOWED_ORIGINS"),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "SECRET_PROJECT_ID", ""),
			FallbackFile: stringWithDefault(lookup, "SECRET_FALLBACK_FILE", defaultSecretFallback),
		},
	}
	cfg.Server.RequestTimeout = durationWithDefault(lookup, "SERVER_REQUEST_TIMEOUT", cfg.Model.Timeout+requestTimeoutMargin)
	if _, set := lookup("SERVER_WRITE_TIMEOUT"); !set && cfg.Server.WriteTimeout <= cfg.Server.RequestTimeout {
		cfg.Server.WriteTimeout = cfg.Server.RequestTimeout + requestTimeoutMargin
	}
	if len(cfg.CORS.AllowedOrigins) == 0 && !cfg.IsProduction() {
		cfg.CORS.AllowedOrigins = append([]string(nil), developmentOrigins...)
	}

	apiKey, err := resolveSecret(ctx, cfg.Model.APIKey, options.secret)
	if err != nil {
		return Config{}, err
	}
	cfg.Model.APIKey = strings.TrimSpace(apiKey)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	var invalid []string
	if strings.TrimSpace(cfg.Server.Port) == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Server.ReadTimeout <= 0 {
		invalid = append(invalid, "Server.ReadTimeout")
	}
	if cfg.Server.WriteTimeout <= 0 || cfg.Server.WriteTimeout <= cfg.Server.RequestTimeout {
		invalid = append(invalid, "Server.WriteTimeout")
	}
	if cfg.Server.RequestTimeout <= cfg.Model.Timeout {
		invalid = append(invalid, "Server.RequestTimeout")
	}
	if strings.TrimSpace(cfg.Model.Endpoint) == "" {
		invalid = append(invalid, "Model.Endpoint")
	}
	if strings.TrimSpace(cfg.Model.Model) == "" {
		invalid = append(invalid, "Model.Model")
	}
	if cfg.Model.MaxTokens <= 0 {
		invalid = append(invalid, "Model.MaxTokens")
	}
	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		invalid = append(invalid, "Model.Temperature")
	}
	if cfg.Model.TopP <= 0 || cfg.Model.TopP > 1 {
		invalid = append(invalid, "Model.TopP")
	}
	if cfg.Model.Timeout <= 0 {
		invalid = append(invalid, "Model.Timeout")
	}
	if cfg.RateLimit.Window <= 0 {
		invalid = append(invalid, "RateLimit.Window")
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		invalid = append(invalid, "RateLimit.MaxRequests")
	}
	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func isSecretReference(value string) bool {
	return strings.HasPrefix(value, "secret://") || strings.HasPrefix(value, "sm://")
}

func normalizeSecretReference(value string) string {
	if rest, ok := strings.CutPrefix(value, "sm://"); ok {
		return "secret://" + rest
	}
	return value
}
