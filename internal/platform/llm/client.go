package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the SiliconFlow chat-completions URL.
	DefaultEndpoint = "https://api.siliconflow.cn/v1/chat/completions"
	// DefaultModel is the model identifier sent when none is configured.
	DefaultModel = "deepseek-ai/DeepSeek-R1"

	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.3
	DefaultTopP        = 0.8
	DefaultTimeout     = 60 * time.Second

	maxResponseBytes = 1 << 20
	maxErrorSnippet  = 256
)

var (
	// ErrTimeout indicates the completion did not finish within the configured budget.
	ErrTimeout = errors.New("llm: request timed out")
	// ErrUpstream indicates a transport failure, a non-2xx status, or an unreadable envelope.
	ErrUpstream = errors.New("llm: upstream error")

	errEndpointRequired = errors.New("llm: endpoint is required")
)

var tracer = otel.Tracer("github.com/hanko-field/namegen/internal/platform/llm")

// Config captures the request parameters sent with every completion.
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

// Client issues single-attempt chat-completion calls to an OpenAI-compatible endpoint.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	cfg        Config
}

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for outbound calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a Client, filling unset numeric parameters with defaults.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, errEndpointRequired
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.TopP <= 0 {
		cfg.TopP = DefaultTopP
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as the sole user message and returns the first choice's
// text. The call is bounded by the configured timeout and never retried.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.complete", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("gen_ai.system", "openai_compatible"),
		attribute.String("gen_ai.request.model", c.cfg.Model),
		attribute.Int("gen_ai.request.max_tokens", c.cfg.MaxTokens),
	)

	content, status, err := c.complete(ctx, prompt)
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}
	span.SetStatus(codes.Ok, "")
	return content, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
		Stream:      false,
	})
	if err != nil {
		return "", 0, fmt.Errorf("%w: marshal request: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, c.classify(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", resp.StatusCode, c.classify(ctx, err)
	}

	c.logger.Debug("llm completion response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.Int("bytes", len(respBody)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, snippet(respBody))
	}

	var decoded chatResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", resp.StatusCode, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if len(decoded.Choices) == 0 {
		return "", resp.StatusCode, fmt.Errorf("%w: no choices in response", ErrUpstream)
	}
	content := decoded.Choices[0].Message.Content
	if content == nil {
		return "", resp.StatusCode, fmt.Errorf("%w: missing message content", ErrUpstream)
	}
	return strings.TrimSpace(*content), resp.StatusCode, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, c.cfg.Timeout, context.DeadlineExceeded)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorSnippet {
		text = text[:maxErrorSnippet]
	}
	return text
}
