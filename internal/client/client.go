// Package client talks to the name generation API and drives the
// submit-and-render flow used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	domain "github.com/hanko-field/namegen/internal/domain"
)

// DefaultBaseURL is the local development server.
const DefaultBaseURL = "http://localhost:3000"

const maxBodyBytes = 1 << 20

// ErrNetwork wraps transport failures (connection refused, DNS, reset).
var ErrNetwork = errors.New("client: network error")

// StatusError reports a non-2xx response without a readable envelope.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d", e.Code)
}

// GenerateResponse is the server envelope for /api/generate-name.
type GenerateResponse struct {
	Success     bool                    `json:"success"`
	Message     string                  `json:"message"`
	Error       string                  `json:"error,omitempty"`
	Names       []domain.NameSuggestion `json:"names,omitempty"`
	EnglishName string                  `json:"englishName,omitempty"`
	Timestamp   string                  `json:"timestamp,omitempty"`
}

// HealthResponse is the server envelope for /api/health.
type HealthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Client is an HTTP client for the name generation API. Deadlines come from
// the caller's context.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client for baseURL. httpClient may be nil.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Generate posts name to /api/generate-name. Server-side failures with an
// envelope are returned as a response with Success=false and a nil error.
func (c *Client) Generate(ctx context.Context, name string) (GenerateResponse, error) {
	payload, err := json.Marshal(map[string]string{"englishName": name})
	if err != nil {
		return GenerateResponse{}, err
	}
	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, "api/generate-name", payload, &out); err != nil {
		return GenerateResponse{}, err
	}
	return out, nil
}

// Health queries /api/health.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "api/health", nil, &out); err != nil {
		return HealthResponse{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("client: build url: %w", err)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &StatusError{Code: resp.StatusCode}
		}
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
