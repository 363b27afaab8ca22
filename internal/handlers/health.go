package handlers

import (
	"net/http"
	"strings"
	"time"
)

const (
	defaultVersion = "1.0.0"
	healthMessage  = "Service is running"
)

// HealthHandlers serves liveness probes.
type HealthHandlers struct {
	version string
	clock   func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthVersion sets the version reported by the probe.
func WithHealthVersion(version string) HealthOption {
	return func(h *HealthHandlers) {
		if v := strings.TrimSpace(version); v != "" {
			h.version = v
		}
	}
}

// WithHealthClock overrides the clock used for timestamps.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs the health endpoints.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{version: defaultVersion, clock: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health reports that the process is serving.
func (h *HealthHandlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   healthMessage,
		"timestamp": formatTime(h.clock()),
		"version":   h.version,
	})
}
