package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger is satisfied by the document store client
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	store   Pinger
	timeout time.Duration
	version string
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(store Pinger, timeout time.Duration, version string) *HealthChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthChecker{store: store, timeout: timeout, version: version}
}

// PingMongo checks if the MongoDB connection is healthy
func (h *HealthChecker) PingMongo(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("document store is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

// Status is the readiness report
type Status struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult is the outcome of one dependency check
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Ready reports whether the service can serve requests
func (s Status) Ready() bool {
	return s.Status == "ready"
}

// GetHealthStatus returns the current health status
func (h *HealthChecker) GetHealthStatus(ctx context.Context) Status {
	status := Status{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Checks:    make(map[string]CheckResult),
	}

	if err := h.PingMongo(ctx); err != nil {
		status.Checks["mongodb"] = CheckResult{Status: "error", Error: err.Error()}
		status.Status = "unavailable"
		return status
	}

	status.Checks["mongodb"] = CheckResult{Status: "ok"}
	status.Status = "ready"
	return status
}
