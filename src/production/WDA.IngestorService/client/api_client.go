package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	wdamodels "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models"
	api_models "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models/api"
)

// ErrCircuitOpen is returned while the circuit breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RejectedError is a 4xx answer from the API; the reading itself is wrong and
// sending it again will not help.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("API rejected reading (%d): %s", e.StatusCode, e.Message)
}

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker implements circuit breaker pattern for resilience
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	state        CircuitBreakerState
	failureCount int
	lastFailTime time.Time
	mutex        sync.Mutex
	now          func() time.Time
}

func newCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
		now:          time.Now,
	}
}

// allow reports whether a call may go out; an open breaker past its reset
// timeout lets one trial call through in half-open state.
func (cb *CircuitBreaker) allow() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailTime) > cb.resetTimeout {
			cb.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount = 0
	cb.state = StateClosed
}

func (cb *CircuitBreaker) onFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailTime = cb.now()

	if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// Metric is the topic segment naming a single-field update
type Metric string

const (
	MetricHeartRate     Metric = "heart-rate"
	MetricAccelerometer Metric = "accelerometer"
	MetricGyroscope     Metric = "gyroscope"
	MetricSteps         Metric = "steps"
)

// ParseMetric validates a topic metric segment
func ParseMetric(s string) (Metric, bool) {
	switch m := Metric(s); m {
	case MetricHeartRate, MetricAccelerometer, MetricGyroscope, MetricSteps:
		return m, true
	}
	return "", false
}

// APIClient forwards readings to the API Service. Calls are never retried;
// the circuit breaker stops hammering an API that keeps failing.
type APIClient struct {
	baseURL        string
	httpClient     *http.Client
	circuitBreaker *CircuitBreaker
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		circuitBreaker: newCircuitBreaker(5, 30*time.Second),
	}
}

// ForwardReading sends payload, a JSON object without deviceId, to the PATCH
// endpoint for metric on behalf of deviceID.
func (c *APIClient) ForwardReading(ctx context.Context, metric Metric, deviceID string, payload json.RawMessage) (*api_models.WriteResponse, error) {
	body, err := withDeviceID(payload, deviceID)
	if err != nil {
		return nil, &RejectedError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}

	if !c.circuitBreaker.allow() {
		return nil, ErrCircuitOpen
	}

	resp, err := c.makeRequest(ctx, http.MethodPatch, "/api/sensor-data/"+string(metric), body)
	if err != nil {
		c.circuitBreaker.onFailure()
		return nil, fmt.Errorf("failed to forward reading: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 500:
		c.circuitBreaker.onFailure()
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, errorMessage(raw))
	case resp.StatusCode >= 400:
		// The API answered, so it is healthy
		c.circuitBreaker.onSuccess()
		return nil, &RejectedError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	c.circuitBreaker.onSuccess()
	var result api_models.WriteResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// withDeviceID injects deviceId into the payload object
func withDeviceID(payload json.RawMessage, deviceID string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("payload must be a JSON object")
	}
	id, err := json.Marshal(deviceID)
	if err != nil {
		return nil, err
	}
	fields[wdamodels.FieldDeviceID] = id
	return json.Marshal(fields)
}

func errorMessage(raw []byte) string {
	var e api_models.ErrorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}

// makeRequest makes an HTTP request to the API Service
func (c *APIClient) makeRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "wearable-ingestor")

	return c.httpClient.Do(req)
}

// Health checks if the API Service is alive
func (c *APIClient) Health(ctx context.Context) error {
	resp, err := c.makeRequest(ctx, http.MethodGet, "/health/live", nil)
	if err != nil {
		return fmt.Errorf("failed to check API health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API health check failed with status %d", resp.StatusCode)
	}

	return nil
}

// CircuitBreakerStatus is the breaker snapshot reported by the health endpoint
type CircuitBreakerStatus struct {
	State        string    `json:"state"`
	FailureCount int       `json:"failure_count"`
	LastFailTime time.Time `json:"last_fail_time,omitempty"`
	MaxFailures  int       `json:"max_failures"`
}

// GetCircuitBreakerStatus returns the current circuit breaker status for monitoring
func (c *APIClient) GetCircuitBreakerStatus() CircuitBreakerStatus {
	cb := c.circuitBreaker
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return CircuitBreakerStatus{
		State:        cb.state.String(),
		FailureCount: cb.failureCount,
		LastFailTime: cb.lastFailTime,
		MaxFailures:  cb.maxFailures,
	}
}
