package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseMetric(t *testing.T) {
	for _, s := range []string{"heart-rate", "accelerometer", "gyroscope", "steps"} {
		if _, ok := ParseMetric(s); !ok {
			t.Errorf("ParseMetric(%q) rejected a valid metric", s)
		}
	}
	for _, s := range []string{"", "heartRate", "temperature"} {
		if _, ok := ParseMetric(s); ok {
			t.Errorf("ParseMetric(%q) accepted an unknown metric", s)
		}
	}
}

func TestForwardReading_SendsPatchWithDeviceID(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"New session created","outcome":"created","id":"abc","insertedId":"abc"}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", time.Second)
	resp, err := c.ForwardReading(context.Background(), MetricHeartRate, "w-1", json.RawMessage(`{"heartRate":0}`))
	if err != nil {
		t.Fatalf("ForwardReading() error = %v", err)
	}

	if gotMethod != http.MethodPatch || gotPath != "/api/sensor-data/heart-rate" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotBody["deviceId"] != "w-1" || gotBody["heartRate"] != float64(0) {
		t.Errorf("body = %v", gotBody)
	}
	if resp.ID != "abc" || resp.Message != "New session created" {
		t.Errorf("response = %+v", resp)
	}
}

func TestForwardReading_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"Invalid gyroscope values"}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, time.Second)
	_, err := c.ForwardReading(context.Background(), MetricGyroscope, "g-1", json.RawMessage(`{"gyroscope":{"x":"abc"}}`))

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("error = %v, want *RejectedError", err)
	}
	if rejected.StatusCode != http.StatusBadRequest || rejected.Message != "Invalid gyroscope values" {
		t.Errorf("rejected = %+v", rejected)
	}
	if st := c.GetCircuitBreakerStatus(); st.FailureCount != 0 {
		t.Errorf("4xx should not count as a breaker failure, count = %d", st.FailureCount)
	}
}

func TestForwardReading_NonObjectPayload(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, time.Second)
	_, err := c.ForwardReading(context.Background(), MetricSteps, "s-1", json.RawMessage(`42`))

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("error = %v, want *RejectedError", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("invalid payload should not be sent")
	}
}

func TestForwardReading_CircuitOpensWithoutRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"Failed to update steps"}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.circuitBreaker.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if _, err := c.ForwardReading(context.Background(), MetricSteps, "s-1", json.RawMessage(`{"steps":1}`)); err == nil {
			t.Fatal("expected error from failing API")
		}
	}
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Errorf("API calls = %d, want 5 (no retries)", got)
	}
	if st := c.GetCircuitBreakerStatus(); st.State != "open" {
		t.Fatalf("state = %s, want open", st.State)
	}

	if _, err := c.ForwardReading(context.Background(), MetricSteps, "s-1", json.RawMessage(`{"steps":1}`)); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Errorf("open breaker let a call through, calls = %d", got)
	}

	// After the reset timeout one trial call goes out; it fails and reopens
	now = now.Add(31 * time.Second)
	_, _ = c.ForwardReading(context.Background(), MetricSteps, "s-1", json.RawMessage(`{"steps":1}`))
	if got := atomic.LoadInt32(&calls); got != 6 {
		t.Errorf("half-open trial calls = %d, want 6", got)
	}
	if st := c.GetCircuitBreakerStatus(); st.State != "open" {
		t.Errorf("state after failed trial = %s, want open", st.State)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/live" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	if err := NewAPIClient(srv.URL, time.Second).Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}

	srv.Close()
	if err := NewAPIClient(srv.URL, time.Second).Health(context.Background()); err == nil {
		t.Error("Health() against a closed server should fail")
	}
}
