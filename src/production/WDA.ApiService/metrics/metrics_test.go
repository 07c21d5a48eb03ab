package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.WriteSucceeded("steps", "created")
	m.WriteSucceeded("steps", "updated")
	m.WriteSucceeded("steps", "updated")
	m.WriteFailed("gyroscope", "validation")

	if got := testutil.ToFloat64(m.sessionWrites.WithLabelValues("steps", "updated")); got != 2 {
		t.Errorf("updated steps writes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.sessionWriteErrors.WithLabelValues("gyroscope", "validation")); got != 1 {
		t.Errorf("gyroscope validation errors = %v, want 1", got)
	}
}

func TestMetrics_HandlerAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `wda_http_request_duration_seconds_count{method="GET",route="/ping",status="200"} 1`) {
		t.Errorf("latency histogram for /ping missing from exposition:\n%s", body)
	}
}
