package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.ApiService/health"
	"gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.ApiService/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func newHealthRouter(pingErr error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	r := gin.New()
	r.Use(m.GinMiddleware())
	NewHealthController(health.NewHealthChecker(stubPinger{err: pingErr}, time.Second, "test"), m.Handler()).RegisterRoutes(r)
	return r
}

func TestHealthController_Root(t *testing.T) {
	w := do(newHealthRouter(nil), http.MethodGet, "/", "")
	if w.Code != http.StatusOK || w.Body.String() != ReadyBanner {
		t.Errorf("GET / = %d %q", w.Code, w.Body.String())
	}
}

func TestHealthController_Live(t *testing.T) {
	w := do(newHealthRouter(errors.New("down")), http.MethodGet, "/health/live", "")
	if w.Code != http.StatusOK {
		t.Errorf("liveness should not depend on the store, got %d", w.Code)
	}
}

func TestHealthController_Ready(t *testing.T) {
	w := do(newHealthRouter(nil), http.MethodGet, "/health/ready", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ready"`) {
		t.Errorf("ready = %d %s", w.Code, w.Body.String())
	}

	w = do(newHealthRouter(errors.New("no reachable servers")), http.MethodGet, "/health/ready", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready with store down = %d, want 503", w.Code)
	}
}

func TestHealthController_Metrics(t *testing.T) {
	r := newHealthRouter(nil)
	do(r, http.MethodGet, "/health/live", "")

	w := do(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "wda_http_request_duration_seconds") {
		t.Errorf("metrics = %d, missing latency histogram", w.Code)
	}
}
