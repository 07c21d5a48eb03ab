package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.ApiService/health"
)

// ReadyBanner is returned by GET /
const ReadyBanner = "Wearable Data API - Ready"

// HealthController handles root, health and metrics requests
type HealthController struct {
	checker        *health.HealthChecker
	metricsHandler http.Handler
}

// NewHealthController creates a new health controller; metricsHandler may be nil
func NewHealthController(checker *health.HealthChecker, metricsHandler http.Handler) *HealthController {
	return &HealthController{
		checker:        checker,
		metricsHandler: metricsHandler,
	}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/", c.Root)
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
	if c.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(c.metricsHandler))
	}
}

func (c *HealthController) Root(ctx *gin.Context) {
	ctx.String(http.StatusOK, ReadyBanner)
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	status := c.checker.GetHealthStatus(ctx.Request.Context())
	if !status.Ready() {
		ctx.JSON(http.StatusServiceUnavailable, status)
		return
	}
	ctx.JSON(http.StatusOK, status)
}
