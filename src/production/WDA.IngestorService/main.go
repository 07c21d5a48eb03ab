package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	container "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Container"
	"gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.IngestorService/client"
	wdaingestor "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.IngestorService/ingestor"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewIngestorContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	config := ctr.GetConfig()
	logger.Info("Starting MQTT Ingestor Service")

	apiClient := client.NewAPIClient(config.ApiServiceURL, config.ApiTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ing := wdaingestor.New(*config, apiClient, logger)
	if err := ing.Start(ctx); err != nil {
		logger.FatalWithError(err, "Failed to start MQTT ingestor")
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:         ":" + config.Server.Port,
		Handler:      healthRouter(ing, apiClient),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	// Released in reverse: the ingestor drains its queue before the health server closes
	ctr.AddCleanupFunc(srv.Shutdown)
	ctr.AddCleanupFunc(func(context.Context) error {
		ing.Stop()
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Health server starting on port " + config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("MQTT ingestor running... press Ctrl+C to stop")
	if err := g.Wait(); err != nil {
		logger.ErrorWithError(err, "Ingestor stopped with error")
	}
}

// healthRouter reports broker, API and breaker state
func healthRouter(ing *wdaingestor.Ingestor, apiClient *client.APIClient) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		mqttStatus := "disconnected"
		if ing.IsConnected() {
			mqttStatus = "connected"
		}

		apiStatus := "disconnected"
		if err := apiClient.Health(ctx); err == nil {
			apiStatus = "connected"
		}

		status, code := "healthy", http.StatusOK
		if mqttStatus != "connected" || apiStatus != "connected" {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"services": gin.H{
				"mqtt":        mqttStatus,
				"api_service": apiStatus,
			},
			"circuit_breaker": apiClient.GetCircuitBreakerStatus(),
			"stats":           ing.Stats(),
		})
	})
	return r
}
