package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.ApiService/health"
	"gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.ApiService/implementation/sessions"
	"gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.ApiService/metrics"
	config "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Config"
	database "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Database"
	logger "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Logger"
	implementation "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Repository/Interfaces"
)

// Version is reported by the readiness endpoint
const Version = "1.0.0"

// ApiContainer manages dependencies and their lifecycle for the API service
type ApiContainer struct {
	config *config.Config
	logger *logger.Logger
	db     *database.Client

	metrics        *metrics.Metrics
	healthChecker  *health.HealthChecker
	sessionRepo    interfaces.SessionRepository
	sessionService *sessions.Service

	// Mutex for thread-safe access
	mu sync.Mutex

	cleanup cleanupStack
}

// IngestorContainer manages dependencies for the MQTT Ingestor service
type IngestorContainer struct {
	config *config.IngestorConfig
	logger *logger.Logger

	cleanup cleanupStack
}

// cleanupStack holds cleanup functions, run in reverse order of registration
type cleanupStack struct {
	mu    sync.Mutex
	funcs []func(ctx context.Context) error
}

func (s *cleanupStack) push(fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs = append(s.funcs, fn)
}

func (s *cleanupStack) run(ctx context.Context, log *logger.Logger) {
	s.mu.Lock()
	funcs := s.funcs
	s.funcs = nil
	s.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			log.ErrorWithError(err, "Error during cleanup")
		}
	}
}

// NewApiContainer loads configuration from the environment and creates the container
func NewApiContainer() (*ApiContainer, error) {
	cfg, err := config.LoadApiConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load API configuration: %w", err)
	}

	log := logger.NewLogger(&cfg.Logging).WithService("wda-api")
	return NewApiContainerWithConfig(cfg, log), nil
}

// NewApiContainerWithConfig creates a container from an existing configuration
func NewApiContainerWithConfig(cfg *config.Config, log *logger.Logger) *ApiContainer {
	c := &ApiContainer{
		config: cfg,
		logger: log,
		db:     database.NewClient(cfg.Database),
	}
	c.AddCleanupFunc(c.db.Disconnect)

	if !cfg.Database.EnsureIndexes {
		log.Warn("MONGO_ENSURE_INDEXES is disabled: without the unique deviceId index concurrent first writes can create duplicate sessions")
	}
	return c
}

// NewIngestorContainer creates a new container for the MQTT Ingestor service
func NewIngestorContainer() (*IngestorContainer, error) {
	cfg, err := config.LoadIngestorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ingestor configuration: %w", err)
	}

	log := logger.NewLogger(&cfg.Logging).WithService("wda-ingestor")
	return &IngestorContainer{
		config: cfg,
		logger: log,
	}, nil
}

// GetConfig returns the configuration
func (c *ApiContainer) GetConfig() *config.Config {
	return c.config
}

// GetConfig returns the ingestor configuration
func (c *IngestorContainer) GetConfig() *config.IngestorConfig {
	return c.config
}

// GetLogger returns the logger
func (c *ApiContainer) GetLogger() *logger.Logger {
	return c.logger
}

// GetLogger returns the logger
func (c *IngestorContainer) GetLogger() *logger.Logger {
	return c.logger
}

// GetDatabase returns the document store client (connected or not)
func (c *ApiContainer) GetDatabase() *database.Client {
	return c.db
}

// InitializeDatabase connects to MongoDB and ensures the session indexes
func (c *ApiContainer) InitializeDatabase(ctx context.Context) error {
	if err := c.db.Connect(ctx); err != nil {
		return err
	}
	c.logger.Info("Successfully connected to MongoDB")

	if !c.config.Database.EnsureIndexes {
		return nil
	}
	repo, err := c.GetSessionRepository()
	if err != nil {
		return err
	}
	if im, ok := repo.(interfaces.IndexManager); ok {
		if err := im.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to ensure indexes: %w", err)
		}
		c.logger.Info("Session indexes ensured")
	}
	return nil
}

// GetMetrics returns the metrics registry
func (c *ApiContainer) GetMetrics() *metrics.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	return c.metrics
}

// GetHealthChecker returns the health checker
func (c *ApiContainer) GetHealthChecker() *health.HealthChecker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthChecker == nil {
		c.healthChecker = health.NewHealthChecker(c.db, 2*time.Second, Version)
	}
	return c.healthChecker
}

// GetSessionRepository returns the session repository; the database must be connected
func (c *ApiContainer) GetSessionRepository() (interfaces.SessionRepository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionRepo == nil {
		coll, err := c.db.Collection()
		if err != nil {
			return nil, fmt.Errorf("failed to get session collection: %w", err)
		}
		c.sessionRepo = implementation.NewMongoSessionRepository(coll, c.config.Database.OpTimeout)
	}
	return c.sessionRepo, nil
}

// SetSessionRepository overrides the repository (used by tests)
func (c *ApiContainer) SetSessionRepository(repo interfaces.SessionRepository) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionRepo = repo
	c.sessionService = nil
}

// GetSessionService returns the session service
func (c *ApiContainer) GetSessionService() (*sessions.Service, error) {
	repo, err := c.GetSessionRepository()
	if err != nil {
		return nil, err
	}
	m := c.GetMetrics()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionService == nil {
		c.sessionService = sessions.NewService(repo, c.logger, sessions.WithRecorder(m))
	}
	return c.sessionService, nil
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *ApiContainer) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")
	c.cleanup.run(ctx, c.logger)
	c.logger.Info("Container shutdown complete")
	return nil
}

// Shutdown gracefully shuts down the ingestor container
func (c *IngestorContainer) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down ingestor container...")
	c.cleanup.run(ctx, c.logger)
	c.logger.Info("Ingestor container shutdown complete")
	return nil
}

// AddCleanupFunc adds a cleanup function
func (c *ApiContainer) AddCleanupFunc(fn func(ctx context.Context) error) {
	c.cleanup.push(fn)
}

// AddCleanupFunc registers a cleanup function; the ingestor and its health
// server are released this way
func (c *IngestorContainer) AddCleanupFunc(fn func(ctx context.Context) error) {
	c.cleanup.push(fn)
}
