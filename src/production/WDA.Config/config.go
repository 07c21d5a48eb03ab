package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all API service configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	GinMode      string        `json:"gin_mode"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig holds document store configuration
type DatabaseConfig struct {
	URI            string        `json:"-"`
	Name           string        `json:"name"`
	Collection     string        `json:"collection"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	OpTimeout      time.Duration `json:"op_timeout"`
	EnsureIndexes  bool          `json:"ensure_indexes"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"-"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Topic       string        `json:"topic"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// BatchConfig holds batch forwarding configuration
type BatchConfig struct {
	Size   int           `json:"size"`
	Window time.Duration `json:"window"`
}

// IngestorConfig holds configuration for the MQTT Ingestor service
type IngestorConfig struct {
	Server        ServerConfig  `json:"server"`
	MQTT          MQTTConfig    `json:"mqtt"`
	Logging       LoggingConfig `json:"logging"`
	Batch         BatchConfig   `json:"batch"`
	ApiServiceURL string        `json:"api_service_url"`
	ApiTimeout    time.Duration `json:"api_timeout"`
}

const (
	defaultDatabaseName   = "wearable"
	defaultCollectionName = "sensorData"
)

// LoadApiConfig loads configuration for the API service
func LoadApiConfig() (*Config, error) {
	loadDotEnv()

	env := &envReader{}
	config := &Config{
		Server: ServerConfig{
			Port:         env.getString("PORT", "5000"),
			GinMode:      env.getString("GIN_MODE", "release"),
			ReadTimeout:  env.getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: env.getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  env.getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URI:            env.getString("MONGODB_URI", ""),
			Name:           env.getString("DB_NAME", ""),
			Collection:     env.getString("COLL_NAME", defaultCollectionName),
			ConnectTimeout: env.getDuration("MONGO_CONNECT_TIMEOUT", 20*time.Second),
			OpTimeout:      env.getDuration("MONGO_OP_TIMEOUT", 5*time.Second),
			EnsureIndexes:  env.getBool("MONGO_ENSURE_INDEXES", true),
		},
		Logging: loadLogging(env),
		CORS: CORSConfig{
			AllowedOrigins:   env.getStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods:   env.getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "OPTIONS"}),
			AllowedHeaders:   env.getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}),
			ExposedHeaders:   env.getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length", "X-Request-ID"}),
			AllowCredentials: env.getBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           env.getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
	}
	if err := env.err(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadIngestorConfig loads configuration for the MQTT Ingestor service
func LoadIngestorConfig() (*IngestorConfig, error) {
	loadDotEnv()

	env := &envReader{}
	config := &IngestorConfig{
		Server: ServerConfig{
			Port:         env.getString("INGESTOR_PORT", "9003"),
			ReadTimeout:  env.getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: env.getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  env.getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		MQTT: MQTTConfig{
			BrokerHost:  env.getString("BROKER_HOST", "localhost"),
			BrokerPort:  env.getInt("BROKER_PORT", 1883),
			BrokerUser:  env.getString("BROKER_USER", ""),
			BrokerPass:  env.getString("BROKER_PASS", ""),
			UseTLS:      env.getBool("BROKER_TLS", false),
			CACertPath:  env.getString("BROKER_CA_FILE", ""),
			Topic:       env.getString("MQTT_TOPIC", "sensors/#"),
			ClientID:    env.getString("MQTT_CLIENT_ID", "wearable-ingestor"),
			SharedGroup: env.getString("MQTT_SHARED_GROUP", ""),
			KeepAlive:   env.getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: env.getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
		},
		Logging: loadLogging(env),
		Batch: BatchConfig{
			Size:   env.getInt("BATCH_SIZE", 200),
			Window: env.getDuration("BATCH_WINDOW", 1*time.Second),
		},
		ApiServiceURL: env.getString("API_SERVICE_URL", "http://localhost:5000"),
		ApiTimeout:    env.getDuration("API_TIMEOUT", 10*time.Second),
	}
	if err := env.err(); err != nil {
		return nil, err
	}

	if config.ApiServiceURL == "" {
		return nil, fmt.Errorf("API_SERVICE_URL is required")
	}
	if config.Batch.Size <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive")
	}
	if config.Batch.Window <= 0 {
		return nil, fmt.Errorf("BATCH_WINDOW must be positive")
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URI == "" {
		return fmt.Errorf("MONGODB_URI is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Server.Port)
	}
	if c.Database.Collection == "" {
		return fmt.Errorf("COLL_NAME must not be empty")
	}
	if c.Database.ConnectTimeout <= 0 || c.Database.OpTimeout <= 0 {
		return fmt.Errorf("mongo timeouts must be positive")
	}
	return nil
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *IngestorConfig) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// DefaultDatabaseName is used when neither DB_NAME nor the connection string names a database.
func DefaultDatabaseName() string {
	return defaultDatabaseName
}

func loadLogging(env *envReader) LoggingConfig {
	return LoggingConfig{
		Level:        env.getString("LOG_LEVEL", "info"),
		Format:       env.getString("LOG_FORMAT", "text"),
		Output:       env.getString("LOG_OUTPUT", "stdout"),
		EnableCaller: env.getBool("LOG_ENABLE_CALLER", false),
	}
}

func loadDotEnv() {
	// A missing .env is fine; variables may be set directly.
	_ = godotenv.Load()
}

// envReader reads typed environment variables and remembers every parse failure.
type envReader struct {
	errs []error
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

func (e *envReader) getString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e *envReader) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return intValue
}

func (e *envReader) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %q (expected true/false or 1/0)", key, value))
		return defaultValue
	}
	return b
}

func (e *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return duration
}

func (e *envReader) getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
