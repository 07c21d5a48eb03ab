package config

import (
	"strings"
	"testing"
	"time"
)

func clearApiEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "GIN_MODE", "MONGODB_URI", "DB_NAME", "COLL_NAME", "MONGO_CONNECT_TIMEOUT",
		"MONGO_OP_TIMEOUT", "MONGO_ENSURE_INDEXES", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT", "LOG_ENABLE_CALLER", "CORS_ALLOWED_ORIGINS",
		"CORS_ALLOWED_METHODS", "CORS_ALLOWED_HEADERS", "CORS_EXPOSED_HEADERS",
		"CORS_ALLOW_CREDENTIALS", "CORS_MAX_AGE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadApiConfig_Defaults(t *testing.T) {
	clearApiEnv(t)
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/wearables")

	cfg, err := LoadApiConfig()
	if err != nil {
		t.Fatalf("LoadApiConfig: %v", err)
	}
	if cfg.Server.Port != "5000" {
		t.Errorf("Port = %q, want %q", cfg.Server.Port, "5000")
	}
	if cfg.Database.Collection != "sensorData" {
		t.Errorf("Collection = %q, want %q", cfg.Database.Collection, "sensorData")
	}
	if cfg.Database.Name != "" {
		t.Errorf("Name = %q, want empty so the URI database is used", cfg.Database.Name)
	}
	if cfg.Database.OpTimeout != 5*time.Second {
		t.Errorf("OpTimeout = %v, want 5s", cfg.Database.OpTimeout)
	}
	if !cfg.Database.EnsureIndexes {
		t.Error("EnsureIndexes should default to true")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadApiConfig_EnvOverride(t *testing.T) {
	clearApiEnv(t)
	t.Setenv("MONGODB_URI", "mongodb://db:27017")
	t.Setenv("PORT", "8081")
	t.Setenv("DB_NAME", "health")
	t.Setenv("COLL_NAME", "sessions")
	t.Setenv("MONGO_OP_TIMEOUT", "750ms")
	t.Setenv("MONGO_ENSURE_INDEXES", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg, err := LoadApiConfig()
	if err != nil {
		t.Fatalf("LoadApiConfig: %v", err)
	}
	if cfg.Server.Port != "8081" {
		t.Errorf("Port = %q, want 8081", cfg.Server.Port)
	}
	if cfg.Database.Name != "health" || cfg.Database.Collection != "sessions" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Database.OpTimeout != 750*time.Millisecond {
		t.Errorf("OpTimeout = %v, want 750ms", cfg.Database.OpTimeout)
	}
	if cfg.Database.EnsureIndexes {
		t.Error("EnsureIndexes = true, want false")
	}
	want := []string{"http://a.test", "http://b.test"}
	if strings.Join(cfg.CORS.AllowedOrigins, "|") != strings.Join(want, "|") {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.CORS.AllowedOrigins, want)
	}
}

func TestLoadApiConfig_MissingURI(t *testing.T) {
	clearApiEnv(t)

	_, err := LoadApiConfig()
	if err == nil {
		t.Fatal("expected error when MONGODB_URI is unset")
	}
	if !strings.Contains(err.Error(), "MONGODB_URI") {
		t.Errorf("error = %v, want mention of MONGODB_URI", err)
	}
}

func TestLoadApiConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric port", "PORT", "http"},
		{"bad duration", "MONGO_OP_TIMEOUT", "soon"},
		{"bad bool", "MONGO_ENSURE_INDEXES", "maybe"},
		{"bad int", "CORS_MAX_AGE", "twelve"},
		{"zero timeout", "MONGO_CONNECT_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearApiEnv(t)
			t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
			t.Setenv(tt.key, tt.value)

			if _, err := LoadApiConfig(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadIngestorConfig(t *testing.T) {
	for _, key := range []string{"INGESTOR_PORT", "BROKER_HOST", "BROKER_PORT", "BROKER_TLS", "MQTT_TOPIC",
		"MQTT_CLIENT_ID", "MQTT_SHARED_GROUP", "BATCH_SIZE", "BATCH_WINDOW", "API_SERVICE_URL", "API_TIMEOUT"} {
		t.Setenv(key, "")
	}
	t.Setenv("BROKER_HOST", "broker.local")
	t.Setenv("BROKER_TLS", "true")
	t.Setenv("BROKER_PORT", "8883")

	cfg, err := LoadIngestorConfig()
	if err != nil {
		t.Fatalf("LoadIngestorConfig: %v", err)
	}
	if cfg.MQTT.Topic != "sensors/#" {
		t.Errorf("Topic = %q, want sensors/#", cfg.MQTT.Topic)
	}
	if got := cfg.GetMQTTBrokerURL(); got != "ssl://broker.local:8883" {
		t.Errorf("GetMQTTBrokerURL() = %q", got)
	}
	if cfg.Batch.Size != 200 || cfg.Batch.Window != time.Second {
		t.Errorf("Batch = %+v, want 200/1s", cfg.Batch)
	}
	if cfg.ApiServiceURL != "http://localhost:5000" {
		t.Errorf("ApiServiceURL = %q", cfg.ApiServiceURL)
	}
}

func TestLoadIngestorConfig_RejectsBadBatch(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	t.Setenv("BATCH_WINDOW", "")

	if _, err := LoadIngestorConfig(); err == nil {
		t.Fatal("expected error for BATCH_SIZE=0")
	}
}
