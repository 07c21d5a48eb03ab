package database

import (
	"context"
	"errors"
	"testing"
	"time"

	config "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Config"
)

func TestDatabaseName(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{"explicit name wins", config.DatabaseConfig{URI: "mongodb://localhost:27017/fromuri", Name: "explicit"}, "explicit"},
		{"name from uri path", config.DatabaseConfig{URI: "mongodb://localhost:27017/fromuri"}, "fromuri"},
		{"default when uri has no path", config.DatabaseConfig{URI: "mongodb://localhost:27017"}, config.DefaultDatabaseName()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DatabaseName(tt.cfg)
			if err != nil {
				t.Fatalf("DatabaseName() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DatabaseName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDatabaseName_InvalidURI(t *testing.T) {
	if _, err := DatabaseName(config.DatabaseConfig{URI: "not-a-uri"}); err == nil {
		t.Fatal("expected error for invalid URI")
	}
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient(config.DatabaseConfig{URI: "mongodb://localhost:27017", Collection: "sensorData", ConnectTimeout: time.Second})

	if _, err := c.Database(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Database() error = %v, want ErrNotConnected", err)
	}
	if _, err := c.Collection(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Collection() error = %v, want ErrNotConnected", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Ping() error = %v, want ErrNotConnected", err)
	}
	if err := c.Disconnect(context.Background()); err != nil {
		t.Errorf("Disconnect() on unconnected client = %v, want nil", err)
	}
}

func TestClientOptions_TLSOnlyWhenRequested(t *testing.T) {
	plain := clientOptions(config.DatabaseConfig{URI: "mongodb://localhost:27017", ConnectTimeout: time.Second})
	if plain.TLSConfig != nil {
		t.Error("plain URI should not enable TLS")
	}

	secure := clientOptions(config.DatabaseConfig{URI: "mongodb://localhost:27017/?tls=true", ConnectTimeout: time.Second})
	if secure.TLSConfig == nil {
		t.Fatal("tls=true URI should carry a TLS config")
	}
}
