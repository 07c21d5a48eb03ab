package database

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	config "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// ErrNotConnected is returned when the store handle is requested before Connect succeeded
var ErrNotConnected = errors.New("document store is not connected")

// Client owns the single MongoDB connection of the process.
// It is connected once at startup and shared read-only afterwards.
type Client struct {
	cfg config.DatabaseConfig

	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database
}

// NewClient creates an unconnected client for cfg
func NewClient(cfg config.DatabaseConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect dials MongoDB with the configured timeout and pings the primary.
// Calling Connect on a connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	dbName, err := DatabaseName(c.cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions(c.cfg))
	if err != nil {
		return fmt.Errorf("unable to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("unable to ping MongoDB: %w", err)
	}

	c.client = client
	c.db = client.Database(dbName)
	return nil
}

// Database returns the connected database handle
func (c *Client) Database() (*mongo.Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.db == nil {
		return nil, ErrNotConnected
	}
	return c.db, nil
}

// Collection returns the configured sensor session collection
func (c *Client) Collection() (*mongo.Collection, error) {
	db, err := c.Database()
	if err != nil {
		return nil, err
	}
	return db.Collection(c.cfg.Collection), nil
}

// Ping checks that the primary is reachable
func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return ErrNotConnected
	}
	return client.Ping(ctx, readpref.Primary())
}

// Disconnect closes the connection; safe to call when never connected
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	c.db = nil
	return err
}

// DatabaseName resolves the database: DB_NAME, then the connection string path, then the default
func DatabaseName(cfg config.DatabaseConfig) (string, error) {
	if cfg.Name != "" {
		return cfg.Name, nil
	}
	cs, err := connstring.ParseAndValidate(cfg.URI)
	if err != nil {
		return "", fmt.Errorf("invalid MONGODB_URI: %w", err)
	}
	if cs.Database != "" {
		return cs.Database, nil
	}
	return config.DefaultDatabaseName(), nil
}

func clientOptions(cfg config.DatabaseConfig) *options.ClientOptions {
	opts := options.Client().ApplyURI(cfg.URI)
	opts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	opts.SetConnectTimeout(cfg.ConnectTimeout)

	// Hosted clusters (mongodb+srv, tls=true) without a custom CA get a TLS 1.2 floor.
	if cs, err := connstring.ParseAndValidate(cfg.URI); err == nil && cs.SSL && cs.SSLCaFile == "" {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}
