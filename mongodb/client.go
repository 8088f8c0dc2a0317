package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 2 * time.Second
)

// Client owns a connection to one database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri with OpenTelemetry instrumentation, verifies the
// primary answers and selects dbName.
func Connect(ctx context.Context, uri, dbName string) (*Client, error) {
	log.Info().Str("db", dbName).Msg("Initializing MongoDB client")

	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB primary: %w", err)
	}

	log.Info().Msg("MongoDB client initialized successfully.")
	return &Client{client: client, db: client.Database(dbName)}, nil
}

// DB returns the selected database.
func (c *Client) DB() *mongo.Database {
	return c.db
}

// Ping checks the primary with a short timeout. It backs health checks.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.client.Ping(pingCtx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) {
	log.Info().Msg("Closing MongoDB connection.")
	if err := c.client.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing MongoDB connection")
	}
}
