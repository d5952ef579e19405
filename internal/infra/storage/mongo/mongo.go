// Package mongo stores credits and checkpoints in MongoDB. A unique
// compound index on (user_addr, task_id) deduplicates credits.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	creditsCollection     = "user_tasks"
	checkpointsCollection = "checkpoints"
	defaultTimeout        = 10 * time.Second
)

// Config holds MongoDB connection configuration.
type Config struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// Database wraps a connected client bound to one database.
type Database struct {
	client       *mongo.Client
	databaseName string
}

// NewDatabase connects and verifies the server is reachable.
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(20).
		SetMinPoolSize(2).
		SetServerSelectionTimeout(5 * time.Second).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{client: client, databaseName: cfg.Database}, nil
}

// CreateIndexes creates the unique credit index.
func (db *Database) CreateIndexes(ctx context.Context) error {
	_, err := db.collection(creditsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_addr", Value: 1}, {Key: "task_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "task_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create user_tasks indexes: %w", err)
	}
	return nil
}

// Health pings the primary.
func (db *Database) Health(ctx context.Context) error {
	return db.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (db *Database) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *Database) collection(name string) *mongo.Collection {
	return db.client.Database(db.databaseName).Collection(name)
}
