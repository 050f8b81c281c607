package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/duynhne/user-crud-service/config"
	"github.com/duynhne/user-crud-service/internal/core/domain"
	"github.com/duynhne/user-crud-service/internal/core/repository/memory"
	"github.com/duynhne/user-crud-service/internal/core/repository/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

// Data owns the store connection and the entity stores built on it.
type Data struct {
	Users domain.Store[domain.User]

	client *mongo.Client
}

// Open builds the stores for cfg.Driver. For MongoDB it connects, pings the
// primary and fails fast when the server is unreachable.
func Open(ctx context.Context, cfg config.StoreConfig) (*Data, error) {
	switch cfg.Driver {
	case config.StoreDriverMemory:
		return &Data{Users: memory.NewStore[domain.User](cfg.Collection)}, nil
	case config.StoreDriverMongo:
		client, err := Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		coll := client.Database(cfg.Database).Collection(cfg.Collection)
		return &Data{
			Users:  mongodb.NewStore[domain.User](coll),
			client: client,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Connect establishes a MongoDB client. Every command is traced through the
// otelmongo monitor, so spans started by the logic layer get store children.
func Connect(ctx context.Context, cfg config.StoreConfig) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongodb uri is required")
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMonitor(otelmongo.NewMonitor())
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// Ping reports whether the backing store is reachable. The memory store is
// always reachable.
func (d *Data) Ping(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	return d.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB.
func (d *Data) Close(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	return d.client.Disconnect(ctx)
}
