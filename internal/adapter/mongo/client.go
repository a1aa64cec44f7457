// Package mongo implements docstore.Store on MongoDB. Documents keep their
// fields at the top level next to a reserved "_version" counter used for
// compare-and-set writes; subcollections are stored in a sibling collection
// named "<parent>.<name>" with a "_parent" back reference.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/heartmarshall/questline-reconciler/internal/config"
)

// Connect opens a client, pings the primary and returns the configured database.
func Connect(ctx context.Context, cfg config.MongoConfig, appName string) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if appName != "" {
		opts.SetAppName(appName)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, mapError(fmt.Errorf("connect mongo: %w", err), "", "")
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, mapError(fmt.Errorf("ping mongo: %w", err), "", "")
	}

	return client, client.Database(cfg.Database), nil
}
