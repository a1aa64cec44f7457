package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/questline-reconciler/internal/adapter/memory"
	"github.com/heartmarshall/questline-reconciler/internal/adapter/mongo"
	"github.com/heartmarshall/questline-reconciler/internal/adapter/postgres"
	"github.com/heartmarshall/questline-reconciler/internal/config"
	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/reconcile/quest"
	"github.com/heartmarshall/questline-reconciler/internal/reconcile/streak"
)

// OpenStore connects the configured document store. The returned func
// releases the connection and must be called once the run is over.
func OpenStore(ctx context.Context, cfg *config.Config, appName string, logger *slog.Logger) (docstore.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database, appName)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return postgres.NewStore(pool), pool.Close, nil

	case config.StoreDriverMongo:
		client, db, err := mongo.Connect(ctx, cfg.Mongo, appName)
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo store: %w", err)
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("disconnect mongo", slog.String("error", err.Error()))
			}
		}
		indexes := mongo.ReconcileIndexes(streak.CollectionUsers, streak.SubcollectionActivities, quest.CollectionQuests)
		if err := mongo.EnsureIndexes(ctx, db, indexes); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("open mongo store: %w", err)
		}
		return mongo.NewStore(db), closeFn, nil

	case config.StoreDriverMemory:
		logger.Warn("using the in-memory store; nothing will be reconciled")
		return memory.New(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
