package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Index describes a secondary index the reconciliation queries rely on.
type Index struct {
	Collection string
	Name       string
	Keys       bson.D
}

// ReconcileIndexes returns the indexes backing the streak and quest scans.
// Collection and field names are passed in so the jobs stay the only owners
// of their schema constants.
func ReconcileIndexes(users, activities, quests string) []Index {
	return []Index{
		{
			Collection: users,
			Name:       "idx_streak_count",
			Keys:       bson.D{{Key: "streak_count", Value: 1}, {Key: keyID, Value: 1}},
		},
		{
			Collection: SubcollectionName(users, activities),
			Name:       "idx_parent_completed_at",
			Keys:       bson.D{{Key: keyParent, Value: 1}, {Key: "completed_at", Value: -1}, {Key: keyID, Value: -1}},
		},
		{
			Collection: quests,
			Name:       "idx_status_end_date",
			Keys:       bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}, {Key: keyID, Value: 1}},
		},
	}
}

// EnsureIndexes creates the given indexes. Creating an existing index with
// the same definition is a no-op on the server.
func EnsureIndexes(ctx context.Context, db *mongo.Database, indexes []Index) error {
	for _, idx := range indexes {
		model := mongo.IndexModel{
			Keys:    idx.Keys,
			Options: options.Index().SetName(idx.Name),
		}
		if _, err := db.Collection(idx.Collection).Indexes().CreateOne(ctx, model); err != nil {
			return mapError(fmt.Errorf("create index %s: %w", idx.Name, err), idx.Collection, "")
		}
	}
	return nil
}
