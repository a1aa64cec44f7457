package testhelper

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UniqueCollection returns a collection name no other test uses.
func UniqueCollection(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

// SeedDocument inserts a document with version 1 directly, bypassing the store.
func SeedDocument(t *testing.T, pool *pgxpool.Pool, collection, id string, fields map[string]any) {
	t.Helper()

	raw, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("SeedDocument: marshal fields: %v", err)
	}

	_, err = pool.Exec(context.Background(),
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)`,
		collection, id, string(raw),
	)
	if err != nil {
		t.Fatalf("SeedDocument: insert %s/%s: %v", collection, id, err)
	}
}
