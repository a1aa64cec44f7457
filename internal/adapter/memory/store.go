// Package memory implements docstore.Store in process memory. It backs the
// reconciliation tests and the "memory" store driver used for dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// Store is a concurrency-safe in-memory document store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]docstore.Document
}

// New creates an empty Store.
func New() *Store {
	return &Store{collections: make(map[string]map[string]docstore.Document)}
}

var _ docstore.Store = (*Store)(nil)

func subPath(parent docstore.Ref, name string) string {
	return parent.Collection + "/" + parent.ID + "/" + name
}

// Put creates or replaces a document, bumping its version.
func (s *Store) Put(collection, id string, fields map[string]any) docstore.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]docstore.Document)
		s.collections[collection] = coll
	}

	doc := docstore.Document{ID: id, Fields: normalizeFields(fields), Version: coll[id].Version + 1}
	coll[id] = doc
	return doc.Clone()
}

// PutSub creates or replaces a document in a subcollection of parent.
func (s *Store) PutSub(parent docstore.Ref, name, id string, fields map[string]any) docstore.Document {
	return s.Put(subPath(parent, name), id, fields)
}

// Delete removes a document. Deleting a missing document is a no-op.
func (s *Store) Delete(collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
}

// Len returns the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// Snapshot returns copies of every document in a collection keyed by id.
func (s *Store) Snapshot(collection string) map[string]docstore.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]docstore.Document, len(s.collections[collection]))
	for id, doc := range s.collections[collection] {
		out[id] = doc.Clone()
	}
	return out
}

// Query implements docstore.Store.
func (s *Store) Query(ctx context.Context, q docstore.Query) (docstore.Page, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Page{}, err
	}
	if err := q.Normalize(); err != nil {
		return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	var cursor *docstore.Cursor
	if q.Cursor != "" {
		c, err := docstore.DecodeCursor(q.Cursor)
		if err != nil {
			return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		cursor = &c
	}

	s.mu.RLock()
	candidates := make([]docstore.Document, 0, len(s.collections[q.Collection]))
	for _, doc := range s.collections[q.Collection] {
		candidates = append(candidates, doc.Clone())
	}
	s.mu.RUnlock()

	matched, err := filterAndSort(candidates, q.Filter, q.OrderBy)
	if err != nil {
		return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	if cursor != nil {
		start := len(matched)
		for i, doc := range matched {
			v, _ := doc.Value(q.OrderBy.Field)
			cmp, err := docstore.CompareKeys(q.OrderBy, v, doc.ID, cursor.Value, cursor.ID)
			if err != nil {
				return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, docstore.ErrInvalidCursor)
			}
			if cmp > 0 {
				start = i
				break
			}
		}
		matched = matched[start:]
	}

	page := docstore.Page{}
	if len(matched) > q.PageSize {
		page.Documents = matched[:q.PageSize]
		next, err := docstore.EncodeCursor(page.Documents[q.PageSize-1], q.OrderBy)
		if err != nil {
			return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		page.NextCursor = next
	} else {
		page.Documents = matched
	}
	return page, nil
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return docstore.Document{}, fmt.Errorf("%s %s: %w", collection, id, domain.ErrNotFound)
	}
	return doc.Clone(), nil
}

// Subcollection implements docstore.Store.
func (s *Store) Subcollection(ctx context.Context, parent docstore.Ref, name string, order docstore.OrderBy, limit int) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if order.Field != "" && !docstore.ValidField(order.Field) {
		return nil, fmt.Errorf("subcollection %s: %w", name, domain.NewValidationError("order_by", "invalid field name"))
	}

	path := subPath(parent, name)

	s.mu.RLock()
	docs := make([]docstore.Document, 0, len(s.collections[path]))
	for _, doc := range s.collections[path] {
		docs = append(docs, doc.Clone())
	}
	s.mu.RUnlock()

	sorted, err := filterAndSort(docs, nil, order)
	if err != nil {
		return nil, fmt.Errorf("subcollection %s: %w", path, err)
	}
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// ConditionalUpdate implements docstore.Store.
func (s *Store) ConditionalUpdate(ctx context.Context, collection, id string, expect docstore.Expect, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := docstore.ValidateExpect(expect, fields); err != nil {
		return fmt.Errorf("%s %s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s %s: %w", collection, id, domain.ErrNotFound)
	}
	if !docstore.MatchExpect(doc, expect) {
		return fmt.Errorf("%s %s: %w", collection, id, docstore.ErrPreconditionFailed)
	}

	updated := doc.Clone()
	for k, v := range normalizeFields(fields) {
		updated.Fields[k] = v
	}
	updated.Version++
	s.collections[collection][id] = updated
	return nil
}

func filterAndSort(docs []docstore.Document, filter []docstore.Condition, order docstore.OrderBy) ([]docstore.Document, error) {
	out := docs[:0]
	for _, doc := range docs {
		ok, err := docstore.Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if order.Field != "" {
			if _, has := doc.Value(order.Field); !has {
				continue
			}
		}
		out = append(out, doc)
	}

	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		vi, _ := out[i].Value(order.Field)
		vj, _ := out[j].Value(order.Field)
		cmp, err := docstore.CompareKeys(order, vi, out[i].ID, vj, out[j].ID)
		if err != nil && sortErr == nil {
			sortErr = fmt.Errorf("order by %s: %w", order.Field, err)
		}
		return cmp < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return out, nil
}

func normalizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if n, _, err := docstore.Normalize(v); err == nil {
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out
}
