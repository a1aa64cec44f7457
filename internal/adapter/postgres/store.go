package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// Store implements docstore.Store on a single JSONB "documents" table keyed
// by (collection, id). Subcollections live in the same table under the
// collection path "<parent collection>/<parent id>/<name>".
type Store struct {
	q Querier
}

// NewStore creates a document store on top of q, normally a *pgxpool.Pool.
func NewStore(q Querier) *Store {
	return &Store{q: q}
}

var _ docstore.Store = (*Store)(nil)

// SubcollectionPath returns the collection path a subcollection is stored under.
func SubcollectionPath(parent docstore.Ref, name string) string {
	return parent.Collection + "/" + parent.ID + "/" + name
}

// Query implements docstore.Store.
func (s *Store) Query(ctx context.Context, q docstore.Query) (docstore.Page, error) {
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

	b := selectDocuments(q.Collection)
	for _, c := range q.Filter {
		pred, err := conditionSQL(c)
		if err != nil {
			return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		b = b.Where(pred)
	}

	b, err := orderSQL(b, q.OrderBy, cursor)
	if err != nil {
		return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	b = b.Limit(uint64(q.PageSize) + 1)

	docs, err := s.selectMany(ctx, b, q.Collection)
	if err != nil {
		return docstore.Page{}, err
	}

	page := docstore.Page{Documents: docs}
	if len(docs) > q.PageSize {
		page.Documents = docs[:q.PageSize]
		next, err := docstore.EncodeCursor(page.Documents[q.PageSize-1], q.OrderBy)
		if err != nil {
			return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		page.NextCursor = next
	}
	return page, nil
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	query, args, err := selectDocuments(collection).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return docstore.Document{}, fmt.Errorf("build get %s %s: %w", collection, id, err)
	}

	var (
		docID   string
		raw     []byte
		version int64
	)
	if err := s.q.QueryRow(ctx, query, args...).Scan(&docID, &raw, &version); err != nil {
		return docstore.Document{}, mapError(err, collection, id)
	}

	doc, err := decodeDocument(docID, raw, version)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("%s %s: %w", collection, id, err)
	}
	return doc, nil
}

// Subcollection implements docstore.Store.
func (s *Store) Subcollection(ctx context.Context, parent docstore.Ref, name string, order docstore.OrderBy, limit int) ([]docstore.Document, error) {
	path := SubcollectionPath(parent, name)
	if order.Field != "" && !docstore.ValidField(order.Field) {
		return nil, fmt.Errorf("subcollection %s: %w", path, domain.NewValidationError("order_by", "invalid field name"))
	}

	b, err := orderSQL(selectDocuments(path), order, nil)
	if err != nil {
		return nil, fmt.Errorf("subcollection %s: %w", path, err)
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	return s.selectMany(ctx, b, path)
}

// ConditionalUpdate implements docstore.Store. The patch is merged into the
// stored fields and the version is bumped in the same statement that checks
// the precondition.
func (s *Store) ConditionalUpdate(ctx context.Context, collection, id string, expect docstore.Expect, fields map[string]any) error {
	if err := docstore.ValidateExpect(expect, fields); err != nil {
		return fmt.Errorf("%s %s: %w", collection, id, err)
	}

	patch, err := encodeFields(fields)
	if err != nil {
		return fmt.Errorf("%s %s: %w", collection, id, err)
	}
	preds, err := expectSQL(expect)
	if err != nil {
		return fmt.Errorf("%s %s: %w", collection, id, err)
	}

	query, args, err := psql.Update(documentsTable).
		Set("fields", sq.Expr("fields || ?::jsonb", string(patch))).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"collection": collection, "id": id}).
		Where(preds).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update %s %s: %w", collection, id, err)
	}

	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, collection, id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	exists, err := s.exists(ctx, collection, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", collection, id, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", collection, id, docstore.ErrPreconditionFailed)
}

// Put creates or replaces a document, bumping its version. Used by seeding
// and tests; the reconciliation jobs only write through ConditionalUpdate.
func (s *Store) Put(ctx context.Context, collection, id string, fields map[string]any) (docstore.Document, error) {
	raw, err := encodeFields(fields)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("%s %s: %w", collection, id, err)
	}

	query, args, err := psql.Insert(documentsTable).
		Columns("collection", "id", "fields").
		Values(collection, id, sq.Expr("?::jsonb", string(raw))).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields, version = documents.version + 1, updated_at = now()").
		Suffix("RETURNING id, fields, version").
		ToSql()
	if err != nil {
		return docstore.Document{}, fmt.Errorf("build put %s %s: %w", collection, id, err)
	}

	var (
		docID   string
		stored  []byte
		version int64
	)
	if err := s.q.QueryRow(ctx, query, args...).Scan(&docID, &stored, &version); err != nil {
		return docstore.Document{}, mapError(err, collection, id)
	}
	return decodeDocument(docID, stored, version)
}

// PutSub creates or replaces a document in a subcollection of parent.
func (s *Store) PutSub(ctx context.Context, parent docstore.Ref, name, id string, fields map[string]any) (docstore.Document, error) {
	return s.Put(ctx, SubcollectionPath(parent, name), id, fields)
}

func (s *Store) exists(ctx context.Context, collection, id string) (bool, error) {
	query, args, err := psql.Select("1").
		From(documentsTable).
		Where(sq.Eq{"collection": collection, "id": id}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists %s %s: %w", collection, id, err)
	}

	var ok bool
	if err := s.q.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, mapError(err, collection, id)
	}
	return ok, nil
}

func (s *Store) selectMany(ctx context.Context, b sq.SelectBuilder, collection string) ([]docstore.Document, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query %s: %w", collection, err)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, collection, "")
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var (
			id      string
			raw     []byte
			version int64
		)
		if err := rows.Scan(&id, &raw, &version); err != nil {
			return nil, mapError(err, collection, "")
		}
		doc, err := decodeDocument(id, raw, version)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", collection, id, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, collection, "")
	}
	return docs, nil
}

// decodeDocument parses stored JSONB. Numbers decode as json.Number so that
// integers survive the round trip.
func decodeDocument(id string, raw []byte, version int64) (docstore.Document, error) {
	fields := make(map[string]any)
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return docstore.Document{}, fmt.Errorf("decode fields: %w", err)
		}
	}
	return docstore.Document{ID: id, Fields: fields, Version: version}, nil
}

// encodeFields normalizes values before marshalling so instants are stored
// as UTC RFC 3339 strings.
func encodeFields(fields map[string]any) ([]byte, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		n, kind, err := docstore.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		if kind == docstore.KindTime {
			n = n.(time.Time).Format(time.RFC3339Nano)
		}
		out[k] = n
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return b, nil
}
