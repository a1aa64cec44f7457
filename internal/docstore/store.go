// Package docstore defines the document store capability consumed by the
// reconciliation jobs: filtered keyset-paginated queries, point reads,
// ordered subcollection reads and per-document conditional writes.
package docstore

import (
	"context"
	"time"
)

// Store is implemented by every document store adapter.
//
// Get and ConditionalUpdate return an error wrapping domain.ErrNotFound for
// missing documents. ConditionalUpdate returns ErrPreconditionFailed when the
// document exists but no longer matches Expect.
type Store interface {
	Query(ctx context.Context, q Query) (Page, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Subcollection(ctx context.Context, parent Ref, name string, order OrderBy, limit int) ([]Document, error)
	ConditionalUpdate(ctx context.Context, collection, id string, expect Expect, fields map[string]any) error
}

// Ref addresses a single document.
type Ref struct {
	Collection string
	ID         string
}

// Document is a schemaless record. Version is the optimistic-concurrency
// token, bumped on every conditional update.
type Document struct {
	ID      string
	Fields  map[string]any
	Version int64
}

// Expect is the precondition of a conditional update. A nil Version skips the
// version check; every entry in Fields must equal the stored value.
type Expect struct {
	Version *int64
	Fields  map[string]any
}

// ExpectVersion is a shorthand for an Expect on the document version.
func ExpectVersion(v int64) Expect {
	return Expect{Version: &v}
}

// Page is one page of query results. An empty NextCursor marks the last page.
type Page struct {
	Documents  []Document
	NextCursor string
}

// Value returns the raw value of a field and whether it is present and non-nil.
func (d Document) Value(field string) (any, bool) {
	v, ok := d.Fields[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns a string field.
func (d Document) String(field string) (string, bool) {
	v, ok := d.Value(field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns an integer field. Whole floats and json numbers are accepted
// since JSON-backed stores do not preserve integer types.
func (d Document) Int(field string) (int64, bool) {
	v, ok := d.Value(field)
	if !ok {
		return 0, false
	}
	n, kind, err := Normalize(v)
	if err != nil {
		return 0, false
	}
	switch kind {
	case KindInt:
		return n.(int64), true
	case KindFloat:
		f := n.(float64)
		if f != float64(int64(f)) {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

// Time returns an instant field. RFC 3339 strings are parsed.
func (d Document) Time(field string) (time.Time, bool) {
	v, ok := d.Value(field)
	if !ok {
		return time.Time{}, false
	}
	t, err := asTime(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Clone returns a deep copy of the top-level field map.
func (d Document) Clone() Document {
	out := Document{ID: d.ID, Version: d.Version, Fields: make(map[string]any, len(d.Fields))}
	for k, v := range d.Fields {
		out.Fields[k] = v
	}
	return out
}
