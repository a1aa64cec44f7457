package mongo

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// Store implements docstore.Store on a MongoDB database.
type Store struct {
	db *mongo.Database
}

// NewStore creates a document store on db.
func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

var _ docstore.Store = (*Store)(nil)

// SubcollectionName returns the collection a subcollection is stored in.
func SubcollectionName(parentCollection, name string) string {
	return parentCollection + "." + name
}

// Query implements docstore.Store.
func (s *Store) Query(ctx context.Context, q docstore.Query) (docstore.Page, error) {
	if err := q.Normalize(); err != nil {
		return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	var cursor *pageCursor
	if q.Cursor != "" {
		c, err := decodePageCursor(q.Cursor)
		if err != nil {
			return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		cursor = &c
	}

	filter, err := queryFilter(q.Filter, q.OrderBy, cursor)
	if err != nil {
		return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	opts := options.Find().
		SetSort(sortOrder(q.OrderBy)).
		SetLimit(int64(q.PageSize) + 1)

	raws, err := s.find(ctx, q.Collection, filter, opts)
	if err != nil {
		return docstore.Page{}, err
	}

	docs := decodeAll(raws)
	page := docstore.Page{Documents: docs}
	if len(docs) > q.PageSize {
		page.Documents = docs[:q.PageSize]
		last := q.PageSize - 1
		next, err := encodePageCursor(raws[last], docs[last], q.OrderBy)
		if err != nil {
			return docstore.Page{}, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		page.NextCursor = next
	}
	return page, nil
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: keyID, Value: idMatch(id)}}).Decode(&raw)
	if err != nil {
		return docstore.Document{}, mapError(err, collection, id)
	}
	return decodeDocument(raw), nil
}

// Subcollection implements docstore.Store.
func (s *Store) Subcollection(ctx context.Context, parent docstore.Ref, name string, order docstore.OrderBy, limit int) ([]docstore.Document, error) {
	coll := SubcollectionName(parent.Collection, name)
	if order.Field != "" && !docstore.ValidField(order.Field) {
		return nil, fmt.Errorf("subcollection %s: %w", coll, domain.NewValidationError("order_by", "invalid field name"))
	}

	filter := bson.D{{Key: keyParent, Value: idMatch(parent.ID)}}
	if order.Field != "" {
		filter = append(filter, bson.E{Key: order.Field, Value: bson.D{
			{Key: "$exists", Value: true},
			{Key: "$ne", Value: nil},
		}})
	}

	opts := options.Find().SetSort(sortOrder(order))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	raws, err := s.find(ctx, coll, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll(raws), nil
}

// ConditionalUpdate implements docstore.Store. The precondition, the patch
// and the version bump are applied by a single UpdateOne.
func (s *Store) ConditionalUpdate(ctx context.Context, collection, id string, expect docstore.Expect, fields map[string]any) error {
	if err := docstore.ValidateExpect(expect, fields); err != nil {
		return fmt.Errorf("%s %s: %w", collection, id, err)
	}

	filter, err := expectFilter(id, expect)
	if err != nil {
		return fmt.Errorf("%s %s: %w", collection, id, err)
	}
	set, err := setDoc(fields)
	if err != nil {
		return fmt.Errorf("%s %s: %w", collection, id, err)
	}

	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$inc", Value: bson.D{{Key: keyVersion, Value: int64(1)}}},
	}

	coll := s.db.Collection(collection)
	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return mapError(err, collection, id)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := coll.CountDocuments(ctx, bson.D{{Key: keyID, Value: idMatch(id)}}, options.Count().SetLimit(1))
	if err != nil {
		return mapError(err, collection, id)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", collection, id, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", collection, id, docstore.ErrPreconditionFailed)
}

// Put upserts fields into a document and bumps its version. Used by seeding
// and tests; the reconciliation jobs only write through ConditionalUpdate.
// The id is always stored as a string.
func (s *Store) Put(ctx context.Context, collection, id string, fields map[string]any) (docstore.Document, error) {
	return s.put(ctx, collection, id, fields)
}

// PutSub upserts a document in a subcollection of parent.
func (s *Store) PutSub(ctx context.Context, parent docstore.Ref, name, id string, fields map[string]any) (docstore.Document, error) {
	return s.put(ctx, SubcollectionName(parent.Collection, name), id, fields, bson.E{Key: keyParent, Value: parent.ID})
}

func (s *Store) put(ctx context.Context, collection, id string, fields map[string]any, extra ...bson.E) (docstore.Document, error) {
	set, err := setDoc(fields)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("%s %s: %w", collection, id, err)
	}
	set = append(set, extra...)

	update := bson.D{{Key: "$inc", Value: bson.D{{Key: keyVersion, Value: int64(1)}}}}
	if len(set) > 0 {
		update = append(bson.D{{Key: "$set", Value: set}}, update...)
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var raw bson.M
	err = s.db.Collection(collection).FindOneAndUpdate(ctx, bson.D{{Key: keyID, Value: id}}, update, opts).Decode(&raw)
	if err != nil {
		return docstore.Document{}, mapError(err, collection, id)
	}
	return decodeDocument(raw), nil
}

func (s *Store) find(ctx context.Context, collection string, filter bson.D, opts *options.FindOptions) ([]bson.M, error) {
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, mapError(err, collection, "")
	}
	defer cur.Close(ctx)

	var raws []bson.M
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		raws = append(raws, raw)
	}
	if err := cur.Err(); err != nil {
		return nil, mapError(err, collection, "")
	}
	return raws, nil
}

func decodeAll(raws []bson.M) []docstore.Document {
	docs := make([]docstore.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, decodeDocument(raw))
	}
	return docs
}

// decodeDocument splits the reserved keys off a raw document and converts
// BSON-specific values to the canonical docstore representations.
func decodeDocument(raw bson.M) docstore.Document {
	doc := docstore.Document{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case keyID:
			doc.ID = idString(v)
		case keyVersion:
			if n, _, err := docstore.Normalize(fromBSON(v)); err == nil {
				if i, ok := n.(int64); ok {
					doc.Version = i
				}
			}
		case keyParent:
		default:
			doc.Fields[k] = fromBSON(v)
		}
	}
	return doc
}

func fromBSON(v any) any {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(x.T), 0).UTC()
	case int32:
		return int64(x)
	case primitive.ObjectID:
		return x.Hex()
	case primitive.Null:
		return nil
	default:
		return v
	}
}

func idString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case primitive.ObjectID:
		return x.Hex()
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
