package mongo

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
)

// Reserved document keys.
const (
	keyID      = "_id"
	keyVersion = "_version"
	keyParent  = "_parent"
)

var mongoOps = map[docstore.Op]string{
	docstore.OpEq:  "$eq",
	docstore.OpNe:  "$ne",
	docstore.OpLt:  "$lt",
	docstore.OpLte: "$lte",
	docstore.OpGt:  "$gt",
	docstore.OpGte: "$gte",
}

// matchNothing is a filter no document satisfies. Comparisons against null
// never hold, matching the other stores.
var matchNothing = bson.D{{Key: keyID, Value: bson.D{{Key: "$exists", Value: false}}}}

// conditionFilter translates one predicate. BSON comparison operators only
// match values of the same type bracket, so numbers never compare against
// strings. "!=" additionally requires the field to be present and non-null.
func conditionFilter(c docstore.Condition) (bson.D, error) {
	op, ok := mongoOps[c.Op]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", c.Op)
	}
	v, kind, err := docstore.Normalize(c.Value)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", c.Field, err)
	}
	if kind == docstore.KindNull {
		return matchNothing, nil
	}

	expr := bson.D{{Key: op, Value: v}}
	if c.Op == docstore.OpNe {
		expr = bson.D{{Key: "$nin", Value: bson.A{v, nil}}, {Key: "$exists", Value: true}}
	}
	return bson.D{{Key: c.Field, Value: expr}}, nil
}

// idMatch matches a document by the id it was read back with. Ids stored as
// ObjectIDs are read as hex strings, so a hex id also matches its ObjectID.
func idMatch(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.D{{Key: "$in", Value: bson.A{id, oid}}}
	}
	return id
}

// pageCursor is a keyset position together with the BSON type of the last
// id. Strings sort before ObjectIDs, so resuming after an id depends on both.
type pageCursor struct {
	docstore.Cursor
	objectID *primitive.ObjectID
}

// Cursor prefixes recording the type of the last id.
const (
	stringIDCursor = "s."
	objectIDCursor = "o."
)

// encodePageCursor points after the document decoded from raw.
func encodePageCursor(raw bson.M, doc docstore.Document, order docstore.OrderBy) (string, error) {
	c, err := docstore.EncodeCursor(doc, order)
	if err != nil {
		return "", err
	}
	if _, ok := raw[keyID].(primitive.ObjectID); ok {
		return objectIDCursor + c, nil
	}
	return stringIDCursor + c, nil
}

func decodePageCursor(s string) (pageCursor, error) {
	if len(s) < len(stringIDCursor) {
		return pageCursor{}, fmt.Errorf("%w: unknown id type", docstore.ErrInvalidCursor)
	}
	prefix, rest := s[:len(stringIDCursor)], s[len(stringIDCursor):]
	if prefix != stringIDCursor && prefix != objectIDCursor {
		return pageCursor{}, fmt.Errorf("%w: unknown id type", docstore.ErrInvalidCursor)
	}

	c, err := docstore.DecodeCursor(rest)
	if err != nil {
		return pageCursor{}, err
	}
	pc := pageCursor{Cursor: c}
	if prefix == objectIDCursor {
		oid, err := primitive.ObjectIDFromHex(c.ID)
		if err != nil {
			return pageCursor{}, fmt.Errorf("%w: %v", docstore.ErrInvalidCursor, err)
		}
		pc.objectID = &oid
	}
	return pc, nil
}

// queryFilter builds the complete filter for one page: the caller's
// predicates, presence of the order field and the keyset position.
func queryFilter(filter []docstore.Condition, order docstore.OrderBy, cursor *pageCursor) (bson.D, error) {
	var and bson.A
	for _, c := range filter {
		f, err := conditionFilter(c)
		if err != nil {
			return nil, err
		}
		and = append(and, f)
	}

	if order.Field != "" {
		and = append(and, bson.D{{Key: order.Field, Value: bson.D{
			{Key: "$exists", Value: true},
			{Key: "$ne", Value: nil},
		}}})
	}

	if cursor != nil {
		f, err := cursorFilter(order, *cursor)
		if err != nil {
			return nil, err
		}
		and = append(and, f)
	}

	if len(and) == 0 {
		return bson.D{}, nil
	}
	return bson.D{{Key: "$and", Value: and}}, nil
}

// idAfter matches ids past the cursor id in sort order. Comparison operators
// stay within one BSON type, so ids of the type sorted later are added
// explicitly.
func idAfter(c pageCursor, desc bool) bson.D {
	switch {
	case !desc && c.objectID != nil:
		return bson.D{{Key: keyID, Value: bson.D{{Key: "$gt", Value: *c.objectID}}}}
	case !desc:
		return bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: keyID, Value: bson.D{{Key: "$gt", Value: c.ID}}}},
			bson.D{{Key: keyID, Value: bson.D{{Key: "$type", Value: "objectId"}}}},
		}}}
	case c.objectID != nil:
		return bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: keyID, Value: bson.D{{Key: "$lt", Value: *c.objectID}}}},
			bson.D{{Key: keyID, Value: bson.D{{Key: "$type", Value: "string"}}}},
		}}}
	default:
		return bson.D{{Key: keyID, Value: bson.D{{Key: "$lt", Value: c.ID}}}}
	}
}

func cursorFilter(order docstore.OrderBy, c pageCursor) (bson.D, error) {
	if order.Field == "" {
		return idAfter(c, order.Desc), nil
	}
	if !c.HasValue() {
		return nil, docstore.ErrInvalidCursor
	}

	after := "$gt"
	if order.Desc {
		after = "$lt"
	}

	v := c.Value
	if order.Type != docstore.KindNull {
		coerced, err := docstore.Coerce(v, order.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", docstore.ErrInvalidCursor, err)
		}
		v = coerced
	}

	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: order.Field, Value: bson.D{{Key: after, Value: v}}}},
		append(bson.D{{Key: order.Field, Value: v}}, idAfter(c, order.Desc)...),
	}}}, nil
}

// sortOrder orders by the order field with the id as tie breaker.
func sortOrder(order docstore.OrderBy) bson.D {
	dir := 1
	if order.Desc {
		dir = -1
	}
	if order.Field == "" {
		return bson.D{{Key: keyID, Value: dir}}
	}
	return bson.D{{Key: order.Field, Value: dir}, {Key: keyID, Value: dir}}
}

// expectFilter builds the compare-and-set precondition. A document written
// by a collaborator without a version reads as version 0.
func expectFilter(id string, expect docstore.Expect) (bson.D, error) {
	f := bson.D{{Key: keyID, Value: idMatch(id)}}

	if expect.Version != nil {
		if *expect.Version == 0 {
			f = append(f, bson.E{Key: keyVersion, Value: bson.D{{Key: "$in", Value: bson.A{nil, int64(0)}}}})
		} else {
			f = append(f, bson.E{Key: keyVersion, Value: *expect.Version})
		}
	}

	for _, name := range sortedKeys(expect.Fields) {
		v, _, err := docstore.Normalize(expect.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("expect %s: %w", name, err)
		}
		// {field: null} matches both explicit null and a missing field.
		f = append(f, bson.E{Key: name, Value: v})
	}
	return f, nil
}

// setDoc normalizes a patch for "$set"; instants become BSON dates.
func setDoc(fields map[string]any) (bson.D, error) {
	out := make(bson.D, 0, len(fields))
	for _, name := range sortedKeys(fields) {
		v, _, err := docstore.Normalize(fields[name])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out = append(out, bson.E{Key: name, Value: v})
	}
	return out, nil
}
