package docstore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Cursor is the decoded keyset position: the order-field value and the id of
// the last document on the previous page. Paging on (value, id) instead of an
// offset keeps pages stable when documents are inserted or removed mid-scan.
type Cursor struct {
	ID    string
	Value any
}

type cursorWire struct {
	ID    string `json:"id"`
	Kind  string `json:"k,omitempty"`
	Value string `json:"v,omitempty"`
}

// EncodeCursor builds the opaque cursor pointing after doc for the given order.
func EncodeCursor(doc Document, order OrderBy) (string, error) {
	w := cursorWire{ID: doc.ID}
	if order.Field != "" {
		v, ok := doc.Value(order.Field)
		if !ok {
			return "", fmt.Errorf("encode cursor: document %s lacks order field %q", doc.ID, order.Field)
		}
		n, kind, err := Normalize(v)
		if err != nil {
			return "", fmt.Errorf("encode cursor: %w", err)
		}
		w.Kind = kind.String()
		switch kind {
		case KindTime:
			w.Value = n.(time.Time).Format(time.RFC3339Nano)
		default:
			b, err := json.Marshal(n)
			if err != nil {
				return "", fmt.Errorf("encode cursor: %w", err)
			}
			w.Value = string(b)
		}
	}

	b, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor parses a cursor produced by EncodeCursor.
func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var w cursorWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if w.ID == "" {
		return Cursor{}, fmt.Errorf("%w: missing id", ErrInvalidCursor)
	}

	c := Cursor{ID: w.ID}
	if w.Kind == "" {
		return c, nil
	}

	switch w.Kind {
	case KindTime.String():
		t, err := time.Parse(time.RFC3339Nano, w.Value)
		if err != nil {
			return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		c.Value = t.UTC()
	case KindInt.String():
		var n int64
		err = json.Unmarshal([]byte(w.Value), &n)
		c.Value = n
	case KindFloat.String():
		var f float64
		err = json.Unmarshal([]byte(w.Value), &f)
		c.Value = f
	case KindString.String():
		var s string
		err = json.Unmarshal([]byte(w.Value), &s)
		c.Value = s
	case KindBool.String():
		var b bool
		err = json.Unmarshal([]byte(w.Value), &b)
		c.Value = b
	default:
		return Cursor{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidCursor, w.Kind)
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return c, nil
}

// HasValue reports whether the cursor carries an order-field value.
func (c Cursor) HasValue() bool { return c.Value != nil }

// CompareKeys orders two (value, id) keys under order. Ids break ties in the
// same direction as the order field.
func CompareKeys(order OrderBy, aVal any, aID string, bVal any, bID string) (int, error) {
	cmp := 0
	if order.Field != "" {
		var err error
		cmp, err = Compare(aVal, bVal)
		if err != nil {
			return 0, err
		}
	}
	if cmp == 0 {
		switch {
		case aID < bID:
			cmp = -1
		case aID > bID:
			cmp = 1
		}
	}
	if order.Desc {
		cmp = -cmp
	}
	return cmp, nil
}
