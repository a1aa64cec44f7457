package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind classifies field values for comparison and SQL casting.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "null"
	}
}

// Normalize converts a Go value into one of the canonical representations:
// nil, bool, int64, float64, string or UTC time.Time.
func Normalize(v any) (any, Kind, error) {
	switch x := v.(type) {
	case nil:
		return nil, KindNull, nil
	case bool:
		return x, KindBool, nil
	case int:
		return int64(x), KindInt, nil
	case int8:
		return int64(x), KindInt, nil
	case int16:
		return int64(x), KindInt, nil
	case int32:
		return int64(x), KindInt, nil
	case int64:
		return x, KindInt, nil
	case uint:
		return int64(x), KindInt, nil
	case uint8:
		return int64(x), KindInt, nil
	case uint16:
		return int64(x), KindInt, nil
	case uint32:
		return int64(x), KindInt, nil
	case float32:
		return float64(x), KindFloat, nil
	case float64:
		return x, KindFloat, nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, KindInt, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, KindNull, fmt.Errorf("number %q: %w", x.String(), err)
		}
		return f, KindFloat, nil
	case string:
		return x, KindString, nil
	case time.Time:
		return x.UTC(), KindTime, nil
	case *time.Time:
		if x == nil {
			return nil, KindNull, nil
		}
		return x.UTC(), KindTime, nil
	default:
		return nil, KindNull, fmt.Errorf("unsupported value type %T", v)
	}
}

// KindOf returns the Kind of v, or KindNull for unsupported types.
func KindOf(v any) Kind {
	_, k, err := Normalize(v)
	if err != nil {
		return KindNull
	}
	return k
}

// Compare orders two values. Integers and floats compare numerically, and a
// string compares against a time when it parses as RFC 3339, since JSON-backed
// stores hand instants back as strings.
func Compare(a, b any) (int, error) {
	na, ka, err := Normalize(a)
	if err != nil {
		return 0, err
	}
	nb, kb, err := Normalize(b)
	if err != nil {
		return 0, err
	}

	switch {
	case ka == KindNull || kb == KindNull:
		if ka == kb {
			return 0, nil
		}
		return 0, fmt.Errorf("compare %s with %s", ka, kb)
	case isNumeric(ka) && isNumeric(kb):
		return compareFloat(toFloat(na), toFloat(nb)), nil
	case ka == KindTime || kb == KindTime:
		ta, err := asTime(na)
		if err != nil {
			return 0, err
		}
		tb, err := asTime(nb)
		if err != nil {
			return 0, err
		}
		return ta.Compare(tb), nil
	case ka != kb:
		return 0, fmt.Errorf("compare %s with %s", ka, kb)
	case ka == KindString:
		sa, sb := na.(string), nb.(string)
		switch {
		case sa < sb:
			return -1, nil
		case sa > sb:
			return 1, nil
		}
		return 0, nil
	case ka == KindBool:
		ba, bb := na.(bool), nb.(bool)
		switch {
		case ba == bb:
			return 0, nil
		case !ba:
			return -1, nil
		}
		return 1, nil
	}
	return 0, fmt.Errorf("compare %s with %s", ka, kb)
}

// Coerce converts v to the canonical representation of kind k. RFC 3339
// strings coerce to KindTime and the two numeric kinds convert into each
// other when no precision is lost.
func Coerce(v any, k Kind) (any, error) {
	n, kind, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	if kind == k {
		return n, nil
	}
	switch {
	case k == KindTime:
		return asTime(n)
	case k == KindFloat && kind == KindInt:
		return float64(n.(int64)), nil
	case k == KindInt && kind == KindFloat:
		if f := n.(float64); f == math.Trunc(f) {
			return int64(f), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %s to %s", kind, k)
}

func isNumeric(k Kind) bool { return k == KindInt || k == KindFloat }

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func asTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case *time.Time:
		if x == nil {
			return time.Time{}, fmt.Errorf("nil time")
		}
		return x.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", x, err)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("value of type %T is not a time", v)
}
