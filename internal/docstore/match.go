package docstore

import "fmt"

// Match evaluates filter against doc. A missing field never matches,
// including for OpNe, mirroring how document stores treat absent keys.
func Match(doc Document, filter []Condition) (bool, error) {
	for _, c := range filter {
		v, ok := doc.Value(c.Field)
		if !ok {
			return false, nil
		}
		cmp, err := Compare(v, c.Value)
		if err != nil {
			// Type mismatch: the condition cannot hold for this document.
			return false, nil
		}
		ok, err = holds(c.Op, cmp)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func holds(op Op, cmp int) (bool, error) {
	switch op {
	case OpEq:
		return cmp == 0, nil
	case OpNe:
		return cmp != 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpLte:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGte:
		return cmp >= 0, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

// MatchExpect reports whether doc satisfies a conditional-update precondition.
func MatchExpect(doc Document, expect Expect) bool {
	if expect.Version != nil && doc.Version != *expect.Version {
		return false
	}
	for name, want := range expect.Fields {
		got, ok := doc.Value(name)
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		cmp, err := Compare(got, want)
		if err != nil || cmp != 0 {
			return false
		}
	}
	return true
}
