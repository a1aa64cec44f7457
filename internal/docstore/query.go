package docstore

import (
	"fmt"
	"regexp"

	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

func (o Op) IsValid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Condition is a single field predicate. Conditions in a filter are ANDed.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Condition.
func Where(field string, op Op, value any) Condition {
	return Condition{Field: field, Op: op, Value: value}
}

// OrderBy selects the sort field of a query. An empty Field sorts by document
// id. Type hints the stored kind so stores that keep values as text (JSONB)
// can cast before comparing; in-memory and native stores ignore it.
// Documents lacking the order field are excluded from ordered results.
type OrderBy struct {
	Field string
	Desc  bool
	Type  Kind
}

// ByID orders by document id ascending, the default keyset.
func ByID() OrderBy { return OrderBy{} }

// Query describes one page request.
type Query struct {
	Collection string
	Filter     []Condition
	OrderBy    OrderBy
	// Cursor is the opaque NextCursor of the previous page; empty for the first page.
	Cursor string
	// PageSize is clamped to [1, MaxPageSize]; zero means DefaultPageSize.
	PageSize int
}

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

var fieldNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidField reports whether name is usable as a field name. Names are
// restricted so that SQL-backed stores can inline them safely.
func ValidField(name string) bool {
	return fieldNameRE.MatchString(name)
}

// Normalize applies defaults and validates the query.
func (q *Query) Normalize() error {
	var errs []domain.FieldError

	if q.Collection == "" {
		errs = append(errs, domain.FieldError{Field: "collection", Message: "required"})
	}
	for i, c := range q.Filter {
		if !ValidField(c.Field) {
			errs = append(errs, domain.FieldError{Field: fmt.Sprintf("filter[%d].field", i), Message: "invalid field name"})
		}
		if !c.Op.IsValid() {
			errs = append(errs, domain.FieldError{Field: fmt.Sprintf("filter[%d].op", i), Message: "unknown operator"})
		}
		if _, _, err := Normalize(c.Value); err != nil {
			errs = append(errs, domain.FieldError{Field: fmt.Sprintf("filter[%d].value", i), Message: err.Error()})
		}
	}
	if q.OrderBy.Field != "" && !ValidField(q.OrderBy.Field) {
		errs = append(errs, domain.FieldError{Field: "order_by", Message: "invalid field name"})
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}

	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return nil
}

// ValidateExpect checks field names of a conditional-update precondition and patch.
func ValidateExpect(expect Expect, fields map[string]any) error {
	var errs []domain.FieldError
	for name, v := range expect.Fields {
		if !ValidField(name) {
			errs = append(errs, domain.FieldError{Field: "expect." + name, Message: "invalid field name"})
			continue
		}
		if _, _, err := Normalize(v); err != nil {
			errs = append(errs, domain.FieldError{Field: "expect." + name, Message: err.Error()})
		}
	}
	if len(fields) == 0 {
		errs = append(errs, domain.FieldError{Field: "fields", Message: "required"})
	}
	for name := range fields {
		if !ValidField(name) {
			errs = append(errs, domain.FieldError{Field: "fields." + name, Message: "invalid field name"})
		}
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}
