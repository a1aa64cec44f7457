package postgres

import (
	"fmt"
	"slices"

	sq "github.com/Masterminds/squirrel"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
)

const documentsTable = "documents"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var sqlOps = map[docstore.Op]string{
	docstore.OpEq:  "=",
	docstore.OpNe:  "<>",
	docstore.OpLt:  "<",
	docstore.OpLte: "<=",
	docstore.OpGt:  ">",
	docstore.OpGte: ">=",
}

// fieldExpr renders a typed expression for a JSONB field. Values of another
// JSON type yield NULL so they never satisfy a predicate. Field names are
// validated by docstore.ValidField before they reach here.
func fieldExpr(field string, kind docstore.Kind) string {
	raw := fmt.Sprintf("fields->'%s'", field)
	text := fmt.Sprintf("(fields->>'%s')", field)

	switch kind {
	case docstore.KindInt, docstore.KindFloat:
		return fmt.Sprintf("(CASE WHEN jsonb_typeof(%s) = 'number' THEN %s::numeric END)", raw, text)
	case docstore.KindBool:
		return fmt.Sprintf("(CASE WHEN jsonb_typeof(%s) = 'boolean' THEN %s::boolean END)", raw, text)
	case docstore.KindTime:
		// Strings that do not parse as instants yield NULL instead of
		// failing the whole statement.
		return fmt.Sprintf("(CASE WHEN jsonb_typeof(%s) = 'string' AND pg_input_is_valid(%s, 'timestamptz') THEN %s::timestamptz END)", raw, text, text)
	default:
		return fmt.Sprintf(`(CASE WHEN jsonb_typeof(%s) = 'string' THEN %s END) COLLATE "C"`, raw, text)
	}
}

func selectDocuments(collection string) sq.SelectBuilder {
	return psql.Select("id", "fields", "version").
		From(documentsTable).
		Where(sq.Eq{"collection": collection})
}

func conditionSQL(c docstore.Condition) (sq.Sqlizer, error) {
	v, kind, err := docstore.Normalize(c.Value)
	if err != nil {
		return nil, err
	}
	if kind == docstore.KindNull {
		return sq.Expr("FALSE"), nil
	}
	op, ok := sqlOps[c.Op]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", c.Op)
	}
	return sq.Expr(fieldExpr(c.Field, kind)+" "+op+" ?", v), nil
}

// orderKind picks the cast for the order field: the declared type, else the
// kind of the cursor value, else text.
func orderKind(order docstore.OrderBy, cursor *docstore.Cursor) docstore.Kind {
	if order.Type != docstore.KindNull {
		return order.Type
	}
	if cursor != nil && cursor.HasValue() {
		return docstore.KindOf(cursor.Value)
	}
	return docstore.KindString
}

// orderSQL applies the ordering, the keyset predicate and the presence filter
// for the order field.
func orderSQL(b sq.SelectBuilder, order docstore.OrderBy, cursor *docstore.Cursor) (sq.SelectBuilder, error) {
	dir, cmp := "ASC", ">"
	if order.Desc {
		dir, cmp = "DESC", "<"
	}

	if order.Field == "" {
		if cursor != nil {
			b = b.Where(sq.Expr("id "+cmp+" ?", cursor.ID))
		}
		return b.OrderBy("id " + dir), nil
	}

	kind := orderKind(order, cursor)
	expr := fieldExpr(order.Field, kind)
	b = b.Where(expr + " IS NOT NULL")

	if cursor != nil {
		if !cursor.HasValue() {
			return b, fmt.Errorf("%w: cursor lacks order value", docstore.ErrInvalidCursor)
		}
		v, err := docstore.Coerce(cursor.Value, kind)
		if err != nil {
			return b, fmt.Errorf("%w: %v", docstore.ErrInvalidCursor, err)
		}
		b = b.Where(sq.Or{
			sq.Expr(expr+" "+cmp+" ?", v),
			sq.And{
				sq.Expr(expr+" = ?", v),
				sq.Expr("id "+cmp+" ?", cursor.ID),
			},
		})
	}

	return b.OrderBy(expr+" "+dir, "id "+dir), nil
}

// expectSQL renders the precondition of a conditional update.
func expectSQL(expect docstore.Expect) (sq.And, error) {
	var preds sq.And
	if expect.Version != nil {
		preds = append(preds, sq.Eq{"version": *expect.Version})
	}
	names := make([]string, 0, len(expect.Fields))
	for name := range expect.Fields {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		v, kind, err := docstore.Normalize(expect.Fields[name])
		if err != nil {
			return nil, err
		}
		if kind == docstore.KindNull {
			preds = append(preds, sq.Expr(fmt.Sprintf("(fields->'%s' IS NULL OR fields->'%s' = 'null'::jsonb)", name, name)))
			continue
		}
		preds = append(preds, sq.Expr(fieldExpr(name, kind)+" = ?", v))
	}
	return preds, nil
}
