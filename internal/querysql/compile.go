package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// Columns is the column list every compiled query selects, in scan order.
const Columns = "type, id, created_on, attributes"

// Table is the generic records table.
const Table = "records"

// SQLCompiler compiles queryir selects to parameterized SQLite over the
// records table. Attributes live in a tagged JSON column (see ir.MarshalValue),
// so predicates address them with json_extract on the variant's tag.
//
// Every query ends with "id COLLATE BINARY ASC" so result order never
// depends on SQLite's scan order. Values and JSON paths are always passed as
// parameters.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a Select to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Select) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(Columns)
	b.WriteString(" FROM ")
	b.WriteString(Table)
	b.WriteString(" WHERE type = ?")
	params := []any{q.Type}

	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" AND ")
		b.WriteString(filterSQL)
		params = append(params, filterParams...)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(c.stableOrderKey(q.OrderBy))

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}

	return b.String(), params, nil
}

// stableOrderKey renders the requested ordering followed by the id
// tiebreaker.
func (c *SQLCompiler) stableOrderKey(order []queryir.Order) string {
	parts := make([]string, 0, len(order)+1)
	for _, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		if o.Column == queryir.ColumnID {
			parts = append(parts, "id COLLATE BINARY "+dir)
			continue
		}
		parts = append(parts, string(o.Column)+" "+dir)
	}
	parts = append(parts, "id COLLATE BINARY ASC")
	return strings.Join(parts, ", ")
}

// compilePredicate compiles a queryir.Predicate to a WHERE clause fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case queryir.RefEquals:
		return "json_extract(attributes, ?) = ?", []any{attrPath(pred.Field, "ref", "id"), pred.ID}, nil
	case queryir.IsNull:
		return "COALESCE(json_type(attributes, ?), 'null') = 'null'", []any{attrPath(pred.Field)}, nil
	case queryir.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compares the payload under the value's tag, so Text("1")
// never matches Option(1).
func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	tag, param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", eq.Field, err)
	}
	return "json_extract(attributes, ?) = ?", []any{attrPath(eq.Field, tag), param}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, "("+sql+")")
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}

// attrPath builds a JSON path into the attributes column. Field names are
// validated identifiers, so no quoting is needed.
func attrPath(field string, rest ...string) string {
	return "$." + strings.Join(append([]string{field}, rest...), ".")
}

// valueToParam returns the JSON tag and SQL parameter for a scalar Value.
// json_extract yields 1/0 for JSON booleans.
func valueToParam(v ir.Value) (string, any, error) {
	switch val := v.(type) {
	case ir.Text:
		return "text", string(val), nil
	case ir.Option:
		return "option", int64(val), nil
	case ir.Int:
		return "int", int64(val), nil
	case ir.Bool:
		if val {
			return "bool", 1, nil
		}
		return "bool", 0, nil
	default:
		return "", nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
