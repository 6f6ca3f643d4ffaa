package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/sweeptrace/internal/queryir"
)

// FrameColumns is the column list every compiled frame query selects, in
// scan order.
const FrameColumns = "f.seq, f.outcome, f.rollovers, f.pen, f.dropped, f.frame, f.digest, b.samples, b.digest"

// columns maps query fields to frame table columns.
var columns = map[string]string{
	queryir.FieldSeq:       "f.seq",
	queryir.FieldOutcome:   "f.outcome",
	queryir.FieldRollovers: "f.rollovers",
	queryir.FieldPen:       "f.pen",
	queryir.FieldDropped:   "f.dropped",
}

// SQLCompiler compiles frame queries to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries are ordered by seq for deterministic results.
// CRITICAL: All values are parameterized, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a query over one session's frames to parameterized SQL.
// Returns (sql, params, error); the session id is always the first param.
//
// The query is validated first; an invalid query never reaches SQL.
func (c *SQLCompiler) Compile(sessionID string, q queryir.Select) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	where := "f.session_id = ?"
	params := []any{sessionID}
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + filterSQL
		params = append(params, filterParams...)
	}

	var b strings.Builder
	b.WriteString("SELECT " + FrameColumns)
	b.WriteString(" FROM frames f")
	b.WriteString(" JOIN batches b ON b.session_id = f.session_id AND b.seq = f.seq")
	b.WriteString(" WHERE " + where)
	b.WriteString(" ORDER BY f.seq ASC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileComparison(pred.Field, "=", pred.Value)
	case *queryir.Equals:
		return c.compileComparison(pred.Field, "=", pred.Value)
	case queryir.Compare:
		return c.compileComparison(pred.Field, string(pred.Op), pred.Value)
	case *queryir.Compare:
		return c.compileComparison(pred.Field, string(pred.Op), pred.Value)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileComparison compiles "column op ?".
// CRITICAL: Value is NEVER interpolated - always parameterized.
func (c *SQLCompiler) compileComparison(field, op string, value any) (string, []any, error) {
	column, ok := columns[field]
	if !ok {
		return "", nil, fmt.Errorf("unknown field %q", field)
	}
	param, err := toParam(field, value)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s %s ?", column, op), []any{param}, nil
}

// compileAnd compiles an And predicate to a parenthesized conjunction.
func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, p, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// toParam converts a literal to the Go type stored in the column.
func toParam(field string, value any) (any, error) {
	switch queryir.Fields[field] {
	case queryir.KindOutcome:
		if o, ok := queryir.OutcomeValue(value); ok {
			return string(o), nil
		}
	case queryir.KindInt:
		if n, ok := queryir.IntValue(value); ok {
			return n, nil
		}
	case queryir.KindNumber:
		if f, ok := queryir.NumberValue(value); ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("field %q: unsupported value %T", field, value)
}
