package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweeptrace/internal/ir"
	"github.com/roach88/sweeptrace/internal/queryir"
)

const base = "SELECT " + FrameColumns +
	" FROM frames f JOIN batches b ON b.session_id = f.session_id AND b.seq = f.seq" +
	" WHERE f.session_id = ?"

func TestCompile_AllFrames(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile("s1", queryir.Select{})
	require.NoError(t, err)

	assert.Equal(t, base+" ORDER BY f.seq ASC", sql)
	assert.Equal(t, []any{"s1"}, params)
}

func TestCompile_Outcome(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile("s1", queryir.Select{
		Filter: queryir.OutcomeIs(ir.OutcomeOverflow),
	})
	require.NoError(t, err)

	assert.Equal(t, base+" AND f.outcome = ? ORDER BY f.seq ASC", sql)
	assert.Equal(t, []any{"s1", "overflow"}, params)
}

func TestCompile_ConjunctionAndLimit(t *testing.T) {
	q := queryir.Select{
		Filter: queryir.Where(
			queryir.SeqRange(10, 20),
			queryir.Compare{Field: queryir.FieldPen, Op: queryir.OpGT, Value: 500},
		),
		Limit: 3,
	}

	sql, params, err := NewSQLCompiler().Compile("s1", q)
	require.NoError(t, err)

	assert.Equal(t,
		base+" AND ((f.seq >= ? AND f.seq <= ?) AND f.pen > ?) ORDER BY f.seq ASC LIMIT ?",
		sql)
	assert.Equal(t, []any{"s1", int64(10), int64(20), 500.0, 3}, params)
}

func TestCompile_PointerPredicates(t *testing.T) {
	q := queryir.Select{Filter: &queryir.And{Predicates: []queryir.Predicate{
		&queryir.Equals{Field: queryir.FieldDropped, Value: 0},
		&queryir.Compare{Field: queryir.FieldRollovers, Op: queryir.OpGE, Value: 2},
	}}}

	sql, params, err := NewSQLCompiler().Compile("s1", q)
	require.NoError(t, err)

	assert.Contains(t, sql, "(f.dropped = ? AND f.rollovers >= ?)")
	assert.Equal(t, []any{"s1", int64(0), int64(2)}, params)
}

func TestCompile_EmptyAnd(t *testing.T) {
	sql, _, err := NewSQLCompiler().Compile("s1", queryir.Select{Filter: queryir.And{}})
	require.NoError(t, err)
	assert.Contains(t, sql, "AND 1 = 1")
}

func TestCompile_NeverInterpolatesValues(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile("x'; DROP TABLE frames; --", queryir.Select{
		Filter: queryir.Equals{Field: queryir.FieldOutcome, Value: "rollover"},
	})
	require.NoError(t, err)

	assert.NotContains(t, sql, "DROP")
	assert.NotContains(t, sql, "rollover")
	assert.Len(t, params, 2)
}

func TestCompile_RejectsInvalidQuery(t *testing.T) {
	_, _, err := NewSQLCompiler().Compile("s1", queryir.Select{
		Filter: queryir.Equals{Field: "frame", Value: "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid query")
	assert.Contains(t, err.Error(), `unknown field "frame"`)
}
