package queryir

import "github.com/roach88/sweeptrace/internal/ir"

// Frame fields that predicates may reference.
const (
	FieldSeq       = "seq"
	FieldOutcome   = "outcome"
	FieldRollovers = "rollovers"
	FieldPen       = "pen"
	FieldDropped   = "dropped"
)

// Kind is the value type of a queryable field.
type Kind int

const (
	KindInt Kind = iota
	KindNumber
	KindOutcome
)

// Fields maps every queryable field to its kind.
var Fields = map[string]Kind{
	FieldSeq:       KindInt,
	FieldOutcome:   KindOutcome,
	FieldRollovers: KindInt,
	FieldPen:       KindNumber,
	FieldDropped:   KindInt,
}

// Op is a comparison operator.
type Op string

const (
	OpLT Op = "<"
	OpLE Op = "<="
	OpGT Op = ">"
	OpGE Op = ">="
)

// Predicate represents a filter condition on one frame.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select describes the frames to read from one session.
//
// Semantics:
//
//	frames WHERE <filter> ORDER BY seq LIMIT <limit>
//
// A nil Filter matches every frame. Limit 0 means no limit.
type Select struct {
	Filter Predicate
	Limit  int
}

// Equals represents a field-equals-literal predicate.
//
// Example:
//
//	Equals{Field: FieldOutcome, Value: ir.OutcomeOverflow}
type Equals struct {
	Field string
	Value any // int, int64, float64, string or ir.Outcome
}

func (Equals) predicateNode() {}

// Compare represents an ordering predicate on a numeric field.
//
// Example:
//
//	Compare{Field: FieldSeq, Op: OpGE, Value: int64(100)}
type Compare struct {
	Field string
	Op    Op
	Value any
}

func (Compare) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// Empty Predicates means "always true".
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where joins the non-nil predicates into a filter. It returns nil when
// none are given and the predicate itself when only one is.
func Where(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}

// OutcomeIs matches frames with the given outcome.
func OutcomeIs(o ir.Outcome) Predicate {
	return Equals{Field: FieldOutcome, Value: o}
}

// SeqRange matches frames with from <= seq <= to. A zero bound is open.
func SeqRange(from, to int64) Predicate {
	var preds []Predicate
	if from > 0 {
		preds = append(preds, Compare{Field: FieldSeq, Op: OpGE, Value: from})
	}
	if to > 0 {
		preds = append(preds, Compare{Field: FieldSeq, Op: OpLE, Value: to})
	}
	return Where(preds...)
}
