package queryir

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/sweeptrace/internal/ir"
)

// Validate checks a query against the queryable fields and their kinds.
// Every problem is collected into a *multierror.Error.
//
// Validate is a pure function with no side effects.
func Validate(q Select) error {
	v := &validator{}
	if q.Limit < 0 {
		v.add("limit must not be negative, got %d", q.Limit)
	}
	if q.Filter != nil {
		v.validatePredicate(q.Filter)
	}
	return v.result.ErrorOrNil()
}

// validator accumulates problems during traversal.
type validator struct {
	result *multierror.Error
}

func (v *validator) add(format string, args ...any) {
	v.result = multierror.Append(v.result, fmt.Errorf(format, args...))
}

// validatePredicate recursively validates a predicate node.
func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.add("nil predicate")
	case Equals:
		v.validateValue(pred.Field, pred.Value)
	case *Equals:
		v.validateValue(pred.Field, pred.Value)
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.add("unknown predicate type: %T", p)
	}
}

func (v *validator) validateCompare(c Compare) {
	switch c.Op {
	case OpLT, OpLE, OpGT, OpGE:
	default:
		v.add("field %q: unknown operator %q", c.Field, c.Op)
	}
	if Fields[c.Field] == KindOutcome {
		v.add("field %q: outcomes can only be compared for equality", c.Field)
		return
	}
	v.validateValue(c.Field, c.Value)
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

// validateValue checks that value fits the kind of field.
func (v *validator) validateValue(field string, value any) {
	kind, ok := Fields[field]
	if !ok {
		v.add("unknown field %q", field)
		return
	}

	switch kind {
	case KindOutcome:
		o, ok := OutcomeValue(value)
		if !ok {
			v.add("field %q: expected an outcome, got %T", field, value)
			return
		}
		switch o {
		case ir.OutcomeContinue, ir.OutcomeRollover, ir.OutcomeOverflow:
		default:
			v.add("field %q: unknown outcome %q", field, o)
		}
	case KindInt:
		if _, ok := IntValue(value); !ok {
			v.add("field %q: expected an integer, got %T", field, value)
		}
	case KindNumber:
		f, ok := NumberValue(value)
		if !ok {
			v.add("field %q: expected a number, got %T", field, value)
			return
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			v.add("field %q: value must be finite, got %v", field, f)
		}
	}
}

// IntValue converts an integer literal.
func IntValue(value any) (int64, bool) {
	switch val := value.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	}
	return 0, false
}

// NumberValue converts a numeric literal.
func NumberValue(value any) (float64, bool) {
	switch val := value.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	}
	return 0, false
}

// OutcomeValue converts an outcome literal.
func OutcomeValue(value any) (ir.Outcome, bool) {
	switch val := value.(type) {
	case ir.Outcome:
		return val, true
	case string:
		return ir.Outcome(val), true
	}
	return "", false
}
