package harness

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
	"github.com/roach88/sweeptrace/internal/store"
)

// tolerance absorbs float rounding in wrapped positions written as
// decimal literals in scenario files.
const tolerance = 1e-9

var stateOpts = []cmp.Option{
	cmpopts.EquateApprox(0, tolerance),
	cmpopts.EquateNaNs(),
	cmpopts.EquateEmpty(),
}

// AssertionError is returned when an assertion fails.
// It includes the outcome sequence to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Outcomes []ir.Outcome // Every frame outcome, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Outcomes) > 0 {
		fmt.Fprintf(&buf, "\nFrames:\n")
		for i, o := range e.Outcomes {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, o)
		}
	}

	return buf.String()
}

// AssertionContext provides what assertions need beyond the result.
type AssertionContext struct {
	Store     *store.Store
	Ctx       context.Context
	SessionID string
	Initial   engine.State
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertFrameCount:
		return assertFrameCount(result, a)
	case AssertOutcomeCount:
		return assertOutcomeCount(result, a)
	case AssertOutcomeOrder:
		return assertOutcomeOrder(result, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	case AssertReplay:
		return assertReplay(result, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertFrameCount checks the number of frames produced.
func assertFrameCount(result *Result, a Assertion) error {
	if len(result.Frames) != a.Count {
		return &AssertionError{
			Type:     AssertFrameCount,
			Expected: fmt.Sprintf("%d frames", a.Count),
			Actual:   fmt.Sprintf("%d frames", len(result.Frames)),
			Outcomes: result.Outcomes(),
		}
	}
	return nil
}

// assertOutcomeCount checks how often one outcome occurred.
func assertOutcomeCount(result *Result, a Assertion) error {
	count := 0
	for _, o := range result.Outcomes() {
		if o == a.Outcome {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Outcome),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Outcomes: result.Outcomes(),
		}
	}
	return nil
}

// assertOutcomeOrder checks the exact outcome sequence.
func assertOutcomeOrder(result *Result, a Assertion) error {
	got := result.Outcomes()
	if !slices.Equal(got, a.Outcomes) {
		return &AssertionError{
			Type:     AssertOutcomeOrder,
			Expected: fmt.Sprintf("%v", a.Outcomes),
			Actual:   fmt.Sprintf("%v", got),
			Outcomes: got,
		}
	}
	return nil
}

// assertFinalState checks the drawn state after the last batch.
func assertFinalState(result *Result, a Assertion) error {
	msgs := checkState("final", a.Expect, result.Final)
	if len(msgs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: "final state to match",
		Actual:   strings.Join(msgs, "; "),
		Outcomes: result.Outcomes(),
	}
}

// assertReplay re-runs the recorded session through a fresh sweep started
// from the same initial state and requires identical frame digests.
func assertReplay(result *Result, actx *AssertionContext) error {
	if actx == nil || actx.Store == nil {
		return fmt.Errorf("replay assertion requires a store")
	}
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	rr, err := actx.Store.Replay(ctx, actx.SessionID, engine.WithState(actx.Initial))
	if err != nil {
		return err
	}
	if rr.Frames != len(result.Frames) || !rr.OK() {
		seqs := make([]string, len(rr.Mismatches))
		for i, m := range rr.Mismatches {
			seqs[i] = fmt.Sprintf("seq=%d", m.Seq)
		}
		return &AssertionError{
			Type:     AssertReplay,
			Expected: fmt.Sprintf("%d frames replayed identically", len(result.Frames)),
			Actual:   fmt.Sprintf("%d frames replayed, mismatches: [%s]", rr.Frames, strings.Join(seqs, ", ")),
			Outcomes: result.Outcomes(),
		}
	}
	return nil
}

// checkExpect compares one frame and the state after it against an expect
// clause. Returns one message per mismatching field.
func checkExpect(label string, e *Expect, f *ir.Frame, st FinalState) []string {
	var msgs []string
	if e.Outcome != "" && f.Outcome != e.Outcome {
		msgs = append(msgs, fmt.Sprintf("%s: outcome: expected %s, got %s", label, e.Outcome, f.Outcome))
	}
	if e.Rollovers != nil && f.Rollovers != *e.Rollovers {
		msgs = append(msgs, fmt.Sprintf("%s: rollovers: expected %d, got %d", label, *e.Rollovers, f.Rollovers))
	}
	if e.Pen != nil && !approx(f.Pen, *e.Pen) {
		msgs = append(msgs, fmt.Sprintf("%s: pen: expected %g, got %g", label, *e.Pen, f.Pen))
	}
	if e.Dropped != nil && f.Dropped != *e.Dropped {
		msgs = append(msgs, fmt.Sprintf("%s: dropped: expected %d, got %d", label, *e.Dropped, f.Dropped))
	}
	return append(msgs, checkState(label, e, st)...)
}

// checkState compares the trace, highlight and mask fields of an expect
// clause against a drawn state.
func checkState(label string, e *Expect, st FinalState) []string {
	var msgs []string
	if e.Left != nil || e.EmptyLeft {
		if diff := cmp.Diff(e.Left, st.Left, stateOpts...); diff != "" {
			msgs = append(msgs, fmt.Sprintf("%s: left (-want +got):\n%s", label, diff))
		}
	}
	if e.Right != nil || e.EmptyRight {
		if diff := cmp.Diff(e.Right, st.Right, stateOpts...); diff != "" {
			msgs = append(msgs, fmt.Sprintf("%s: right (-want +got):\n%s", label, diff))
		}
	}
	switch {
	case e.NoHighlight && st.Highlight != nil:
		msgs = append(msgs, fmt.Sprintf("%s: highlight: expected none, got %v", label, *st.Highlight))
	case e.Highlight != nil && st.Highlight == nil:
		msgs = append(msgs, fmt.Sprintf("%s: highlight: expected %v, got none", label, *e.Highlight))
	case e.Highlight != nil:
		if diff := cmp.Diff(*e.Highlight, *st.Highlight, stateOpts...); diff != "" {
			msgs = append(msgs, fmt.Sprintf("%s: highlight (-want +got):\n%s", label, diff))
		}
	}
	if e.Mask != nil {
		if diff := cmp.Diff(*e.Mask, st.Mask, stateOpts...); diff != "" {
			msgs = append(msgs, fmt.Sprintf("%s: mask (-want +got):\n%s", label, diff))
		}
	}
	return msgs
}

func diffState(want, got FinalState) string {
	return cmp.Diff(want, got, stateOpts...)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}
