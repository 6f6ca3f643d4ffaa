package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/store"
	"github.com/roach88/sweeptrace/internal/testutil"
)

// Harness is the scenario execution engine.
// It drives a real Sweep, draws every frame onto a recording renderer and
// records the session into an in-memory store.
type Harness struct {
	store    *store.Store
	sweep    *engine.Sweep
	renderer *testutil.RecordingRenderer
	recorder *store.Recorder
	cfg      engine.Config
	initial  engine.State
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Create the sweep, seeded with the scenario's initial state
//  2. Mirror the initial state onto the renderer
//  3. Process each batch, apply its frame, record it, check its expect
//  4. Evaluate the scenario assertions
//
// An error is returned only when the scenario cannot be executed; failed
// expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cfg := scenario.Config.Engine()
	initial := scenario.Initial.State(cfg)

	sweep, err := engine.NewSweep(cfg, engine.WithState(initial))
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep: %w", err)
	}

	sessionID := scenario.SessionID
	if sessionID == "" {
		sessionID = "scenario-" + scenario.Name
	}
	rec, err := store.NewRecorder(ctx, st, store.Session{
		ID:     sessionID,
		Name:   scenario.Name,
		Source: "scenario",
		Config: cfg,
	}, engine.NewFixedGenerator(sessionID))
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:    st,
		sweep:    sweep,
		renderer: testutil.NewRecordingRenderer(),
		recorder: rec,
		cfg:      cfg,
		initial:  initial,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	if err := h.seedRenderer(); err != nil {
		return nil, fmt.Errorf("failed to seed renderer: %w", err)
	}

	result := NewResult()
	result.SessionID = sessionID
	if err := h.executeBatches(ctx, scenario.Batches, result); err != nil {
		return nil, fmt.Errorf("failed to execute batches: %w", err)
	}
	if err := rec.Finish(ctx); err != nil {
		return nil, err
	}

	result.Final = h.finalState()
	if err := h.checkConsistency(); err != nil {
		result.AddError(err.Error())
	}

	actx := &AssertionContext{
		Store:     st,
		Ctx:       ctx,
		SessionID: sessionID,
		Initial:   initial,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// seedRenderer draws the initial state so the renderer and the sweep agree
// before the first frame.
func (h *Harness) seedRenderer() error {
	if len(h.initial.Right) > 0 {
		if err := h.renderer.ReplaceRight(h.initial.Right); err != nil {
			return err
		}
	}
	if len(h.initial.Cache) > 0 {
		if err := h.renderer.ReplaceLeft(h.initial.Cache); err != nil {
			return err
		}
	}
	if h.initial.Highlight != nil {
		if err := h.renderer.SetHighlight(h.initial.Highlight); err != nil {
			return err
		}
	}
	return h.renderer.SetMask(h.initial.Mask)
}

// executeBatches processes every batch and validates expect clauses.
func (h *Harness) executeBatches(ctx context.Context, batches []Batch, result *Result) error {
	for i, b := range batches {
		label := fmt.Sprintf("batches[%d]", i)

		frame, ok := h.sweep.Process(b.Samples)
		if !ok {
			if b.Expect != nil && !b.Expect.NoFrame {
				result.AddError(fmt.Sprintf("%s: expected a frame, batch produced none", label))
			}
			h.logger.Info("batch produced no frame", "batch", i, "samples", len(b.Samples))
			continue
		}

		if err := engine.Apply(h.renderer, frame, h.cfg.MaxAppendChunk); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		if err := h.recorder.RecordFrame(ctx, b.Samples, frame); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		result.Frames = append(result.Frames, frame)

		if b.Expect != nil {
			if b.Expect.NoFrame {
				result.AddError(fmt.Sprintf("%s: expected no frame, got %s", label, frame.Outcome))
				continue
			}
			for _, msg := range checkExpect(label, b.Expect, &frame, h.finalState()) {
				result.AddError(msg)
			}
		}

		h.logger.Info("batch processed",
			"batch", i,
			"seq", frame.Seq,
			"outcome", frame.Outcome,
			"rollovers", frame.Rollovers,
		)
	}
	return nil
}

// finalState reads the drawn state back from the renderer.
func (h *Harness) finalState() FinalState {
	return FinalState{
		Left:      h.renderer.Left(),
		Right:     h.renderer.Right(),
		Highlight: h.renderer.Highlight(),
		Mask:      h.renderer.Mask(),
		PrevPen:   h.sweep.PrevPen(),
	}
}

// checkConsistency verifies that what was drawn is what the sweep holds.
// The left trace must equal the cycle cache.
func (h *Harness) checkConsistency() error {
	drawn := h.finalState()
	held := FinalState{
		Left:    h.sweep.Left(),
		Right:   h.sweep.Right(),
		Mask:    h.sweep.Mask(),
		PrevPen: h.sweep.PrevPen(),
	}
	if p, ok := h.sweep.Highlight(); ok {
		held.Highlight = &p
	}
	if diff := diffState(held, drawn); diff != "" {
		return fmt.Errorf("renderer diverged from sweep state (-sweep +renderer):\n%s", diff)
	}
	return nil
}
