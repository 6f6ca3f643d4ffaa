package harness

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
)

// Scenario defines a conformance scenario.
// A scenario configures a sweep, optionally seeds its state, feeds it a
// sequence of batches and checks every resulting frame and the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the sweep configuration. Omitted optional fields take the
	// engine defaults.
	Config ScenarioConfig `yaml:"config"`

	// Initial seeds the sweep state before the first batch, for scenarios
	// that start mid-cycle.
	Initial *InitialState `yaml:"initial,omitempty"`

	// Batches are processed in order, one frame each.
	Batches []Batch `yaml:"batches"`

	// Assertions validate the whole run.
	// Supported types: frame_count, outcome_count, outcome_order,
	// final_state, replay
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// SessionID fixes the recorded session id for deterministic runs.
	// Defaults to "scenario-<name>".
	SessionID string `yaml:"session_id,omitempty"`
}

// ScenarioConfig mirrors engine.Config with YAML names.
type ScenarioConfig struct {
	WindowWidthMs  float64  `yaml:"window_width_ms"`
	ValueMin       float64  `yaml:"value_min"`
	ValueMax       float64  `yaml:"value_max"`
	LeadMargin     *float64 `yaml:"lead_margin,omitempty"`
	MaxAppendChunk int      `yaml:"max_append_chunk,omitempty"`
}

// Engine returns the sweep configuration, filling in defaults.
func (c ScenarioConfig) Engine() engine.Config {
	cfg := engine.Config{
		WindowWidthMs:  c.WindowWidthMs,
		ValueMin:       c.ValueMin,
		ValueMax:       c.ValueMax,
		LeadMargin:     engine.DefaultLeadMargin,
		MaxAppendChunk: engine.DefaultMaxAppendChunk,
	}
	if c.LeadMargin != nil {
		cfg.LeadMargin = *c.LeadMargin
	}
	if c.MaxAppendChunk > 0 {
		cfg.MaxAppendChunk = c.MaxAppendChunk
	}
	return cfg
}

// InitialState is the sweep state before the first batch.
type InitialState struct {
	PrevPen   float64    `yaml:"prev_pen"`
	Left      []ir.Point `yaml:"left,omitempty"`
	Right     []ir.Point `yaml:"right,omitempty"`
	Highlight *ir.Point  `yaml:"highlight,omitempty"`
}

// State converts to engine state. The mask follows the pen unless the
// state is empty.
func (s *InitialState) State(cfg engine.Config) engine.State {
	if s == nil {
		return engine.State{}
	}
	st := engine.State{
		PrevPen:   s.PrevPen,
		Cache:     s.Left,
		Right:     s.Right,
		Highlight: s.Highlight,
	}
	if len(s.Left) > 0 || len(s.Right) > 0 {
		st.Mask = engine.MaskFor(cfg, s.PrevPen)
	}
	return st
}

// Batch is one frame's worth of samples.
type Batch struct {
	Samples []ir.Sample `yaml:"samples"`

	// Expect checks the frame and the state right after it.
	// If nil, the batch is only traced.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of one batch.
// Every field is optional; only specified fields are checked.
type Expect struct {
	// NoFrame expects the batch to produce no frame at all.
	NoFrame bool `yaml:"no_frame,omitempty"`

	Outcome   ir.Outcome `yaml:"outcome,omitempty"`
	Rollovers *int       `yaml:"rollovers,omitempty"`
	Pen       *float64   `yaml:"pen,omitempty"`
	Dropped   *int       `yaml:"dropped,omitempty"`

	// Left and Right are the complete traces after the frame.
	Left  []ir.Point `yaml:"left,omitempty"`
	Right []ir.Point `yaml:"right,omitempty"`

	// EmptyLeft and EmptyRight expect a cleared trace.
	EmptyLeft  bool `yaml:"empty_left,omitempty"`
	EmptyRight bool `yaml:"empty_right,omitempty"`

	Highlight *ir.Point `yaml:"highlight,omitempty"`

	// NoHighlight expects the pen marker to be hidden.
	NoHighlight bool `yaml:"no_highlight,omitempty"`

	Mask *ir.Rect `yaml:"mask,omitempty"`
}

// Assertion validates the run as a whole.
type Assertion struct {
	// Type specifies the assertion type:
	// - "frame_count": exactly Count frames were produced
	// - "outcome_count": Outcome occurred exactly Count times
	// - "outcome_order": the frame outcomes equal Outcomes, in order
	// - "final_state": the state after the last batch matches Expect
	// - "replay": the recorded session replays with identical digests
	Type string `yaml:"type"`

	Outcome  ir.Outcome   `yaml:"outcome,omitempty"`
	Outcomes []ir.Outcome `yaml:"outcomes,omitempty"`
	Count    int          `yaml:"count,omitempty"`
	Expect   *Expect      `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertFrameCount   = "frame_count"
	AssertOutcomeCount = "outcome_count"
	AssertOutcomeOrder = "outcome_order"
	AssertFinalState   = "final_state"
	AssertReplay       = "replay"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("failed to parse YAML: empty document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario collects every problem with the scenario.
func validateScenario(s *Scenario) error {
	var result *multierror.Error

	if s.Name == "" {
		result = multierror.Append(result, fmt.Errorf("name is required"))
	}
	if s.Description == "" {
		result = multierror.Append(result, fmt.Errorf("description is required"))
	}
	if err := s.Config.Engine().Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("config: %w", err))
	}
	if len(s.Batches) == 0 {
		result = multierror.Append(result, fmt.Errorf("batches list is required and must be non-empty"))
	}

	for i, b := range s.Batches {
		if b.Expect != nil {
			if err := validateExpect(b.Expect); err != nil {
				result = multierror.Append(result, fmt.Errorf("batches[%d].expect: %w", i, err))
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func validateExpect(e *Expect) error {
	if e.Outcome != "" && !validOutcome(e.Outcome) {
		return fmt.Errorf("unknown outcome %q", e.Outcome)
	}
	if e.NoHighlight && e.Highlight != nil {
		return fmt.Errorf("highlight and no_highlight are mutually exclusive")
	}
	if e.EmptyLeft && len(e.Left) > 0 {
		return fmt.Errorf("left and empty_left are mutually exclusive")
	}
	if e.EmptyRight && len(e.Right) > 0 {
		return fmt.Errorf("right and empty_right are mutually exclusive")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFrameCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for frame_count", index)
		}
	case AssertOutcomeCount:
		if !validOutcome(a.Outcome) {
			return fmt.Errorf("assertions[%d]: valid outcome is required for outcome_count, got %q", index, a.Outcome)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	case AssertOutcomeOrder:
		if len(a.Outcomes) == 0 {
			return fmt.Errorf("assertions[%d]: outcomes list is required for outcome_order", index)
		}
		for _, o := range a.Outcomes {
			if !validOutcome(o) {
				return fmt.Errorf("assertions[%d]: unknown outcome %q", index, o)
			}
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		if err := validateExpect(a.Expect); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validOutcome(o ir.Outcome) bool {
	switch o {
	case ir.OutcomeContinue, ir.OutcomeRollover, ir.OutcomeOverflow:
		return true
	}
	return false
}
