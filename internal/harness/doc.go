// Package harness provides conformance testing for the sweep engine.
//
// A scenario configures a sweep, feeds it batches and checks each frame,
// the drawn state and the recorded session. Every run goes through the
// real engine: frames are produced by engine.Sweep, drawn with
// engine.Apply onto a recording renderer and written to an in-memory
// store.
//
// # Scenario Format
//
//	name: single_rollover
//	description: "One crossing of the window edge freezes the cycle"
//	config:
//	  window_width_ms: 14000
//	  value_min: -10
//	  value_max: 10
//	initial:
//	  prev_pen: 13900
//	  left: [{x: 13800, y: 1}, {x: 13900, y: 2}]
//	batches:
//	  - samples: [{t: 14050, y: 5}]
//	    expect:
//	      outcome: rollover
//	      left: [{x: 50, y: 5}]
//	      right: [{x: 13800, y: 1}, {x: 13900, y: 2}]
//	assertions:
//	  - type: outcome_count
//	    outcome: rollover
//	    count: 1
//	  - type: replay
//
// # Assertion Types
//
//   - frame_count: exactly N frames were produced
//   - outcome_count: an outcome occurred exactly N times
//   - outcome_order: the frame outcomes, in order
//   - final_state: traces, highlight and mask after the last batch
//   - replay: the recorded session replays with identical frame digests
//
// # Deterministic Testing
//
// Scenarios use a fixed session id and explicit timestamps, so frame
// traces are identical across runs and compared against golden files
// under testdata/golden.
package harness
