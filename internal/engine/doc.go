// Package engine implements the sweeptrace sweep engine.
//
// The engine keeps the illusion of an endlessly scrolling trace inside a
// fixed, wrapped time window using two drawable segments and a mask:
//
//   - the left trace holds the sweep in progress, drawn up to the pen
//   - the right trace holds the previous sweep, still visible ahead of the pen
//   - the mask covers the window from its left edge to slightly ahead of the
//     pen, hiding right-trace pixels the left trace has not overdrawn yet
//   - the highlight marks the pen itself
//
// ARCHITECTURE:
//
// Single-Writer Frame Loop:
// Producers push timestamped samples into an IngestBuffer from any
// goroutine. Scope.Run is the only goroutine touching sweep state. Once per
// display frame it drains everything pushed since the previous frame and
// runs Process over the batch.
//
// Frame Processing Flow:
//  1. Wrap: x = timestamp mod window width, y = value
//  2. Count rollovers against the previous pen position
//  3. Continue (0), freeze the finished cycle into the right trace (1), or
//     reset everything (more than 1)
//  4. Highlight the newest point, move the mask ahead of the pen
//  5. Emit an ir.Frame; Apply turns it into Renderer calls
//
// Process itself is a pure function over (Config, State, batch). Sweep owns
// one State and numbers frames; Scope adds buffering, pacing and teardown.
//
// The engine is designed for visual correctness under bursty input, not for
// history: nothing older than one sweep is kept.
package engine
