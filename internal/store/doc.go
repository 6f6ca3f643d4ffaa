// Package store provides SQLite-backed recording of sweep sessions.
//
// A session is one run of a scope. For every processed frame the store keeps:
//   - Batches: the raw samples drained for the frame, as canonical JSON
//   - Frames: the draw instructions the engine produced, with their digest
//
// Replaying a session feeds the recorded batches through a fresh sweep and
// compares frame digests; any mismatch means the engine changed behavior.
//
// # Ordering
//
// All ordering uses the frame seq (logical clock), never timestamps. Every
// query returning more than one row orders by seq ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Digests are computed by internal/ir using canonical JSON and SHA-256 with
// domain separation.
package store
