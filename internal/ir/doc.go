// Package ir provides the shared value types of sweeptrace.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal. This
// keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Samples carry absolute timestamps in milliseconds; Points carry
//     window-relative coordinates in [0, window width)
//   - All JSON tags use snake_case
//   - Frames are ordered by a logical seq counter, never by wall-clock time
//   - Digests use canonical JSON so replays compare byte-for-byte
package ir
