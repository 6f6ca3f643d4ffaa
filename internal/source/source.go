// Package source produces timestamped samples for a scope: a synthetic
// ECG generator, a line-protocol reader for files and pipes, and serial
// port acquisition.
package source

import (
	"context"

	"github.com/roach88/sweeptrace/internal/ir"
)

// Sink receives sample batches. *engine.Scope is a Sink.
// PushBatch returns false once the sink no longer accepts data.
type Sink interface {
	PushBatch(samples []ir.Sample) bool
}

// Source feeds samples into a sink until the context is cancelled, the
// sink closes, or the input ends.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(samples []ir.Sample) bool

// PushBatch implements Sink.
func (f SinkFunc) PushBatch(samples []ir.Sample) bool {
	return f(samples)
}
