package trace

import (
	"context"

	"github.com/randomizedcoder/go-present-mon/internal/qpc"
)

// Source is the tracing backend as seen by the output engine.
//
// A realtime session wraps a kernel trace consumer; a replay source reads a
// previously recorded trace file. Either way the engine only ever drains the
// queue and, at shutdown, reads the loss counters for the CSV trailer.
type Source interface {
	// Queue returns the analyzed-info queue the source enqueues into.
	Queue() *Queue

	// Clock returns the counter clock shared by every event this source
	// delivers.
	Clock() *qpc.Clock

	// Start begins delivering events. Non-blocking; delivery stops when the
	// context is cancelled or the source is exhausted.
	Start(ctx context.Context) error

	// Done is closed when the source has delivered every event it will ever
	// deliver. A realtime session never closes it before cancellation.
	Done() <-chan struct{}

	// LostCounts reports events and buffers lost by the backend itself
	// (queue overflow inside the trace session, not inside this module).
	LostCounts() (eventsLost, buffersLost uint64)
}
