// Live realtime session scaffold.
//
// The raw kernel trace consumer lives outside this module: it parses raw
// events into the typed records and enqueues them via Queue(). Live supplies
// everything the engine needs from a realtime backend — the shared clock, the
// queue, and the loss counters the backend reports.
package trace

import (
	"context"
	"sync/atomic"

	"github.com/randomizedcoder/go-present-mon/internal/qpc"
)

// Live implements Source for realtime capture.
type Live struct {
	queue *Queue
	clock *qpc.Clock
	done  chan struct{}

	eventsLost  atomic.Uint64
	buffersLost atomic.Uint64
}

// NewLiveSession creates a realtime session. Fails only if the counter
// frequency cannot be established.
func NewLiveSession() (*Live, error) {
	clock, err := qpc.NewClock()
	if err != nil {
		return nil, err
	}
	return &Live{
		queue: NewQueue(),
		clock: clock,
		done:  make(chan struct{}),
	}, nil
}

// Queue implements Source. The external consumer thread enqueues through it.
func (l *Live) Queue() *Queue { return l.queue }

// Clock implements Source.
func (l *Live) Clock() *qpc.Clock { return l.clock }

// Start implements Source. Delivery is driven by the external consumer, so
// there is nothing to start here.
func (l *Live) Start(ctx context.Context) error { return nil }

// Done implements Source. A realtime session is never exhausted; the engine
// stops via its quit latch instead.
func (l *Live) Done() <-chan struct{} { return l.done }

// LostCounts implements Source.
func (l *Live) LostCounts() (eventsLost, buffersLost uint64) {
	return l.eventsLost.Load(), l.buffersLost.Load()
}

// ReportLost lets the backend record events and buffers it lost. Cumulative.
func (l *Live) ReportLost(eventsLost, buffersLost uint64) {
	l.eventsLost.Store(eventsLost)
	l.buffersLost.Store(buffersLost)
}
