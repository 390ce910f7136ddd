// Bounded analyzed-info queue between the consumer thread and the merger.
//
// The consumer thread enqueues typed events as it parses them; the merger
// drains everything queued once per tick. Enqueue never blocks: when a channel
// is full the event is dropped and counted, so a stalled merger can never
// back-pressure the trace session into losing buffers wholesale.
package trace

import "sync/atomic"

// Default per-stream queue capacities. Present and LSR streams burst much
// harder than process lifecycle events.
const (
	DefaultProcessQueueSize = 128
	DefaultPresentQueueSize = 4096
	DefaultLsrQueueSize     = 4096
)

// Batch holds one tick's worth of drained events. Each slice is sorted by
// QpcTime because each producer stream is delivered monotonically.
type Batch struct {
	NtProcessEvents []NtProcessEvent
	PresentEvents   []PresentEvent
	LsrEvents       []LsrEvent
}

// Reset empties the batch, keeping capacity for reuse across ticks.
func (b *Batch) Reset() {
	b.NtProcessEvents = b.NtProcessEvents[:0]
	b.PresentEvents = b.PresentEvents[:0]
	b.LsrEvents = b.LsrEvents[:0]
}

// Empty reports whether the batch holds no events.
func (b *Batch) Empty() bool {
	return len(b.NtProcessEvents) == 0 && len(b.PresentEvents) == 0 && len(b.LsrEvents) == 0
}

// Queue is the MPSC hand-off between the consumer thread(s) and the merger.
type Queue struct {
	ntChan      chan NtProcessEvent
	presentChan chan PresentEvent
	lsrChan     chan LsrEvent

	// Drop accounting (atomic, producers are concurrent).
	eventsDropped atomic.Uint64
}

// NewQueue creates a queue with the default capacities.
func NewQueue() *Queue {
	return NewQueueWithSizes(DefaultProcessQueueSize, DefaultPresentQueueSize, DefaultLsrQueueSize)
}

// NewQueueWithSizes creates a queue with explicit per-stream capacities.
func NewQueueWithSizes(ntSize, presentSize, lsrSize int) *Queue {
	if ntSize < 1 {
		ntSize = DefaultProcessQueueSize
	}
	if presentSize < 1 {
		presentSize = DefaultPresentQueueSize
	}
	if lsrSize < 1 {
		lsrSize = DefaultLsrQueueSize
	}
	return &Queue{
		ntChan:      make(chan NtProcessEvent, ntSize),
		presentChan: make(chan PresentEvent, presentSize),
		lsrChan:     make(chan LsrEvent, lsrSize),
	}
}

// EnqueueNtProcess queues a process lifecycle event.
// Returns false if the event was dropped.
func (q *Queue) EnqueueNtProcess(e NtProcessEvent) bool {
	select {
	case q.ntChan <- e:
		return true
	default:
		q.eventsDropped.Add(1)
		return false
	}
}

// EnqueuePresent queues a present event.
// Returns false if the event was dropped.
func (q *Queue) EnqueuePresent(e PresentEvent) bool {
	select {
	case q.presentChan <- e:
		return true
	default:
		q.eventsDropped.Add(1)
		return false
	}
}

// EnqueueLsr queues a reprojection event.
// Returns false if the event was dropped.
func (q *Queue) EnqueueLsr(e LsrEvent) bool {
	select {
	case q.lsrChan <- e:
		return true
	default:
		q.eventsDropped.Add(1)
		return false
	}
}

// DequeueAnalyzedInfo drains everything currently queued into batch.
// Called once per merger tick; never blocks.
func (q *Queue) DequeueAnalyzedInfo(batch *Batch) {
	for {
		select {
		case e := <-q.ntChan:
			batch.NtProcessEvents = append(batch.NtProcessEvents, e)
		default:
			goto presents
		}
	}
presents:
	for {
		select {
		case e := <-q.presentChan:
			batch.PresentEvents = append(batch.PresentEvents, e)
		default:
			goto lsrs
		}
	}
lsrs:
	for {
		select {
		case e := <-q.lsrChan:
			batch.LsrEvents = append(batch.LsrEvents, e)
		default:
			return
		}
	}
}

// EventsDropped returns the number of events dropped due to full queues.
func (q *Queue) EventsDropped() uint64 {
	return q.eventsDropped.Load()
}
