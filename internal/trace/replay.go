// Trace-file replay source.
//
// A recorded trace is a JSON-lines file: a header record carrying the counter
// frequency, followed by one record per event. Replay preserves each stream's
// delivery order, which is all the engine requires (per-stream monotonic
// QpcTime).
package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/randomizedcoder/go-present-mon/internal/qpc"
)

// replayRecord is one line of a recorded trace. Exactly one field is set.
type replayRecord struct {
	Frequency *uint64         `json:"frequency,omitempty"`
	Present   *PresentEvent   `json:"present,omitempty"`
	Lsr       *LsrEvent       `json:"lsr,omitempty"`
	Process   *NtProcessEvent `json:"process,omitempty"`
}

// Replay reads a recorded trace file and delivers its events through the
// standard queue, implementing Source.
type Replay struct {
	path  string
	queue *Queue
	clock *qpc.Clock
	done  chan struct{}

	// Records that could not be decoded; the first one ends the replay.
	// Queueing never loses events here: replay uses a blocking send instead
	// of dropping. buffersLost stays zero; kept for the Source contract.
	eventsLost  atomic.Uint64
	buffersLost atomic.Uint64
}

// OpenReplay opens a recorded trace and reads its header. The file handle is
// reopened by Start; OpenReplay only validates the header and captures the
// recorded counter frequency.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace replay: %w", err)
	}
	defer f.Close()

	var header replayRecord
	dec := json.NewDecoder(bufio.NewReader(f))
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("trace replay: reading header: %w", err)
	}
	if header.Frequency == nil {
		return nil, fmt.Errorf("trace replay: %s: first record must carry the counter frequency", path)
	}

	clock, err := qpc.NewClockWithFrequency(*header.Frequency)
	if err != nil {
		return nil, fmt.Errorf("trace replay: %s: %w", path, err)
	}

	return &Replay{
		path:  path,
		queue: NewQueue(),
		clock: clock,
		done:  make(chan struct{}),
	}, nil
}

// Queue implements Source.
func (r *Replay) Queue() *Queue { return r.queue }

// Clock implements Source.
func (r *Replay) Clock() *qpc.Clock { return r.clock }

// Done implements Source.
func (r *Replay) Done() <-chan struct{} { return r.done }

// LostCounts implements Source.
func (r *Replay) LostCounts() (eventsLost, buffersLost uint64) {
	return r.eventsLost.Load(), r.buffersLost.Load()
}

// Start reads the trace file in a goroutine, enqueueing every event. The done
// channel is closed when the file is exhausted or the context is cancelled.
func (r *Replay) Start(ctx context.Context) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("trace replay: %w", err)
	}

	go func() {
		defer close(r.done)
		defer f.Close()

		dec := json.NewDecoder(bufio.NewReader(f))

		// Skip the header (validated by OpenReplay).
		var header replayRecord
		if err := dec.Decode(&header); err != nil {
			return
		}

		for {
			if ctx.Err() != nil {
				return
			}

			var rec replayRecord
			if err := dec.Decode(&rec); err != nil {
				if err != io.EOF {
					r.eventsLost.Add(1)
				}
				return
			}

			switch {
			case rec.Present != nil:
				r.enqueuePresent(ctx, *rec.Present)
			case rec.Lsr != nil:
				r.enqueueLsr(ctx, *rec.Lsr)
			case rec.Process != nil:
				r.enqueueNtProcess(ctx, *rec.Process)
			}
		}
	}()

	return nil
}

// The enqueue helpers block (rather than drop) when the queue is full: a
// replay has no realtime deadline, so waiting for the merger is always
// correct.

func (r *Replay) enqueuePresent(ctx context.Context, e PresentEvent) {
	select {
	case r.queue.presentChan <- e:
	case <-ctx.Done():
	}
}

func (r *Replay) enqueueLsr(ctx context.Context, e LsrEvent) {
	select {
	case r.queue.lsrChan <- e:
	case <-ctx.Done():
	}
}

func (r *Replay) enqueueNtProcess(ctx context.Context, e NtProcessEvent) {
	select {
	case r.queue.ntChan <- e:
	case <-ctx.Done():
	}
}
