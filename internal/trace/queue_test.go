package trace

import "testing"

// =============================================================================
// Enqueue / Drain
// =============================================================================

func TestQueueDrainsAllStreams(t *testing.T) {
	q := NewQueue()

	q.EnqueueNtProcess(NtProcessEvent{ProcessID: 1, QpcTime: 10, ImageFileName: "a.exe"})
	q.EnqueuePresent(PresentEvent{ProcessID: 1, QpcTime: 20})
	q.EnqueuePresent(PresentEvent{ProcessID: 1, QpcTime: 30})
	q.EnqueueLsr(LsrEvent{ProcessID: 2, QpcTime: 25})

	var batch Batch
	q.DequeueAnalyzedInfo(&batch)

	if len(batch.NtProcessEvents) != 1 {
		t.Errorf("nt events = %d, want 1", len(batch.NtProcessEvents))
	}
	if len(batch.PresentEvents) != 2 {
		t.Errorf("present events = %d, want 2", len(batch.PresentEvents))
	}
	if len(batch.LsrEvents) != 1 {
		t.Errorf("lsr events = %d, want 1", len(batch.LsrEvents))
	}

	// Delivery order within a stream is preserved.
	if batch.PresentEvents[0].QpcTime != 20 || batch.PresentEvents[1].QpcTime != 30 {
		t.Errorf("present order = %d,%d, want 20,30",
			batch.PresentEvents[0].QpcTime, batch.PresentEvents[1].QpcTime)
	}

	// Second drain finds nothing.
	batch.Reset()
	q.DequeueAnalyzedInfo(&batch)
	if !batch.Empty() {
		t.Error("second drain returned events")
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueueWithSizes(1, 2, 1)

	if !q.EnqueuePresent(PresentEvent{QpcTime: 1}) {
		t.Fatal("first enqueue dropped")
	}
	if !q.EnqueuePresent(PresentEvent{QpcTime: 2}) {
		t.Fatal("second enqueue dropped")
	}
	if q.EnqueuePresent(PresentEvent{QpcTime: 3}) {
		t.Fatal("enqueue into a full queue succeeded")
	}

	if got := q.EventsDropped(); got != 1 {
		t.Errorf("EventsDropped() = %d, want 1", got)
	}

	// The queued events are intact.
	var batch Batch
	q.DequeueAnalyzedInfo(&batch)
	if len(batch.PresentEvents) != 2 {
		t.Errorf("present events = %d, want 2", len(batch.PresentEvents))
	}
}

func TestBatchReset(t *testing.T) {
	batch := Batch{
		PresentEvents: []PresentEvent{{QpcTime: 1}},
		LsrEvents:     []LsrEvent{{QpcTime: 2}},
	}
	batch.Reset()
	if !batch.Empty() {
		t.Error("batch not empty after Reset")
	}
	if cap(batch.PresentEvents) == 0 {
		t.Error("Reset discarded capacity")
	}
}
