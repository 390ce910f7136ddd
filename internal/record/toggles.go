// Package record tracks when the user toggled recording on and off.
//
// Events are delivered by the trace session some time after they occur, while
// the user toggles recording against realtime cues. The merger therefore
// classifies each event by comparing its counter timestamp against this
// toggle history, not against arrival time.
package record

import (
	"sync"
	"sync/atomic"

	"github.com/randomizedcoder/go-present-mon/internal/qpc"
)

// CounterClock supplies the current counter value. *qpc.Clock implements it;
// tests substitute a manual clock.
type CounterClock interface {
	Now() qpc.Qpc
}

// ToggleLog is the shared record of toggle timestamps.
//
// Writers: the UI/control thread. Readers: the merger (Snapshot and
// DiscardPrefix) and, lock-free, anyone sampling IsRecording for a heartbeat.
// One mutex serializes history access; contention is minimal and zero when
// replaying a trace file.
type ToggleLog struct {
	clock CounterClock

	// replayMode disables history: a trace file has no realtime cues to map
	// toggles onto, so toggles only move the live flag.
	replayMode bool

	mu      sync.Mutex
	history []qpc.Qpc

	isRecording atomic.Bool
}

// NewToggleLog creates a toggle log. replayMode must be true when reading
// from a trace file.
func NewToggleLog(clock CounterClock, replayMode bool) *ToggleLog {
	return &ToggleLog{
		clock:      clock,
		replayMode: replayMode,
	}
}

// SetRecording records a toggle at the current counter time; in replay mode
// it only moves the live flag. No-op when the state already matches.
func (l *ToggleLog) SetRecording(record bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isRecording.Load() == record {
		return
	}

	if !l.replayMode {
		l.history = append(l.history, l.clock.Now())
	}
	l.isRecording.Store(record)
}

// IsRecording returns the live recording state. Safe without the mutex; used
// by UI heartbeats where a momentarily stale read is fine.
func (l *ToggleLog) IsRecording() bool {
	return l.isRecording.Load()
}

// Snapshot copies the toggle history into dst and returns (dst, starting
// state): the recording state in effect before the first copied toggle.
// Flipping on each toggle in dst reproduces the state at any event time.
func (l *ToggleLog) Snapshot(dst []qpc.Qpc) ([]qpc.Qpc, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	dst = append(dst[:0], l.history...)

	// Walking the copied toggles forward from the starting state must land
	// on the live state, so starting = live XOR parity(len).
	recording := len(dst)
	if l.isRecording.Load() {
		recording++
	}
	return dst, recording&1 == 1
}

// DiscardPrefix removes the first n toggles, after the merger has consumed
// them.
func (l *ToggleLog) DiscardPrefix(n int) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if n >= len(l.history) {
		l.history = l.history[:0]
		return
	}
	l.history = append(l.history[:0], l.history[n:]...)
}

// PendingToggles returns the current history length. Test helper.
func (l *ToggleLog) PendingToggles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.history)
}
