// Package process tracks the processes observed in the event streams: who
// they are, whether they match the user's target filter, their swap-chain
// histories, and their output files.
package process

import (
	"fmt"

	gops "github.com/shirou/gopsutil/v3/process"
)

// Handle is an open reference to a live process. Realtime capture polls it
// for liveness; trace-file capture never has one.
type Handle interface {
	// Name returns the process image basename.
	Name() (string, error)

	// Running reports whether the process is still alive.
	Running() (bool, error)

	// Close releases the handle.
	Close() error
}

// Platform opens process handles by pid. The realtime implementation uses
// the OS; trace-file replay uses NullPlatform since every process it sees is
// long gone.
type Platform interface {
	Open(pid uint32) (Handle, error)
}

// =============================================================================
// gopsutil-backed platform (realtime capture)
// =============================================================================

type gopsHandle struct {
	proc *gops.Process
}

func (h *gopsHandle) Name() (string, error) {
	return h.proc.Name()
}

func (h *gopsHandle) Running() (bool, error) {
	return h.proc.IsRunning()
}

func (h *gopsHandle) Close() error {
	return nil
}

type gopsPlatform struct{}

func (gopsPlatform) Open(pid uint32) (Handle, error) {
	proc, err := gops.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}
	return &gopsHandle{proc: proc}, nil
}

// NewPlatform returns the realtime platform implementation.
func NewPlatform() Platform {
	return gopsPlatform{}
}

// =============================================================================
// Null platform (trace-file replay)
// =============================================================================

type nullPlatform struct{}

func (nullPlatform) Open(pid uint32) (Handle, error) {
	return nil, fmt.Errorf("process %d: no live process in replay", pid)
}

// NewNullPlatform returns a platform whose Open always fails. Used when
// replaying a trace file, where process names come from lifecycle events.
func NewNullPlatform() Platform {
	return nullPlatform{}
}
