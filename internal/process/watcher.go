package process

import "github.com/randomizedcoder/go-present-mon/internal/qpc"

// Termination is a pending process-exit notification: the registry entry for
// Pid may only be torn down once every queued event before Qpc is processed.
type Termination struct {
	Pid uint32
	Qpc qpc.Qpc
}

// CheckTerminated polls every tracked realtime process and appends a
// termination for each one that has exited.
//
// The exit is stamped with the current counter value, which is no earlier
// than the true exit time, so events the process emitted before it exited
// are processed before the entry is torn down.
func (r *Registry) CheckTerminated(pending []Termination) []Termination {
	for pid, pi := range r.processes {
		if pi.Handle == nil {
			continue
		}
		running, err := pi.Handle.Running()
		if err != nil || !running {
			pending = append(pending, Termination{Pid: pid, Qpc: r.clock.Now()})
			pi.Handle.Close()
			pi.Handle = nil
		}
	}
	return pending
}
