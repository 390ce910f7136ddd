package process

import (
	"log/slog"

	"github.com/randomizedcoder/go-present-mon/internal/csvout"
	"github.com/randomizedcoder/go-present-mon/internal/qpc"
	"github.com/randomizedcoder/go-present-mon/internal/stats"
)

// errorModuleName is recorded when the image-name query fails; statistics
// collection continues under that name.
const errorModuleName = "<error>"

// Info is everything tracked for one observed process.
type Info struct {
	Pid        uint32
	Handle     Handle // nil when sourced from a trace file
	ModuleName string

	TargetProcess bool

	// ChainMap holds one history per swap chain the process presents to.
	ChainMap map[uint64]*stats.SwapChainData

	// Output files of a target process: its own pair in multi-csv mode, the
	// shared consolidated pair otherwise. nil for non-target processes.
	Output    *csvout.PresentWriter
	LsrOutput *csvout.LsrWriter
}

// Chain returns the history for a swap-chain address, creating it on first
// use.
func (pi *Info) Chain(address uint64, clock *qpc.Clock) *stats.SwapChainData {
	chain, ok := pi.ChainMap[address]
	if !ok {
		chain = stats.NewSwapChainData(clock)
		pi.ChainMap[address] = chain
	}
	return chain
}

// OutputOpener supplies the CSV writers for a newly created target process.
// In multi-csv mode it returns fresh per-process writers; otherwise it
// returns the shared consolidated pair.
type OutputOpener interface {
	OpenProcessOutputs(moduleName string) (*csvout.PresentWriter, *csvout.LsrWriter)
}

type savedOutputs struct {
	output    *csvout.PresentWriter
	lsrOutput *csvout.LsrWriter
}

// Registry maps process ids to Info and owns the create/terminate lifecycle.
// Single-threaded: only the merger touches it.
type Registry struct {
	clock    *qpc.Clock
	filter   Filter
	platform Platform
	opener   OutputOpener
	logger   *slog.Logger

	multiCsv            bool
	terminateOnProcExit bool

	// onQuitRequest fires when the last target exits under
	// terminateOnProcExit.
	onQuitRequest func()

	processes map[uint32]*Info

	// Live target count for terminate-on-proc-exit.
	targetCount int

	// Output files saved at termination so a restarted process with the same
	// module name appends to its old files (multi-csv only).
	saved map[string]savedOutputs
}

// RegistryConfig collects the registry's construction parameters.
type RegistryConfig struct {
	Clock               *qpc.Clock
	Filter              Filter
	Platform            Platform
	Opener              OutputOpener
	Logger              *slog.Logger
	MultiCsv            bool
	TerminateOnProcExit bool
	OnQuitRequest       func()
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		clock:               cfg.Clock,
		filter:              cfg.Filter,
		platform:            cfg.Platform,
		opener:              cfg.Opener,
		logger:              cfg.Logger,
		multiCsv:            cfg.MultiCsv,
		terminateOnProcExit: cfg.TerminateOnProcExit,
		onQuitRequest:       cfg.OnQuitRequest,
		processes:           make(map[uint32]*Info),
		saved:               make(map[string]savedOutputs),
	}
}

// GetOrCreate returns the Info for pid, creating it if the pid has not been
// seen. Creation here is the realtime path: the process name is queried from
// the OS, falling back to "<error>" so one failed query never stops a stream.
func (r *Registry) GetOrCreate(pid uint32) *Info {
	if pi, ok := r.processes[pid]; ok {
		return pi
	}

	var handle Handle
	name := errorModuleName
	if h, err := r.platform.Open(pid); err == nil {
		handle = h
		if n, nameErr := h.Name(); nameErr == nil && n != "" {
			name = n
		}
	}

	return r.create(pid, handle, name)
}

// CreateFromEvent registers a process announced by a lifecycle event (the
// trace-file path: the event carries the name and there is no live handle).
// Returns the existing Info when the pid is already tracked.
func (r *Registry) CreateFromEvent(pid uint32, imageFileName string) *Info {
	if pi, ok := r.processes[pid]; ok {
		return pi
	}
	return r.create(pid, nil, imageFileName)
}

func (r *Registry) create(pid uint32, handle Handle, name string) *Info {
	pi := &Info{
		Pid:           pid,
		Handle:        handle,
		ModuleName:    name,
		TargetProcess: r.filter.IsTarget(pid, name),
		ChainMap:      make(map[uint64]*stats.SwapChainData),
	}
	r.processes[pid] = pi

	if pi.TargetProcess {
		r.assignOutputs(pi)
		r.targetCount++
		if r.logger != nil {
			r.logger.Debug("target_process_tracked", "pid", pid, "module", name)
		}
	}

	return pi
}

// assignOutputs wires the process's CSV writers: a stashed pair from an
// earlier same-name process when multi-csv, otherwise whatever the opener
// provides.
func (r *Registry) assignOutputs(pi *Info) {
	if r.opener == nil {
		return
	}
	if r.multiCsv {
		if s, ok := r.saved[pi.ModuleName]; ok {
			pi.Output, pi.LsrOutput = s.output, s.lsrOutput
			delete(r.saved, pi.ModuleName)
			return
		}
	}
	pi.Output, pi.LsrOutput = r.opener.OpenProcessOutputs(pi.ModuleName)
}

// HandleTerminated tears down the registry entry for pid. The merger calls
// this only after draining every queued event that precedes the termination
// timestamp.
func (r *Registry) HandleTerminated(pid uint32) {
	pi, ok := r.processes[pid]
	if !ok {
		return
	}

	if pi.TargetProcess {
		if r.multiCsv {
			r.saved[pi.ModuleName] = savedOutputs{output: pi.Output, lsrOutput: pi.LsrOutput}
		}

		r.targetCount--
		if r.terminateOnProcExit && r.targetCount == 0 && r.onQuitRequest != nil {
			r.onQuitRequest()
		}
	}

	if pi.Handle != nil {
		pi.Handle.Close()
		pi.Handle = nil
	}
	delete(r.processes, pid)

	if r.logger != nil {
		r.logger.Debug("process_terminated", "pid", pid, "module", pi.ModuleName)
	}
}

// Len returns the number of tracked processes.
func (r *Registry) Len() int { return len(r.processes) }

// TargetCount returns the number of live target processes.
func (r *Registry) TargetCount() int { return r.targetCount }

// Lookup returns the Info for pid without creating one.
func (r *Registry) Lookup(pid uint32) (*Info, bool) {
	pi, ok := r.processes[pid]
	return pi, ok
}

// ForEach visits every tracked process.
func (r *Registry) ForEach(fn func(pid uint32, pi *Info)) {
	for pid, pi := range r.processes {
		fn(pid, pi)
	}
}

// CloseAll closes every remaining handle and clears the registry. Called at
// shutdown.
func (r *Registry) CloseAll() {
	for _, pi := range r.processes {
		if pi.Handle != nil {
			pi.Handle.Close()
			pi.Handle = nil
		}
	}
	r.processes = make(map[uint32]*Info)
	r.targetCount = 0
}
