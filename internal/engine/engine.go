// Package engine implements the event-merging output engine: the single
// consumer that merges the process, present, reprojection, and
// recording-toggle timelines, maintains the per-process statistics histories,
// and emits CSV rows, console snapshots, and host callbacks.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-present-mon/internal/config"
	"github.com/randomizedcoder/go-present-mon/internal/csvout"
	"github.com/randomizedcoder/go-present-mon/internal/metrics"
	"github.com/randomizedcoder/go-present-mon/internal/process"
	"github.com/randomizedcoder/go-present-mon/internal/qpc"
	"github.com/randomizedcoder/go-present-mon/internal/record"
	"github.com/randomizedcoder/go-present-mon/internal/stats"
	"github.com/randomizedcoder/go-present-mon/internal/timeseries"
	"github.com/randomizedcoder/go-present-mon/internal/trace"
)

// tickInterval paces the realtime merger loop. Replay runs unpaced.
const tickInterval = 100 * time.Millisecond

// Engine owns every piece of merger-side state. Only the merger goroutine
// touches the registry, histories, and writers; the control surface
// (SetRecording, RequestStop, LatestSnapshot) is safe from any goroutine.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	verbosity stats.Verbosity

	source  trace.Source
	clock   *qpc.Clock
	toggles *record.ToggleLog

	registry *process.Registry
	lsrData  *stats.LateStageReprojectionData

	// Consolidated writers; in multi-csv mode these stay nil and per-process
	// writers are created on demand.
	output    *csvout.PresentWriter
	lsrOutput *csvout.LsrWriter

	// Every writer ever created, for the shutdown close pass.
	allPresentWriters []*csvout.PresentWriter
	allLsrWriters     []*csvout.LsrWriter

	host HostExport

	rateTracker *timeseries.PresentRateTracker
	lastSample  time.Time

	// Merger-tick working state, reused across ticks.
	batch               trace.Batch
	toggleSnapshot      []qpc.Qpc
	pendingTerminations []process.Termination

	// quit is a one-way latch; display holds the latest console string.
	quit    atomic.Bool
	display atomic.Value // string

	snapshot atomic.Value // Snapshot
}

// Snapshot is the engine-health view the dashboard reads each frame.
type Snapshot struct {
	Display   string
	Recording bool

	TrackedProcesses int
	TargetProcesses  int

	Rates timeseries.PresentRates

	EventsLost   uint64
	BuffersLost  uint64
	QueueDropped uint64

	PresentRows uint64
	LsrRows     uint64
}

// New creates an engine reading from source. host may be nil.
func New(cfg *config.Config, logger *slog.Logger, source trace.Source, host HostExport) (*Engine, error) {
	verbosity := parseVerbosity(cfg.Verbosity)

	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		verbosity:   verbosity,
		source:      source,
		clock:       source.Clock(),
		host:        host,
		rateTracker: timeseries.NewPresentRateTracker(),
	}
	e.display.Store("")
	e.snapshot.Store(Snapshot{})

	e.toggles = record.NewToggleLog(e.clock, cfg.ReplayMode())
	e.lsrData = stats.NewLateStageReprojectionData(e.clock)

	if !cfg.MultiCsv {
		e.output = csvout.NewPresentWriter(cfg.OutputFile, verbosity, logger)
		e.lsrOutput = csvout.NewLsrWriter(cfg.LsrOutputFile, verbosity, logger)
		e.allPresentWriters = append(e.allPresentWriters, e.output)
		e.allLsrWriters = append(e.allLsrWriters, e.lsrOutput)
	}

	platform := process.NewPlatform()
	if cfg.ReplayMode() {
		platform = process.NewNullPlatform()
	}

	e.registry = process.NewRegistry(process.RegistryConfig{
		Clock: e.clock,
		Filter: process.Filter{
			TargetPid:    cfg.TargetPid,
			TargetNames:  cfg.TargetNames,
			ExcludeNames: cfg.ExcludeNames,
		},
		Platform:            platform,
		Opener:              e,
		Logger:              logger,
		MultiCsv:            cfg.MultiCsv,
		TerminateOnProcExit: cfg.TerminateOnProcExit,
		OnQuitRequest:       e.RequestStop,
	})

	metrics.Register()

	return e, nil
}

// parseVerbosity maps the flag token; unknown tokens were rejected by config
// validation, so the default only covers programmatic construction.
func parseVerbosity(s string) stats.Verbosity {
	switch s {
	case "simple":
		return stats.VerbositySimple
	case "verbose":
		return stats.VerbosityVerbose
	default:
		return stats.VerbosityNormal
	}
}

// OpenProcessOutputs implements process.OutputOpener: per-process writers in
// multi-csv mode, the shared consolidated pair otherwise.
func (e *Engine) OpenProcessOutputs(moduleName string) (*csvout.PresentWriter, *csvout.LsrWriter) {
	if !e.cfg.MultiCsv {
		return e.output, e.lsrOutput
	}

	output := csvout.NewPresentWriter(csvout.ProcessPath(e.cfg.OutputFile, moduleName), e.verbosity, e.logger)
	lsrOutput := csvout.NewLsrWriter(csvout.ProcessPath(e.cfg.LsrOutputFile, moduleName), e.verbosity, e.logger)
	e.allPresentWriters = append(e.allPresentWriters, output)
	e.allLsrWriters = append(e.allLsrWriters, lsrOutput)
	return output, lsrOutput
}

// =============================================================================
// Control surface (any goroutine)
// =============================================================================

// SetRecording sets the recording state, stamping the toggle at the current
// counter time (in replay mode only the live flag changes).
func (e *Engine) SetRecording(on bool) {
	e.toggles.SetRecording(on)
}

// ToggleRecording flips the recording state.
func (e *Engine) ToggleRecording() {
	e.toggles.SetRecording(!e.toggles.IsRecording())
}

// IsRecording returns the live recording state (best-effort).
func (e *Engine) IsRecording() bool {
	return e.toggles.IsRecording()
}

// RequestStop latches the quit flag. The merger completes one final drain
// before exiting so already-collected events are flushed.
func (e *Engine) RequestStop() {
	e.quit.Store(true)
}

// LatestSnapshot returns the most recent engine-health snapshot.
func (e *Engine) LatestSnapshot() Snapshot {
	return e.snapshot.Load().(Snapshot)
}

// =============================================================================
// Merger loop (T2)
// =============================================================================

// Run drives the merger until stop is requested, the context ends, or (in
// replay mode) the trace is exhausted. Blocks; run it on its own goroutine
// when a UI owns the foreground.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.source.Start(ctx); err != nil {
		return err
	}

	e.logger.Info("engine_started",
		"replay", e.cfg.ReplayMode(),
		"verbosity", e.verbosity.String(),
		"multi_csv", e.cfg.MultiCsv,
	)

	for {
		// Read quit before processing so one last drain always follows the
		// latch: events already collected must reach the outputs.
		quit := e.quit.Load() || ctx.Err() != nil

		e.processEvents()
		e.updateConsole()
		e.publishTelemetry()

		if quit {
			break
		}

		if e.cfg.ReplayMode() {
			select {
			case <-e.source.Done():
				// Source exhausted; one more pass picks up any stragglers.
				e.quit.Store(true)
			default:
			}
			continue
		}

		// Realtime bookkeeping between ticks.
		e.pendingTerminations = e.registry.CheckTerminated(e.pendingTerminations)

		select {
		case <-ctx.Done():
		case <-time.After(tickInterval):
		}
	}

	e.shutdown()
	return nil
}

// publishTelemetry pushes per-tick counters to the metrics registry and the
// dashboard snapshot.
func (e *Engine) publishTelemetry() {
	metrics.RecordMergerTick()
	metrics.SetProcessCounts(e.registry.Len(), e.registry.TargetCount())
	metrics.SetRecording(e.toggles.IsRecording())
	metrics.SetQueueEventsDropped(e.source.Queue().EventsDropped())

	if now := time.Now(); now.Sub(e.lastSample) >= time.Second {
		e.lastSample = now
		e.rateTracker.RecordSample()

		rates := e.rateTracker.GetRates()
		metrics.SetPresentRate("1s", rates.Rate1s)
		metrics.SetPresentRate("30s", rates.Rate30s)
		metrics.SetPresentRate("60s", rates.Rate60s)
		metrics.SetPresentRate("300s", rates.Rate300s)
	}

	eventsLost, buffersLost := e.source.LostCounts()

	var presentRows, lsrRows uint64
	for _, w := range e.allPresentWriters {
		presentRows += w.Rows()
	}
	for _, w := range e.allLsrWriters {
		lsrRows += w.Rows()
	}

	e.snapshot.Store(Snapshot{
		Display:          e.display.Load().(string),
		Recording:        e.toggles.IsRecording(),
		TrackedProcesses: e.registry.Len(),
		TargetProcesses:  e.registry.TargetCount(),
		Rates:            e.rateTracker.GetRates(),
		EventsLost:       eventsLost,
		BuffersLost:      buffersLost,
		QueueDropped:     e.source.Queue().EventsDropped(),
		PresentRows:      presentRows,
		LsrRows:          lsrRows,
	})
}

// shutdown flushes and closes every output and releases process handles.
func (e *Engine) shutdown() {
	eventsLost, buffersLost := e.source.LostCounts()
	eventsLost += e.source.Queue().EventsDropped()

	for _, w := range e.allPresentWriters {
		w.Close(eventsLost, buffersLost)
	}
	for _, w := range e.allLsrWriters {
		w.Close(eventsLost, buffersLost)
	}

	e.registry.CloseAll()

	e.logger.Info("engine_stopped",
		"events_lost", eventsLost,
		"buffers_lost", buffersLost,
	)
}

// now returns the wall-clock stamp attached to host-export payloads.
func (e *Engine) now() time.Time {
	return time.Now()
}
