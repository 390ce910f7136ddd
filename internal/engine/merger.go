package engine

import (
	"github.com/randomizedcoder/go-present-mon/internal/csvout"
	"github.com/randomizedcoder/go-present-mon/internal/metrics"
	"github.com/randomizedcoder/go-present-mon/internal/process"
	"github.com/randomizedcoder/go-present-mon/internal/stats"
	"github.com/randomizedcoder/go-present-mon/internal/trace"
)

// processEvents is one merger tick: drain the queue, then merge the event
// streams against the recording-toggle and process-termination timelines.
//
// Present and LSR events arrive some time after they occurred, while toggles
// and terminations are stamped on their own timelines. The sweep classifies
// every event by comparing counter timestamps, never arrival time: all events
// before a boundary are applied before the boundary is, for every interleaving
// of toggles and terminations.
func (e *Engine) processEvents() {
	e.batch.Reset()
	e.source.Queue().DequeueAnalyzedInfo(&e.batch)

	var recording bool
	e.toggleSnapshot, recording = e.toggles.Snapshot(e.toggleSnapshot)

	// Process lifecycle events first. Creations take effect immediately;
	// terminations are deferred because a present must start before its
	// process terminates but can complete after, so tear-down waits until
	// the present stream catches up to the termination time.
	for i := range e.batch.NtProcessEvents {
		nt := &e.batch.NtProcessEvents[i]
		if nt.Terminated() {
			e.pendingTerminations = append(e.pendingTerminations,
				process.Termination{Pid: nt.ProcessID, Qpc: nt.QpcTime})
			continue
		}
		e.registry.CreateFromEvent(nt.ProcessID, nt.ImageFileName)
	}

	var presentIdx, lsrIdx, toggleIdx, termIdx int

sweep:
	for {
		checkToggle := toggleIdx < len(e.toggleSnapshot)
		var nextToggleQpc uint64
		if checkToggle {
			nextToggleQpc = e.toggleSnapshot[toggleIdx]
		}

		// Drain through the pending terminations that precede the next
		// toggle. A termination is applied only once a present or LSR at or
		// past its timestamp proves the streams have caught up; if the
		// streams run dry first, the termination stays pending for a later
		// batch.
		for ; termIdx < len(e.pendingTerminations); termIdx++ {
			term := e.pendingTerminations[termIdx]
			if checkToggle && nextToggleQpc < term.Qpc {
				break
			}

			hitTermination := false
			e.addPresents(e.batch.PresentEvents, &presentIdx, recording, true, term.Qpc, &hitTermination)
			e.addLsrs(e.batch.LsrEvents, &lsrIdx, recording, true, term.Qpc, &hitTermination)
			if !hitTermination {
				break sweep
			}
			e.registry.HandleTerminated(term.Pid)
		}

		// Drain up to the next toggle. Reaching it flips the recording
		// state; running dry ends the sweep with the toggle left pending.
		hitToggle := false
		e.addPresents(e.batch.PresentEvents, &presentIdx, recording, checkToggle, nextToggleQpc, &hitToggle)
		e.addLsrs(e.batch.LsrEvents, &lsrIdx, recording, checkToggle, nextToggleQpc, &hitToggle)
		if !hitToggle {
			break
		}
		toggleIdx++
		recording = !recording
	}

	e.batch.Reset()
	e.toggles.DiscardPrefix(toggleIdx)
	if termIdx > 0 {
		e.pendingTerminations = append(e.pendingTerminations[:0], e.pendingTerminations[termIdx:]...)
	}
}

// addPresents feeds present events from *idx onward into their swap-chain
// histories, stopping at stopQpc when checkStop is set (leaving *idx at the
// stopping event and setting *hitStop).
func (e *Engine) addPresents(events []trace.PresentEvent, idx *int, recording, checkStop bool, stopQpc uint64, hitStop *bool) {
	i := *idx
	for n := len(events); i < n; i++ {
		p := &events[i]

		if checkStop && p.QpcTime >= stopQpc {
			*hitStop = true
			break
		}

		pi := e.registry.GetOrCreate(p.ProcessID)
		if !pi.TargetProcess {
			continue
		}

		chain := pi.Chain(p.SwapChainAddress, e.clock)

		// The row describes p relative to the previous history entry, so it
		// must be emitted before the insertion.
		if recording {
			e.updateCsv(pi, chain, p)
		}

		chain.AddPresent(*p)

		metrics.RecordPresent(!p.Presented())
		e.rateTracker.AddPresents(1)
	}
	*idx = i
}

// addLsrs feeds reprojection events into the LSR history. Targeting uses the
// app process id: a reprojection belongs to the process whose frame it
// reprojected, not to the compositor.
func (e *Engine) addLsrs(events []trace.LsrEvent, idx *int, recording, checkStop bool, stopQpc uint64, hitStop *bool) {
	i := *idx
	for n := len(events); i < n; i++ {
		ev := &events[i]

		if checkStop && ev.QpcTime >= stopQpc {
			*hitStop = true
			break
		}

		appPid := ev.AppProcessID
		pi := e.registry.GetOrCreate(appPid)
		if !pi.TargetProcess {
			continue
		}

		if e.verbosity > stats.VerbositySimple && appPid == 0 {
			continue // incomplete event data
		}

		if !e.lsrData.AddLsr(*ev) {
			continue // out-of-order timestamp, discarded
		}

		if recording {
			e.updateLsrCsv(pi, ev)
		}

		e.lsrData.Prune()
		metrics.RecordLsr()
	}
	*idx = i
}

// updateCsv emits one present row (file, host callback) if the emission rules
// allow it. Called before the present is added to the chain history.
func (e *Engine) updateCsv(pi *process.Info, chain *stats.SwapChainData, p *trace.PresentEvent) {
	presented := p.Presented()
	if e.cfg.ExcludeDropped && !presented {
		return
	}

	// A row needs a prior present on the chain to compute deltas against.
	fs, ok := chain.ComputeFrameStats(p, e.verbosity)
	if !ok {
		return
	}

	row := csvout.PresentRow{
		ProcessName:      pi.ModuleName,
		ProcessID:        p.ProcessID,
		SwapChainAddress: p.SwapChainAddress,
		Runtime:          p.Runtime.String(),
		SyncInterval:     p.SyncInterval,
		PresentFlags:     p.PresentFlags,
		Dropped:          !presented,
		TimeInSeconds:    fs.TimeInSeconds,
		Frame:            fs,
		SupportsTearing:  p.SupportsTearing,
		WasBatched:       p.WasBatched,
		DwmNotified:      p.DwmNotified,
		PresentMode:      p.PresentMode.String(),
		QpcTime:          p.QpcTime,
	}

	if pi.Output != nil {
		pi.Output.WriteRow(&row)
		metrics.RecordCsvRow("present")
	}

	// The host callback fires on the emission rules regardless of file
	// health: an embedding host may run with file output disabled entirely.
	if e.host != nil {
		e.host.NotifyCsvRow(CsvData{
			ProcessName:            row.ProcessName,
			ProcessID:              row.ProcessID,
			SwapChainAddress:       row.SwapChainAddress,
			Runtime:                row.Runtime,
			SyncInterval:           row.SyncInterval,
			PresentFlags:           row.PresentFlags,
			SupportsTearing:        row.SupportsTearing,
			PresentMode:            row.PresentMode,
			WasBatched:             row.WasBatched,
			DwmNotified:            row.DwmNotified,
			Dropped:                row.Dropped,
			TimeInSeconds:          fs.TimeInSeconds,
			MsBetweenPresents:      fs.MsBetweenPresents,
			MsBetweenDisplayChange: fs.MsBetweenDisplayChange,
			MsInPresentApi:         fs.MsInPresentApi,
			MsUntilRenderComplete:  fs.MsUntilRenderComplete,
			MsUntilDisplayed:       fs.MsUntilDisplayed,
			QpcTime:                p.QpcTime,
			WallClockTime:          e.now(),
		})
	}
}

// updateLsrCsv emits one reprojection row. Called after the event is added,
// so the row reads the newest two history entries.
func (e *Engine) updateLsrCsv(pi *process.Info, ev *trace.LsrEvent) {
	if pi.LsrOutput == nil {
		return
	}
	if e.cfg.ExcludeDropped && !ev.Presented() {
		return
	}

	curr := e.lsrData.Newest()
	prev := e.lsrData.Previous()
	if curr == nil || prev == nil {
		return
	}

	row := csvout.LsrRow{
		Application:  pi.ModuleName,
		AppProcessID: curr.AppProcessID,
		LsrProcessID: curr.ProcessID,
		AppFrameID:   curr.AppFrameID,

		TimeInSeconds: e.clock.ToSeconds(ev.QpcTime),
		MsBetweenLsrs: e.clock.DeltaToMilliseconds(curr.QpcTime - prev.QpcTime),

		AppMissed: !curr.NewSourceLatched,
		LsrMissed: curr.MissedVsyncCount,

		AppSourceReleaseToLsrAcquireMs: e.clock.DeltaToMilliseconds(curr.Source.ReleaseFromRenderingToAcquireForPresentationTime),
		AppCpuRenderFrameMs:            e.clock.DeltaToMilliseconds(curr.AppCpuRenderFrameTime),

		AppPredictionLatencyMs: curr.AppPredictionLatencyMs,
		AppMispredictionMs:     curr.AppMispredictionMs,
		LsrCpuRenderFrameMs:    curr.LsrCpuRenderFrameMs(),

		LsrPredictionLatencyMs:     curr.LsrPredictionLatencyMs,
		LsrMotionToPhotonLatencyMs: curr.LsrMotionToPhotonLatencyMs(),
		TimeUntilVsyncMs:           curr.TimeUntilVsyncMs,
		LsrThreadWakeupToGpuEndMs:  curr.LsrThreadWakeupToGpuEndMs(),
		TotalWakeupErrorMs:         curr.TotalWakeupErrorMs,

		ThreadWakeupToCpuRenderFrameStartMs:  curr.ThreadWakeupStartLatchToCpuRenderFrameStartInMs,
		CpuRenderFrameStartToHeadPoseStartMs: curr.CpuRenderFrameStartToHeadPoseCallbackStartInMs,
		HeadPoseStartToHeadPoseStopMs:        curr.HeadPoseCallbackStartToHeadPoseCallbackStopInMs,
		HeadPoseStopToInputLatchMs:           curr.HeadPoseCallbackStopToInputLatchInMs,
		InputLatchToGpuSubmissionMs:          curr.InputLatchToGpuSubmissionInMs,

		GpuSubmissionToGpuStartInMs: curr.GpuSubmissionToGpuStartInMs,
		GpuStartToGpuStopInMs:       curr.GpuStartToGpuStopInMs,
		GpuStopToCopyStartInMs:      curr.GpuStopToCopyStartInMs,
		CopyStartToCopyStopInMs:     curr.CopyStartToCopyStopInMs,
		CopyStopToVsyncInMs:         curr.CopyStopToVsyncInMs,

		QpcTime: curr.QpcTime,
	}

	// App-frame deltas need valid app data on the current entry, and a
	// matching app on the previous entry for the present-to-present delta.
	if curr.ValidAppFrame() {
		row.AppPresentToLsrMs = e.clock.DeltaToMilliseconds(curr.QpcTime - curr.AppPresentTime)
		if prev.ValidAppFrame() && curr.AppProcessID == prev.AppProcessID {
			row.AppPresentDeltaMs = e.clock.DeltaToMilliseconds(curr.AppPresentTime - prev.AppPresentTime)
		}
	}

	pi.LsrOutput.WriteRow(&row)
	metrics.RecordCsvRow("lsr")
}
