package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/randomizedcoder/go-present-mon/internal/process"
	"github.com/randomizedcoder/go-present-mon/internal/stats"
)

// updateConsole builds the tick's display string, publishes it for the
// rendering surface, and delivers per-chain snapshots to the host. The
// terminal is treated as a single-slot buffer: one complete string per tick.
func (e *Engine) updateConsole() {
	if e.cfg.SimpleConsole {
		return
	}

	var b strings.Builder

	// Map iteration order is random; sort pids for a stable display.
	pids := make([]uint32, 0, e.registry.Len())
	e.registry.ForEach(func(pid uint32, _ *process.Info) {
		pids = append(pids, pid)
	})
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	for _, pid := range pids {
		pi, ok := e.registry.Lookup(pid)
		if !ok {
			continue
		}
		e.writeProcessConsole(&b, pid, pi)
	}

	e.writeLsrConsole(&b)

	if e.toggles.IsRecording() {
		b.WriteString("** RECORDING **\n")
	}

	e.display.Store(b.String())
}

// writeProcessConsole appends one process's per-chain lines and delivers the
// per-chain host snapshots.
func (e *Engine) writeProcessConsole(b *strings.Builder, pid uint32, pi *process.Info) {
	if !pi.TargetProcess || pi.ModuleName == "" || len(pi.ChainMap) == 0 {
		return
	}

	// Stable chain ordering, same reason as pids.
	addresses := make([]uint64, 0, len(pi.ChainMap))
	for address := range pi.ChainMap {
		addresses = append(addresses, address)
	}
	sort.Slice(addresses, func(i, j int) bool { return addresses[i] < addresses[j] })

	headerWritten := false
	for _, address := range addresses {
		chain := pi.ChainMap[address]

		// Only show swapchain data with at least two presents in history.
		snap, ok := chain.ConsoleSnapshot(e.verbosity)
		if !ok {
			continue
		}

		if !headerWritten {
			headerWritten = true
			fmt.Fprintf(b, "%s[%d]:\n", pi.ModuleName, pid)
		}

		fmt.Fprintf(b, "    %016X (%s): SyncInterval=%d Flags=%d %.2f ms/frame (%.1f fps",
			address, snap.Runtime, snap.SyncInterval, snap.PresentFlags,
			snap.MsPerFrame, snap.FPS)

		if e.verbosity > stats.VerbositySimple {
			if snap.DisplayCount >= 2 {
				fmt.Fprintf(b, ", %.1f fps displayed", snap.DisplayedFPS)
			}
			if snap.DisplayCount >= 1 {
				fmt.Fprintf(b, ", %.2f ms latency", snap.LatencyMs)
			}
		}
		b.WriteString(")")

		if e.verbosity > stats.VerbositySimple && snap.DisplayCount > 0 {
			fmt.Fprintf(b, " %s", snap.PresentMode)
		}
		if e.verbosity >= stats.VerbosityVerbose {
			fmt.Fprintf(b, " [interval p50/p95/p99 %.2f/%.2f/%.2f ms]",
				snap.IntervalP50InMs, snap.IntervalP95InMs, snap.IntervalP99InMs)
		}
		b.WriteString("\n")

		if e.host != nil {
			e.host.NotifyConsoleSnapshot(ConsoleData{
				ProcessName:      pi.ModuleName,
				ProcessID:        pid,
				SwapChainAddress: address,
				Runtime:          snap.Runtime.String(),
				SyncInterval:     snap.SyncInterval,
				PresentFlags:     snap.PresentFlags,
				MsPerFrame:       snap.MsPerFrame,
				FPS:              snap.FPS,
				WallClockTime:    e.now(),
			})
		}
	}

	if headerWritten {
		b.WriteString("\n")
	}
}

// writeLsrConsole appends the mixed-reality block: app stats, compositor
// stats, and pose latencies.
func (e *Engine) writeLsrConsole(b *strings.Builder) {
	if !e.lsrData.HasData() {
		return
	}

	b.WriteString("\nWindows Mixed Reality:\n")

	runtimeStats := e.lsrData.ComputeRuntimeStats()
	historyTime := e.lsrData.ComputeHistoryTime()

	// App
	{
		fps := e.lsrData.ComputeSourceFps()
		historySize := e.lsrData.ComputeHistorySize()

		if e.verbosity > stats.VerbositySimple {
			appName := e.moduleName(runtimeStats.AppProcessID)
			fmt.Fprintf(b, "\tApp - %s[%d]:\n\t\t%.2f ms/frame (%.1f fps, %.2f ms CPU",
				appName, runtimeStats.AppProcessID, msPerFrame(fps), fps,
				runtimeStats.AppSourceCpuRenderTimeInMs)
		} else {
			fmt.Fprintf(b, "\tApp:\n\t\t%.2f ms/frame (%.1f fps", msPerFrame(fps), fps)
		}

		if historySize > 0 {
			fmt.Fprintf(b, ", %.1f%% of Compositor frame rate)\n",
				float64(historySize-int(runtimeStats.AppMissedFrames))/float64(historySize)*100.0)
		} else {
			b.WriteString(")\n")
		}

		fmt.Fprintf(b, "\t\tMissed Present: %d total in last %.1f seconds (%d total observed)\n",
			runtimeStats.AppMissedFrames, historyTime, e.lsrData.LifetimeAppMissedFrames)
		fmt.Fprintf(b, "\t\tPost-Present to Compositor CPU: %.2f ms\n",
			runtimeStats.AppSourceReleaseToLsrAcquireInMs)
	}

	// Compositor
	{
		fps := e.lsrData.ComputeFps()
		lsrName := e.moduleName(runtimeStats.LsrProcessID)

		fmt.Fprintf(b, "\tCompositor - %s[%d]:\n\t\t%.2f ms/frame (%.1f fps, %.1f displayed fps, %.2f ms CPU)\n",
			lsrName, runtimeStats.LsrProcessID, msPerFrame(fps), fps,
			e.lsrData.ComputeDisplayedFps(), runtimeStats.LsrCpuRenderTimeInMs)

		fmt.Fprintf(b, "\t\tMissed V-Sync: %d consecutive, %d total in last %.1f seconds (%d total observed)\n",
			runtimeStats.LsrConsecutiveMissedFrames, runtimeStats.LsrMissedFrames,
			historyTime, e.lsrData.LifetimeLsrMissedFrames)

		fmt.Fprintf(b, "\t\tReprojection: %.2f ms gpu preemption (%.2f ms max) | %.2f ms gpu execution (%.2f ms max)\n",
			runtimeStats.GpuPreemptionInMs.Average(), runtimeStats.GpuPreemptionInMs.Max(),
			runtimeStats.GpuExecutionInMs.Average(), runtimeStats.GpuExecutionInMs.Max())

		if runtimeStats.CopyExecutionInMs.Average() > 0 {
			fmt.Fprintf(b, "\t\tHybrid Copy: %.2f ms gpu preemption (%.2f ms max) | %.2f ms gpu execution (%.2f ms max)\n",
				runtimeStats.CopyPreemptionInMs.Average(), runtimeStats.CopyPreemptionInMs.Max(),
				runtimeStats.CopyExecutionInMs.Average(), runtimeStats.CopyExecutionInMs.Max())
		}

		fmt.Fprintf(b, "\t\tGpu-End to V-Sync: %.2f ms\n", runtimeStats.GpuEndToVsyncInMs)
	}

	// Latency
	{
		fmt.Fprintf(b, "\tPose Latency:\n\t\tApp Motion-to-Mid-Photon: %.2f ms\n",
			runtimeStats.AppPoseLatencyInMs)
		fmt.Fprintf(b, "\t\tCompositor Motion-to-Mid-Photon: %.2f ms (%.2f ms to V-Sync)\n",
			runtimeStats.LsrPoseLatencyInMs, runtimeStats.LsrInputLatchToVsyncInMs.Average())
		fmt.Fprintf(b, "\t\tV-Sync to Mid-Photon: %.2f ms\n", runtimeStats.VsyncToPhotonsMiddleInMs)
	}

	b.WriteString("\n")
}

// moduleName resolves a pid to its module name for display, without creating
// a registry entry.
func (e *Engine) moduleName(pid uint32) string {
	if pi, ok := e.registry.Lookup(pid); ok {
		return pi.ModuleName
	}
	return "<unknown>"
}

// msPerFrame converts fps to milliseconds per frame, 0 when fps is 0.
func msPerFrame(fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return 1000.0 / fps
}
