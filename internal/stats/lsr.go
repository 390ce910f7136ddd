package stats

import (
	"github.com/randomizedcoder/go-present-mon/internal/qpc"
	"github.com/randomizedcoder/go-present-mon/internal/trace"
)

const (
	// maxHistoryTimeInMs bounds how far back the reprojection deques reach.
	maxHistoryTimeInMs = 3000

	// maxLsrsInDeque bounds the deque length: 120 Hz worth of history.
	maxLsrsInDeque = 120 * (maxHistoryTimeInMs / 1000)
)

// LsrRuntimeStats summarize the reprojection history in a single pass.
// Zero value is the empty sentinel returned below two history entries.
type LsrRuntimeStats struct {
	GpuPreemptionInMs  RunningStat
	GpuExecutionInMs   RunningStat
	CopyPreemptionInMs RunningStat
	CopyExecutionInMs  RunningStat

	LsrInputLatchToVsyncInMs RunningStat

	AppSourceReleaseToLsrAcquireInMs float64
	AppSourceCpuRenderTimeInMs       float64
	LsrCpuRenderTimeInMs             float64
	GpuEndToVsyncInMs                float64
	VsyncToPhotonsMiddleInMs         float64
	LsrPoseLatencyInMs               float64
	AppPoseLatencyInMs               float64

	AppMissedFrames            uint64
	LsrMissedFrames            uint64
	LsrConsecutiveMissedFrames uint64

	AppProcessID uint32
	LsrProcessID uint32
}

// LateStageReprojectionData is the bounded reprojection history: every LSR,
// the successfully displayed ones, and the ones that latched a new app
// source, each pruned to the same time/length bounds.
type LateStageReprojectionData struct {
	clock *qpc.Clock

	lsrHistory          []trace.LsrEvent
	displayedLsrHistory []trace.LsrEvent
	sourceHistory       []trace.LsrEvent

	// Lifetime counters survive pruning.
	LifetimeLsrMissedFrames uint64
	LifetimeAppMissedFrames uint64
}

// NewLateStageReprojectionData creates an empty history.
func NewLateStageReprojectionData(clock *qpc.Clock) *LateStageReprojectionData {
	return &LateStageReprojectionData{clock: clock}
}

// HasData reports whether any reprojections are in history.
func (d *LateStageReprojectionData) HasData() bool {
	return len(d.lsrHistory) > 0
}

// Count returns the length of the full history deque.
func (d *LateStageReprojectionData) Count() int {
	return len(d.lsrHistory)
}

// AddLsr appends e to the history deques. An event whose QpcTime precedes the
// newest history entry is discarded (the stream contract is non-decreasing
// timestamps) and AddLsr returns false.
func (d *LateStageReprojectionData) AddLsr(e trace.LsrEvent) bool {
	if n := len(d.lsrHistory); n > 0 && d.lsrHistory[n-1].QpcTime > e.QpcTime {
		return false
	}

	if e.Presented() {
		d.displayedLsrHistory = append(d.displayedLsrHistory, e)
	} else if e.Missed() {
		d.LifetimeLsrMissedFrames += uint64(e.MissedVsyncCount)
	}

	if e.NewSourceLatched {
		d.sourceHistory = append(d.sourceHistory, e)
	} else {
		d.LifetimeAppMissedFrames++
	}

	d.lsrHistory = append(d.lsrHistory, e)
	return true
}

// Prune drops entries until every deque is within the time window and length
// bound. Called after each AddLsr.
func (d *LateStageReprojectionData) Prune() {
	d.lsrHistory = d.pruneDeque(d.lsrHistory, maxHistoryTimeInMs, maxLsrsInDeque)
	d.displayedLsrHistory = d.pruneDeque(d.displayedLsrHistory, maxHistoryTimeInMs, maxLsrsInDeque)
	d.sourceHistory = d.pruneDeque(d.sourceHistory, maxHistoryTimeInMs, maxLsrsInDeque)
}

func (d *LateStageReprojectionData) pruneDeque(hist []trace.LsrEvent, msWindow float64, maxLen int) []trace.LsrEvent {
	for len(hist) > 0 &&
		(len(hist) > maxLen ||
			d.clock.DeltaToMilliseconds(hist[len(hist)-1].QpcTime-hist[0].QpcTime) > msWindow) {
		hist = hist[1:]
	}
	return hist
}

// ComputeHistoryTime returns the seconds spanned by the full history deque,
// or 0 below two entries.
func (d *LateStageReprojectionData) ComputeHistoryTime() float64 {
	return d.computeHistoryTime(d.lsrHistory)
}

func (d *LateStageReprojectionData) computeHistoryTime(hist []trace.LsrEvent) float64 {
	if len(hist) < 2 {
		return 0
	}
	return d.clock.DeltaToSeconds(hist[len(hist)-1].QpcTime - hist[0].QpcTime)
}

// ComputeHistorySize returns the history length, or 0 below two entries.
func (d *LateStageReprojectionData) ComputeHistorySize() int {
	if len(d.lsrHistory) < 2 {
		return 0
	}
	return len(d.lsrHistory)
}

func (d *LateStageReprojectionData) computeFps(hist []trace.LsrEvent) float64 {
	if len(hist) < 2 {
		return 0
	}
	seconds := d.clock.DeltaToSeconds(hist[len(hist)-1].QpcTime - hist[0].QpcTime)
	if seconds <= 0 {
		return 0
	}
	return float64(len(hist)-1) / seconds
}

// ComputeFps returns the reprojection rate over the full history.
func (d *LateStageReprojectionData) ComputeFps() float64 {
	return d.computeFps(d.lsrHistory)
}

// ComputeSourceFps returns the rate of new app frames reaching the compositor.
func (d *LateStageReprojectionData) ComputeSourceFps() float64 {
	return d.computeFps(d.sourceHistory)
}

// ComputeDisplayedFps returns the rate of reprojections that hit vsync.
func (d *LateStageReprojectionData) ComputeDisplayedFps() float64 {
	return d.computeFps(d.displayedLsrHistory)
}

// ComputeRuntimeStats summarizes the full history in one pass. Returns the
// empty sentinel below two entries. Averaged scalars are divided by the deque
// length.
func (d *LateStageReprojectionData) ComputeRuntimeStats() LsrRuntimeStats {
	var rs LsrRuntimeStats
	if len(d.lsrHistory) < 2 {
		return rs
	}

	var totalAppSourceReleaseToLsrAcquireTime uint64
	var totalAppSourceCpuRenderTime uint64

	count := len(d.lsrHistory)
	for i := 0; i < count; i++ {
		cur := &d.lsrHistory[i]

		rs.GpuPreemptionInMs.Add(cur.GpuSubmissionToGpuStartInMs)
		rs.GpuExecutionInMs.Add(cur.GpuStartToGpuStopInMs)
		rs.CopyPreemptionInMs.Add(cur.GpuStopToCopyStartInMs)
		rs.CopyExecutionInMs.Add(cur.CopyStartToCopyStopInMs)
		rs.LsrInputLatchToVsyncInMs.Add(cur.InputLatchToVsyncMs())

		totalAppSourceReleaseToLsrAcquireTime += cur.Source.ReleaseFromRenderingToAcquireForPresentationTime
		totalAppSourceCpuRenderTime += cur.AppCpuRenderFrameTime
		rs.LsrCpuRenderTimeInMs += cur.LsrCpuRenderFrameMs()

		rs.GpuEndToVsyncInMs += cur.CopyStopToVsyncInMs
		rs.VsyncToPhotonsMiddleInMs += cur.TimeUntilPhotonsMiddleMs - cur.TimeUntilVsyncMs
		rs.LsrPoseLatencyInMs += cur.LsrPredictionLatencyMs
		rs.AppPoseLatencyInMs += cur.AppPredictionLatencyMs

		if !cur.NewSourceLatched {
			rs.AppMissedFrames++
		}

		if cur.Missed() {
			rs.LsrMissedFrames += uint64(cur.MissedVsyncCount)
			if cur.MissedVsyncCount > 1 {
				// A count above 1 means multiple vsyncs were missed within a
				// single reprojection period.
				rs.LsrConsecutiveMissedFrames += uint64(cur.MissedVsyncCount - 1)
			}
			if i > 0 && d.lsrHistory[i-1].Missed() {
				rs.LsrConsecutiveMissedFrames++
			}
		}
	}

	rs.AppProcessID = d.lsrHistory[count-1].AppProcessID
	rs.LsrProcessID = d.lsrHistory[count-1].ProcessID

	n := float64(count)
	rs.AppSourceReleaseToLsrAcquireInMs = d.clock.DeltaToMilliseconds(totalAppSourceReleaseToLsrAcquireTime) / n
	rs.AppSourceCpuRenderTimeInMs = d.clock.DeltaToMilliseconds(totalAppSourceCpuRenderTime) / n
	rs.LsrCpuRenderTimeInMs /= n
	rs.GpuEndToVsyncInMs /= n
	rs.VsyncToPhotonsMiddleInMs /= n
	rs.LsrPoseLatencyInMs /= n
	rs.AppPoseLatencyInMs /= n

	return rs
}

// Newest returns the most recent history entry, or nil when empty.
func (d *LateStageReprojectionData) Newest() *trace.LsrEvent {
	if len(d.lsrHistory) == 0 {
		return nil
	}
	return &d.lsrHistory[len(d.lsrHistory)-1]
}

// Previous returns the entry before the newest, or nil below two entries.
func (d *LateStageReprojectionData) Previous() *trace.LsrEvent {
	if len(d.lsrHistory) < 2 {
		return nil
	}
	return &d.lsrHistory[len(d.lsrHistory)-2]
}
