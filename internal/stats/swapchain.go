package stats

import (
	"github.com/randomizedcoder/go-present-mon/internal/qpc"
	"github.com/randomizedcoder/go-present-mon/internal/trace"
)

// PresentHistoryMaxCount is the swap-chain ring capacity.
const PresentHistoryMaxCount = 64

// Verbosity selects the column set and computed statistics.
type Verbosity int

const (
	VerbositySimple Verbosity = iota
	VerbosityNormal
	VerbosityVerbose
)

// String returns the flag token for the verbosity.
func (v Verbosity) String() string {
	switch v {
	case VerbositySimple:
		return "simple"
	case VerbosityVerbose:
		return "verbose"
	default:
		return "normal"
	}
}

// FrameStats are the per-row statistics for one present, computed against the
// swap chain's history before the present is inserted. Undefined values are 0.
type FrameStats struct {
	TimeInSeconds          float64
	MsBetweenPresents      float64
	MsInPresentApi         float64
	MsUntilRenderComplete  float64
	MsUntilDisplayed       float64
	MsBetweenDisplayChange float64
}

// ChainSnapshot is the per-chain console summary.
type ChainSnapshot struct {
	Runtime      trace.Runtime
	SyncInterval int32
	PresentFlags uint32

	MsPerFrame float64
	FPS        float64

	// Filled only above simple verbosity (the interval percentiles are
	// printed only at verbose). DisplayCount gates which are meaningful.
	DisplayCount    int
	DisplayedFPS    float64
	LatencyMs       float64
	PresentMode     trace.PresentMode
	IntervalP50InMs float64
	IntervalP95InMs float64
	IntervalP99InMs float64
}

// SwapChainData is the bounded history of recent presents on one swap chain.
//
// Entries are in non-decreasing QpcTime order; once the ring is full the
// oldest entry is overwritten and the count stays at capacity.
type SwapChainData struct {
	clock *qpc.Clock

	presentHistory      [PresentHistoryMaxCount]trace.PresentEvent
	nextPresentIndex    uint64
	presentHistoryCount uint32

	// Absolute write index of the most recent Presented entry.
	lastDisplayedPresentIndex uint64
	hasDisplayed              bool

	// Whole-run present-interval distribution for verbose console output.
	intervalDigest *LatencyDigest
}

// NewSwapChainData creates an empty history for one swap chain.
func NewSwapChainData(clock *qpc.Clock) *SwapChainData {
	return &SwapChainData{
		clock:          clock,
		intervalDigest: NewLatencyDigest(),
	}
}

// Count returns the number of valid entries.
func (c *SwapChainData) Count() int { return int(c.presentHistoryCount) }

// at returns the entry at absolute index i.
func (c *SwapChainData) at(i uint64) *trace.PresentEvent {
	return &c.presentHistory[i%PresentHistoryMaxCount]
}

// newest returns the most recently inserted entry, or nil when empty.
func (c *SwapChainData) newest() *trace.PresentEvent {
	if c.presentHistoryCount == 0 {
		return nil
	}
	return c.at(c.nextPresentIndex - 1)
}

// oldest returns the oldest valid entry, or nil when empty.
func (c *SwapChainData) oldest() *trace.PresentEvent {
	if c.presentHistoryCount == 0 {
		return nil
	}
	return c.at(c.nextPresentIndex - uint64(c.presentHistoryCount))
}

// AddPresent appends p to the ring, overwriting the oldest entry once full.
func (c *SwapChainData) AddPresent(p trace.PresentEvent) {
	if prev := c.newest(); prev != nil && p.QpcTime >= prev.QpcTime {
		c.intervalDigest.Add(c.clock.DeltaToMilliseconds(p.QpcTime - prev.QpcTime))
	}

	c.presentHistory[c.nextPresentIndex%PresentHistoryMaxCount] = p
	if p.Presented() {
		c.lastDisplayedPresentIndex = c.nextPresentIndex
		c.hasDisplayed = true
	}
	c.nextPresentIndex++
	if c.presentHistoryCount < PresentHistoryMaxCount {
		c.presentHistoryCount++
	}
}

// ComputeFrameStats derives the CSV row statistics for p against the current
// history. Must be called before AddPresent(p): the row describes p relative
// to the previous entry. Returns false when the chain has no prior entry.
func (c *SwapChainData) ComputeFrameStats(p *trace.PresentEvent, verbosity Verbosity) (FrameStats, bool) {
	prev := c.newest()
	if prev == nil {
		return FrameStats{}, false
	}

	fs := FrameStats{
		TimeInSeconds:     c.clock.ToSeconds(p.QpcTime),
		MsBetweenPresents: c.clock.DeltaToMilliseconds(p.QpcTime - prev.QpcTime),
		MsInPresentApi:    c.clock.DeltaToMilliseconds(p.TimeTaken),
	}

	if verbosity > VerbositySimple {
		if p.ReadyTime > 0 {
			fs.MsUntilRenderComplete = c.clock.DeltaToMilliseconds(p.ReadyTime - p.QpcTime)
		}
		if p.Presented() {
			fs.MsUntilDisplayed = c.clock.DeltaToMilliseconds(p.ScreenTime - p.QpcTime)
			if c.hasDisplayed {
				lastDisplayed := c.at(c.lastDisplayedPresentIndex)
				fs.MsBetweenDisplayChange = c.clock.DeltaToMilliseconds(p.ScreenTime - lastDisplayed.ScreenTime)
			}
		}
	}

	return fs, true
}

// ConsoleSnapshot summarizes the chain for the live console. Requires at
// least two history entries; returns false otherwise.
func (c *SwapChainData) ConsoleSnapshot(verbosity Verbosity) (ChainSnapshot, bool) {
	if c.presentHistoryCount < 2 {
		return ChainSnapshot{}, false
	}

	present0 := c.oldest()
	presentN := c.newest()
	cpuAvg := c.clock.DeltaToSeconds(presentN.QpcTime-present0.QpcTime) / float64(c.presentHistoryCount-1)

	snap := ChainSnapshot{
		Runtime:      presentN.Runtime,
		SyncInterval: presentN.SyncInterval,
		PresentFlags: presentN.PresentFlags,
	}
	if cpuAvg > 0 {
		snap.MsPerFrame = 1000.0 * cpuAvg
		snap.FPS = 1.0 / cpuAvg
	}

	if verbosity > VerbositySimple {
		var (
			display0ScreenTime uint64
			displayN           *trace.PresentEvent
			latencySum         uint64
		)
		start := c.nextPresentIndex - uint64(c.presentHistoryCount)
		for i := uint64(0); i < uint64(c.presentHistoryCount); i++ {
			p := c.at(start + i)
			if !p.Presented() {
				continue
			}
			if snap.DisplayCount == 0 {
				display0ScreenTime = p.ScreenTime
			}
			displayN = p
			latencySum += p.ScreenTime - p.QpcTime
			snap.DisplayCount++
		}

		if snap.DisplayCount >= 2 {
			snap.DisplayedFPS = float64(snap.DisplayCount-1) / c.clock.DeltaToSeconds(displayN.ScreenTime-display0ScreenTime)
		}
		if snap.DisplayCount >= 1 {
			snap.LatencyMs = c.clock.DeltaToMilliseconds(latencySum) / float64(snap.DisplayCount)
			snap.PresentMode = displayN.PresentMode
		}

		snap.IntervalP50InMs = c.intervalDigest.P50()
		snap.IntervalP95InMs = c.intervalDigest.P95()
		snap.IntervalP99InMs = c.intervalDigest.P99()
	}

	return snap, true
}
