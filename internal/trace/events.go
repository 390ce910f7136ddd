// Package trace defines the typed events delivered by the graphics tracing
// backend and the bounded queue the consumer thread uses to hand them to the
// output engine.
//
// The backend itself (kernel trace session, raw event parsing) lives outside
// this module; everything here is the contract the engine consumes.
package trace

// Runtime identifies the graphics API family that originated a present.
type Runtime int

const (
	RuntimeOther Runtime = iota
	RuntimeDXGI
	RuntimeD3D9
)

// String returns the CSV/console token for the runtime.
func (r Runtime) String() string {
	switch r {
	case RuntimeDXGI:
		return "DXGI"
	case RuntimeD3D9:
		return "D3D9"
	default:
		return "Other"
	}
}

// PresentMode describes how a present reached the display.
type PresentMode int

const (
	PresentModeUnknown PresentMode = iota
	PresentModeHardwareLegacyFlip
	PresentModeHardwareLegacyCopyToFrontBuffer
	PresentModeHardwareIndependentFlip
	PresentModeComposedFlip
	PresentModeComposedCopyWithGPUGDI
	PresentModeComposedCopyWithCPUGDI
	PresentModeHardwareComposedIndependentFlip
)

// String returns the CSV/console token for the present mode.
func (m PresentMode) String() string {
	switch m {
	case PresentModeHardwareLegacyFlip:
		return "Hardware: Legacy Flip"
	case PresentModeHardwareLegacyCopyToFrontBuffer:
		return "Hardware: Legacy Copy to front buffer"
	case PresentModeHardwareIndependentFlip:
		return "Hardware: Independent Flip"
	case PresentModeComposedFlip:
		return "Composed: Flip"
	case PresentModeComposedCopyWithGPUGDI:
		return "Composed: Copy with GPU GDI"
	case PresentModeComposedCopyWithCPUGDI:
		return "Composed: Copy with CPU GDI"
	case PresentModeHardwareComposedIndependentFlip:
		return "Hardware Composed: Independent Flip"
	default:
		return "Other"
	}
}

// PresentResult is the disposition of a present.
type PresentResult int

const (
	PresentResultUnknown PresentResult = iota
	PresentResultPresented
	PresentResultDiscarded
	PresentResultError
)

// PresentEvent is a single application present observed by the tracing
// backend. Timestamps are counter ticks; deltas are tick deltas.
type PresentEvent struct {
	ProcessID        uint32
	SwapChainAddress uint64
	QpcTime          uint64

	// TimeTaken is the tick delta spent inside the present API call.
	TimeTaken uint64

	// ReadyTime is the counter value at which GPU rendering completed.
	// Zero means unknown.
	ReadyTime uint64

	// ScreenTime is the counter value at which the frame reached the
	// display. Valid only when FinalState is Presented.
	ScreenTime uint64

	Runtime      Runtime
	SyncInterval int32
	PresentFlags uint32
	PresentMode  PresentMode
	FinalState   PresentResult

	SupportsTearing bool
	WasBatched      bool
	DwmNotified     bool
}

// Presented reports whether the frame was scanned out.
func (p *PresentEvent) Presented() bool {
	return p.FinalState == PresentResultPresented
}

// LsrResult is the disposition of a late-stage reprojection.
type LsrResult int

const (
	LsrResultUnknown LsrResult = iota
	LsrResultPresented
	LsrResultMissedVsync
	LsrResultDiscarded
)

// LsrSource describes the application source texture an LSR consumed.
type LsrSource struct {
	// ReleaseFromRenderingToAcquireForPresentationTime is the tick delta
	// between the app releasing the frame and the compositor acquiring it.
	ReleaseFromRenderingToAcquireForPresentationTime uint64
}

// LsrEvent is a single late-stage reprojection performed by the mixed-reality
// compositor. Phase timings are already in milliseconds as reported by the
// compositor instrumentation.
type LsrEvent struct {
	QpcTime   uint64
	ProcessID uint32 // compositor process

	// AppProcessID is the process that rendered the source frame. Zero when
	// the event data is incomplete.
	AppProcessID uint32

	// AppFrameID is the application frame consumed by this reprojection.
	AppFrameID uint32

	// AppPresentTime is the counter value at which the consumed app frame
	// was presented. Zero when unknown.
	AppPresentTime uint64

	// AppCpuRenderFrameTime is the tick delta the app spent rendering the
	// source frame on the CPU.
	AppCpuRenderFrameTime uint64

	FinalState       LsrResult
	MissedVsyncCount uint32
	NewSourceLatched bool

	Source LsrSource

	// CPU render phases.
	ThreadWakeupStartLatchToCpuRenderFrameStartInMs float64
	CpuRenderFrameStartToHeadPoseCallbackStartInMs  float64
	HeadPoseCallbackStartToHeadPoseCallbackStopInMs float64
	HeadPoseCallbackStopToInputLatchInMs            float64
	InputLatchToGpuSubmissionInMs                   float64

	// GPU phases.
	GpuSubmissionToGpuStartInMs float64
	GpuStartToGpuStopInMs       float64
	GpuStopToCopyStartInMs      float64
	CopyStartToCopyStopInMs     float64
	CopyStopToVsyncInMs         float64

	// Prediction and wakeup accuracy.
	TimeUntilVsyncMs         float64
	TimeUntilPhotonsMiddleMs float64
	LsrPredictionLatencyMs   float64
	AppPredictionLatencyMs   float64
	AppMispredictionMs       float64
	TotalWakeupErrorMs       float64
}

// Presented reports whether the reprojection hit its vsync.
func (e *LsrEvent) Presented() bool {
	return e.FinalState == LsrResultPresented
}

// Missed reports whether the reprojection missed one or more vsyncs.
func (e *LsrEvent) Missed() bool {
	return e.FinalState == LsrResultMissedVsync
}

// ValidAppFrame reports whether the event carries usable app-frame data.
func (e *LsrEvent) ValidAppFrame() bool {
	return e.AppProcessID != 0 && e.AppPresentTime != 0
}

// LsrCpuRenderFrameMs is the compositor CPU time spent producing this
// reprojection, from render start through GPU submission.
func (e *LsrEvent) LsrCpuRenderFrameMs() float64 {
	return e.CpuRenderFrameStartToHeadPoseCallbackStartInMs +
		e.HeadPoseCallbackStartToHeadPoseCallbackStopInMs +
		e.HeadPoseCallbackStopToInputLatchInMs +
		e.InputLatchToGpuSubmissionInMs
}

// LsrThreadWakeupToGpuEndMs is the span from compositor thread wakeup through
// the end of GPU work (copy stop).
func (e *LsrEvent) LsrThreadWakeupToGpuEndMs() float64 {
	return e.ThreadWakeupStartLatchToCpuRenderFrameStartInMs +
		e.LsrCpuRenderFrameMs() +
		e.GpuSubmissionToGpuStartInMs +
		e.GpuStartToGpuStopInMs +
		e.GpuStopToCopyStartInMs +
		e.CopyStartToCopyStopInMs
}

// InputLatchToVsyncMs is the span from pose latch to the vsync the
// reprojection targeted.
func (e *LsrEvent) InputLatchToVsyncMs() float64 {
	return e.InputLatchToGpuSubmissionInMs +
		e.GpuSubmissionToGpuStartInMs +
		e.GpuStartToGpuStopInMs +
		e.GpuStopToCopyStartInMs +
		e.CopyStartToCopyStopInMs +
		e.CopyStopToVsyncInMs
}

// LsrMotionToPhotonLatencyMs is the measured latency from pose latch to the
// middle of the photon emission window.
func (e *LsrEvent) LsrMotionToPhotonLatencyMs() float64 {
	return e.InputLatchToVsyncMs() + (e.TimeUntilPhotonsMiddleMs - e.TimeUntilVsyncMs)
}

// NtProcessEvent is a process lifecycle notification. An empty ImageFileName
// marks a termination; otherwise the event is a process start.
type NtProcessEvent struct {
	ProcessID     uint32
	QpcTime       uint64
	ImageFileName string
}

// Terminated reports whether this event marks a process exit.
func (e *NtProcessEvent) Terminated() bool {
	return e.ImageFileName == ""
}
